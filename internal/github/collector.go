package github

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/alleycatassetacquisitions/pdn/internal/exposition"
	"github.com/alleycatassetacquisitions/pdn/internal/source"
)

// Metric names written by Render.
const (
	MetricUp          = "github_exporter_up"
	MetricIssuesTotal = "github_issues_total"
	MetricIssueState  = "github_issue_state"
	MetricIssueAge    = "github_issue_age_days"
	MetricPullsTotal  = "github_pulls_total"
	MetricPRState     = "github_pr_state"
	MetricPRChanges   = "github_pr_changes"
)

const (
	helpUp          = "GitHub exporter is running"
	helpIssuesTotal = "Total number of issues"
	helpIssueState  = "Issue state (1=open, 2=closed)"
	helpIssueAge    = "Age of open issues in days"
	helpPullsTotal  = "Total number of pull requests"
	helpPRState     = "PR state (1=open, 2=closed, 3=merged)"
	helpPRChanges   = "Total changes (additions + deletions)"
)

// Source names reported to the Observer.
const (
	SourceIssues = "gh_issues"
	SourcePulls  = "gh_pulls"
)

// DefaultDetailLimit is how many issues and pull requests get per-item series.
const DefaultDetailLimit = 20

// Render builds the exposition block for one pair of listings. now is used
// for issue ages; detailLimit bounds the per-item families (<= 0 means
// DefaultDetailLimit).
func Render(issues source.Outcome[Issues], pulls source.Outcome[PullRequests], now time.Time, detailLimit int) *exposition.Document {
	if !issues.OK() && !pulls.OK() {
		return exposition.Liveness(MetricUp, helpUp, false)
	}
	if detailLimit <= 0 {
		detailLimit = DefaultDetailLimit
	}

	doc := exposition.Liveness(MetricUp, helpUp, true)
	if issues.OK() {
		doc.Add(issueFamilies(issues.Value, now, detailLimit)...)
	}
	// A failed PR listing still yields zero totals next to issue data.
	var prs PullRequests
	if pulls.OK() {
		prs = pulls.Value
	}
	doc.Add(pullFamilies(prs, detailLimit)...)
	return doc
}

func issueFamilies(issues Issues, now time.Time, limit int) []*exposition.Family {
	var open, closed int
	for _, is := range issues {
		switch is.State {
		case StateOpen:
			open++
		case StateClosed:
			closed++
		}
	}
	totals := exposition.NewGauge(MetricIssuesTotal, helpIssuesTotal).
		Add(float64(open), exposition.L("state", "open")).
		Add(float64(closed), exposition.L("state", "closed"))
	if len(issues) == 0 {
		return []*exposition.Family{totals}
	}

	state := exposition.NewGauge(MetricIssueState, helpIssueState)
	for _, is := range head(issues, limit) {
		v := 2.0
		if is.State == StateOpen {
			v = 1
		}
		state.Add(v,
			exposition.L("number", is.Number),
			exposition.Text("title", is.Title),
			exposition.L("assignee", is.Assignee),
		)
	}

	age := exposition.NewGauge(MetricIssueAge, helpIssueAge)
	seen := 0
	for _, is := range issues {
		if is.State != StateOpen {
			continue
		}
		if seen == limit {
			break
		}
		seen++
		days, ok := AgeDays(is.CreatedAt, now)
		if !ok {
			slog.Debug("github: unparseable createdAt", "number", is.Number, "created_at", is.CreatedAt)
			continue
		}
		age.Add(float64(days), exposition.L("number", is.Number))
	}
	return []*exposition.Family{totals, state, age}
}

func pullFamilies(prs PullRequests, limit int) []*exposition.Family {
	var open, closed, merged int
	for _, pr := range prs {
		switch pr.State {
		case StateOpen:
			open++
		case StateClosed:
			closed++
		case StateMerged:
			merged++
		}
	}
	totals := exposition.NewGauge(MetricPullsTotal, helpPullsTotal).
		Add(float64(open), exposition.L("state", "open")).
		Add(float64(closed), exposition.L("state", "closed")).
		Add(float64(merged), exposition.L("state", "merged"))
	if len(prs) == 0 {
		return []*exposition.Family{totals}
	}

	state := exposition.NewGauge(MetricPRState, helpPRState)
	changes := exposition.NewGauge(MetricPRChanges, helpPRChanges)
	for _, pr := range head(prs, limit) {
		state.Add(PRStateCode(pr.State),
			exposition.L("number", pr.Number),
			exposition.Text("title", pr.Title),
			exposition.L("author", pr.Author),
		)
		if pr.State == StateOpen || pr.State == StateMerged {
			changes.Add(float64(pr.Changes()), exposition.L("number", pr.Number))
		}
	}
	return []*exposition.Family{totals, state, changes}
}

// PRStateCode maps OPEN to 1, MERGED to 3 and anything else to 2.
func PRStateCode(state string) float64 {
	switch state {
	case StateOpen:
		return 1
	case StateMerged:
		return 3
	}
	return 2
}

// AgeDays returns the whole number of UTC days between createdAt (RFC 3339)
// and now, never negative.
func AgeDays(createdAt string, now time.Time) (int, bool) {
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return 0, false
	}
	d := now.UTC().Sub(t.UTC())
	if d < 0 {
		return 0, true
	}
	return int(d / (24 * time.Hour)), true
}

func head[S ~[]E, E any](s S, n int) S {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Options configures an Exporter.
type Options struct {
	// Repo is "owner/name". Empty means detect it from RepoDir.
	Repo         string
	RepoDir      string
	FallbackRepo string

	GHBinary  string
	GitBinary string
	Timeout   time.Duration

	ListLimit   int
	DetailLimit int
}

// Exporter lists issues and pull requests through gh on every Collect.
type Exporter struct {
	opts     atomic.Pointer[Options]
	runner   source.Runner
	observer source.Observer
	now      func() time.Time
}

// New creates an Exporter. runner nil means source.ExecRunner; observer may
// be nil.
func New(opts Options, runner source.Runner, observer source.Observer) *Exporter {
	if runner == nil {
		runner = source.ExecRunner{}
	}
	e := &Exporter{runner: runner, observer: observer, now: time.Now}
	e.opts.Store(&opts)
	return e
}

// Reconfigure swaps the options used by subsequent scrapes.
func (e *Exporter) Reconfigure(opts Options) {
	e.opts.Store(&opts)
}

// Name identifies the exporter in logs and telemetry.
func (e *Exporter) Name() string { return "github" }

// Repo resolves the repository the next scrape will list.
func (e *Exporter) Repo(ctx context.Context) string {
	o := e.opts.Load()
	if o.Repo != "" {
		return o.Repo
	}
	return DetectRepo(ctx, e.runner, o.Timeout, o.GitBinary, o.RepoDir, o.FallbackRepo)
}

// Collect runs both listings and renders them.
func (e *Exporter) Collect(ctx context.Context) exposition.Scrape {
	o := e.opts.Load()
	repo := e.Repo(ctx)
	limit := strconv.Itoa(o.ListLimit)

	issues := source.CommandJSON[Issues](ctx, e.runner, o.Timeout, o.RepoDir, o.GHBinary,
		"issue", "list", "--repo", repo, "--state", "all", "--limit", limit,
		"--json", "number,title,state,createdAt,assignees")
	e.observe(SourceIssues, repo, issues.Failure)

	pulls := source.CommandJSON[PullRequests](ctx, e.runner, o.Timeout, o.RepoDir, o.GHBinary,
		"pr", "list", "--repo", repo, "--state", "all", "--limit", limit,
		"--json", "number,title,state,author,additions,deletions")
	e.observe(SourcePulls, repo, pulls.Failure)

	return exposition.Scrape{
		Document: Render(issues, pulls, e.now(), o.DetailLimit),
		Up:       issues.OK() || pulls.OK(),
	}
}

func (e *Exporter) observe(name, repo string, f *source.Failure) {
	if f == nil {
		return
	}
	slog.Warn("github: listing failed", "source", name, "repo", repo, "kind", f.Kind.String(), "err", f.Err)
	if e.observer != nil {
		e.observer.ObserveFailure(name, f)
	}
}
