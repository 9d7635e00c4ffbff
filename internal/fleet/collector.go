package fleet

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/alleycatassetacquisitions/pdn/internal/exposition"
	"github.com/alleycatassetacquisitions/pdn/internal/source"
)

// Metric names written by Render.
const (
	MetricUp          = "fleet_exporter_up"
	MetricAgentStatus = "fleet_agent_status"
	MetricCurrentTask = "fleet_agent_current_task"
	MetricTaskStatus  = "fleet_task_status"
	MetricTaskBlocked = "fleet_task_blocked_by"
	MetricTasksTotal  = "fleet_tasks_total"
	MetricProgressPct = "fleet_progress_percent"
)

const (
	helpUp          = "Fleet exporter is running"
	helpAgentStatus = "Agent status (0=unknown, 1=idle, 2=active, 3=complete)"
	helpCurrentTask = "Current task number assigned to agent"
	helpTaskStatus  = "Task status (0=unknown, 1=pending, 2=blocked, 3=active, 4=completed)"
	helpTaskBlocked = "Task dependency edge (1=task is blocked by the referenced task)"
	helpTasksTotal  = "Total tasks by status"
	helpProgressPct = "Percentage of completed tasks"

	emptyStateComment = "Fleet state is empty"
	stateSourceName   = "fleet_state"
)

// ReadState reads and decodes the state file at path.
func ReadState(path string) source.Outcome[State] {
	return source.ReadJSONFile[State](path)
}

// Render builds the exposition document for one state read. A failed read
// yields only fleet_exporter_up 0.
func Render(res source.Outcome[State]) *exposition.Document {
	if !res.OK() {
		return exposition.Liveness(MetricUp, helpUp, false)
	}

	st := res.Value
	doc := exposition.Liveness(MetricUp, helpUp, true)
	if st.Empty() {
		doc.Comments = []string{emptyStateComment}
		return doc
	}

	if len(st.Agents) > 0 {
		names := make([]string, 0, len(st.Agents))
		for name := range st.Agents {
			names = append(names, name)
		}
		sort.Strings(names)

		status := exposition.NewGauge(MetricAgentStatus, helpAgentStatus)
		current := exposition.NewGauge(MetricCurrentTask, helpCurrentTask)
		for _, name := range names {
			a := st.Agents[name]
			status.Add(float64(AgentStatusCode(a.Status)),
				exposition.L("agent", name),
				exposition.L("vm_id", a.VMID),
				exposition.L("ip", a.IP),
			)
		}
		for _, name := range names {
			current.Add(float64(ParseTaskRef(st.Agents[name].CurrentTask)), exposition.L("agent", name))
		}
		doc.Add(status, current)
	}

	if len(st.Tasks) > 0 {
		doc.Add(taskFamilies(st.Tasks)...)
	}
	return doc
}

func taskFamilies(tasks []Task) []*exposition.Family {
	status := exposition.NewGauge(MetricTaskStatus, helpTaskStatus)
	blocked := exposition.NewGauge(MetricTaskBlocked, helpTaskBlocked)
	for _, t := range tasks {
		status.Add(float64(TaskStatusCode(t.Status)),
			exposition.L("task_id", t.ID),
			exposition.Text("title", t.Title),
		)
		for _, ref := range t.BlockedBy {
			blocked.Add(1, exposition.L("task_id", t.ID), exposition.L("blocked_by", blockerID(ref)))
		}
	}

	sum := Aggregate(tasks)
	totals := exposition.NewGauge(MetricTasksTotal, helpTasksTotal)
	for _, b := range Buckets {
		totals.Add(float64(sum.Count(b)), exposition.L("status", b))
	}

	progress := exposition.NewGauge(MetricProgressPct, helpProgressPct)
	progress.Decimals = 1
	progress.Add(sum.Percent())

	out := []*exposition.Family{status}
	if len(blocked.Samples) > 0 {
		out = append(out, blocked)
	}
	return append(out, totals, progress)
}

// Options configures an Exporter.
type Options struct {
	// StatePath is the fleet state file read on every scrape.
	StatePath string
}

// Exporter reads the state file on every Collect.
type Exporter struct {
	opts     atomic.Pointer[Options]
	observer source.Observer
}

// New creates an Exporter. observer may be nil.
func New(opts Options, observer source.Observer) *Exporter {
	e := &Exporter{observer: observer}
	e.opts.Store(&opts)
	return e
}

// Reconfigure swaps the options used by subsequent scrapes.
func (e *Exporter) Reconfigure(opts Options) {
	e.opts.Store(&opts)
}

// Name identifies the exporter in logs and telemetry.
func (e *Exporter) Name() string { return "fleet" }

// Collect reads the state file and renders it.
func (e *Exporter) Collect(_ context.Context) exposition.Scrape {
	path := e.opts.Load().StatePath
	res := ReadState(path)
	if !res.OK() {
		slog.Warn("fleet: state file unavailable", "path", path, "kind", res.Failure.Kind.String(), "err", res.Failure.Err)
		if e.observer != nil {
			e.observer.ObserveFailure(stateSourceName, res.Failure)
		}
	} else {
		slog.Debug("fleet: state read",
			"path", path,
			"agents", len(res.Value.Agents),
			"tasks", len(res.Value.Tasks),
		)
	}
	return exposition.Scrape{Document: Render(res), Up: res.OK()}
}
