package contract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/model"

	"github.com/alleycatassetacquisitions/pdn/internal/exposition"
)

// Severity grades a Finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule names, used as Finding.Rule.
const (
	RuleMetricMissing = "metric-missing"
	RuleLabelMissing  = "label-missing"
	RuleLegendLabel   = "legend-label-missing"
	RuleOrphanMetric  = "orphan-metric"
	RuleNoTargets     = "no-targets"
	RuleDatasource    = "datasource"
	RuleValueMapping  = "value-mapping"
	RuleScrapeMissing = "scrape-missing"
	RuleScrapeSlow    = "scrape-interval"
)

// Finding is one contract violation.
type Finding struct {
	Severity Severity `json:"severity"`
	Rule     string   `json:"rule"`
	// Subject is the panel title, metric or exporter the finding is about.
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Exporter describes what one exporter emits and where Prometheus should
// find it.
type Exporter struct {
	Name string
	// Prefix selects the dashboard references that belong to this exporter.
	Prefix string
	// Families is a parsed sample of the exporter's output.
	Families map[string]*dto.MetricFamily
	// Target is the host:port a scrape job must list. Empty skips the
	// scrape checks.
	Target      string
	MaxInterval time.Duration
}

// Input bundles everything Check looks at.
type Input struct {
	Dashboard *Dashboard
	Exporters []Exporter
	// Scrape is optional.
	Scrape *ScrapeConfig
	// DatasourceUID, when set, is the uid every panel must reference.
	DatasourceUID string
}

// Check runs every rule and returns the findings sorted by severity, rule and
// subject.
func Check(in Input) []Finding {
	c := &checker{in: in, used: make(map[string]bool)}
	prefixes := make([]string, 0, len(in.Exporters))
	for _, e := range in.Exporters {
		prefixes = append(prefixes, e.Prefix)
	}

	if in.Dashboard != nil {
		walk(in.Dashboard.Panels, func(p Panel) { c.panel(p, prefixes) })
	}
	c.orphans()
	if in.Scrape != nil {
		c.scrape()
	}

	sort.SliceStable(c.findings, func(i, j int) bool {
		a, b := c.findings[i], c.findings[j]
		if a.Severity != b.Severity {
			return a.Severity == SeverityError
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Subject < b.Subject
	})
	return c.findings
}

// HasErrors reports whether any finding has SeverityError.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

type checker struct {
	in       Input
	used     map[string]bool
	findings []Finding
}

func (c *checker) add(sev Severity, rule, subject, format string, args ...any) {
	c.findings = append(c.findings, Finding{
		Severity: sev,
		Rule:     rule,
		Subject:  subject,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *checker) family(metric string) (*dto.MetricFamily, *Exporter) {
	for i := range c.in.Exporters {
		e := &c.in.Exporters[i]
		if strings.HasPrefix(metric, e.Prefix) {
			return e.Families[metric], e
		}
	}
	return nil, nil
}

func (c *checker) panel(p Panel, prefixes []string) {
	if p.Type == "row" {
		return
	}
	title := p.Title
	if title == "" {
		title = "(untitled)"
	}

	c.datasource(title, p.Datasource)
	if len(p.Targets) == 0 {
		c.add(SeverityError, RuleNoTargets, title, "panel has no targets")
	}

	referenced := make(map[string]*dto.MetricFamily)
	for _, t := range p.Targets {
		c.datasource(title, t.Datasource)
		if strings.TrimSpace(t.Expr) == "" {
			c.add(SeverityError, RuleNoTargets, title, "target %q has an empty expr", t.RefID)
			continue
		}

		var labels []string
		for _, ref := range References(t.Expr, prefixes) {
			c.used[ref.Metric] = true
			mf, exp := c.family(ref.Metric)
			if mf == nil {
				c.add(SeverityError, RuleMetricMissing, title, "%s is not emitted by the %s exporter", ref.Metric, exp.Name)
				continue
			}
			referenced[ref.Metric] = mf
			have := exposition.LabelNames(mf)
			labels = append(labels, have...)
			for _, m := range ref.Matchers {
				if m.Label == model.MetricNameLabel || contains(have, m.Label) {
					continue
				}
				c.add(SeverityError, RuleLabelMissing, title, "%s{%s%s%q} selects label %q, which %s does not carry (has %s)",
					ref.Metric, m.Label, m.Op, m.Value, m.Label, ref.Metric, strings.Join(have, ", "))
			}
		}

		if len(labels) == 0 {
			continue
		}
		for _, l := range LegendLabels(t.LegendFormat) {
			if !contains(labels, l) {
				c.add(SeverityError, RuleLegendLabel, title, "legendFormat uses {{%s}}, which no queried metric carries", l)
			}
		}
	}

	c.mappings(title, p.FieldConfig.Defaults.Mappings, referenced)
}

func (c *checker) datasource(title string, raw []byte) {
	uid, byName, present := datasourceUID(raw)
	if !present {
		return
	}
	if byName {
		c.add(SeverityError, RuleDatasource, title, "datasource is referenced by name, not uid")
		return
	}
	if c.in.DatasourceUID != "" && !strings.HasPrefix(uid, "$") && uid != c.in.DatasourceUID {
		c.add(SeverityError, RuleDatasource, title, "datasource uid %q, want %q", uid, c.in.DatasourceUID)
	}
}

// mappings warns when a panel maps values but misses one the exporter emits.
func (c *checker) mappings(title string, mappings []Mapping, fams map[string]*dto.MetricFamily) {
	mapped := make(map[string]bool)
	for _, m := range mappings {
		if m.Type != "value" {
			continue
		}
		for k := range m.Options {
			mapped[k] = true
		}
	}
	if len(mapped) == 0 {
		return
	}
	for _, name := range sortedKeys(fams) {
		mf := fams[name]
		missing := make(map[string]bool)
		for _, m := range mf.GetMetric() {
			v := strconv.FormatFloat(exposition.Value(m), 'f', -1, 64)
			if !mapped[v] {
				missing[v] = true
			}
		}
		for _, v := range sortedKeys(missing) {
			c.add(SeverityWarning, RuleValueMapping, title, "%s emits %s, which has no value mapping", mf.GetName(), v)
		}
	}
}

func (c *checker) orphans() {
	for _, e := range c.in.Exporters {
		for _, name := range sortedKeys(e.Families) {
			if strings.HasSuffix(name, "_up") || c.used[name] {
				continue
			}
			c.add(SeverityWarning, RuleOrphanMetric, name, "emitted by the %s exporter but no panel queries it", e.Name)
		}
	}
}

func (c *checker) scrape() {
	for _, e := range c.in.Exporters {
		if e.Target == "" {
			continue
		}
		job, ok := c.in.Scrape.JobFor(e.Target)
		if !ok {
			c.add(SeverityError, RuleScrapeMissing, e.Name, "no scrape job targets %s", e.Target)
			continue
		}
		d, err := c.in.Scrape.Interval(job)
		if err != nil {
			c.add(SeverityError, RuleScrapeSlow, e.Name, "%v", err)
			continue
		}
		if e.MaxInterval > 0 && d > e.MaxInterval {
			c.add(SeverityError, RuleScrapeSlow, e.Name, "job %q scrapes every %s, want at most %s", job.JobName, d, e.MaxInterval)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Index keys families by name.
func Index(mfs []*dto.MetricFamily) map[string]*dto.MetricFamily {
	out := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

// FleetExporter describes the fleet exporter at its conventional address.
func FleetExporter(fams map[string]*dto.MetricFamily) Exporter {
	return Exporter{Name: "fleet", Prefix: "fleet_", Families: fams, Target: "localhost:9101", MaxInterval: 30 * time.Second}
}

// GitHubExporter describes the GitHub exporter at its conventional address.
func GitHubExporter(fams map[string]*dto.MetricFamily) Exporter {
	return Exporter{Name: "github", Prefix: "github_", Families: fams, Target: "localhost:9102", MaxInterval: 2 * time.Minute}
}
