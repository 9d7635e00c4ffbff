package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Dashboard is the subset of a Grafana dashboard model the checks read.
type Dashboard struct {
	Title  string  `json:"title"`
	Panels []Panel `json:"panels"`
}

// Panel is one dashboard panel. Rows nest their panels when collapsed.
type Panel struct {
	Title       string          `json:"title"`
	Type        string          `json:"type"`
	Datasource  json.RawMessage `json:"datasource"`
	Targets     []Target        `json:"targets"`
	FieldConfig FieldConfig     `json:"fieldConfig"`
	Panels      []Panel         `json:"panels"`
}

// Target is one panel query.
type Target struct {
	RefID        string          `json:"refId"`
	Expr         string          `json:"expr"`
	LegendFormat string          `json:"legendFormat"`
	Datasource   json.RawMessage `json:"datasource"`
}

// FieldConfig carries the panel's value mappings.
type FieldConfig struct {
	Defaults struct {
		Mappings []Mapping `json:"mappings"`
	} `json:"defaults"`
}

// Mapping is a Grafana value mapping. Only type "value" is checked.
type Mapping struct {
	Type    string                     `json:"type"`
	Options map[string]json.RawMessage `json:"options"`
}

// ParseDashboard decodes a dashboard JSON document. Both the bare model and
// the provisioning API envelope ({"dashboard": {...}}) are accepted.
func ParseDashboard(data []byte) (*Dashboard, error) {
	var env struct {
		Dashboard *Dashboard `json:"dashboard"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("contract: parse dashboard: %w", err)
	}
	if env.Dashboard != nil {
		return env.Dashboard, nil
	}
	var d Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("contract: parse dashboard: %w", err)
	}
	return &d, nil
}

// walk visits every panel, descending into rows.
func walk(panels []Panel, fn func(p Panel)) {
	for _, p := range panels {
		fn(p)
		walk(p.Panels, fn)
	}
}

// Matcher is one label matcher of a selector.
type Matcher struct {
	Label string
	Op    string
	Value string
}

// Reference is one metric occurrence inside an expression.
type Reference struct {
	Metric   string
	Matchers []Matcher
}

var (
	selectorPattern = regexp.MustCompile(`([a-zA-Z_:][a-zA-Z0-9_:]*)\s*(\{[^}]*\})?`)
	matcherPattern  = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_]*)\s*(=~|!~|!=|=)\s*"((?:[^"\\]|\\.)*)"`)
	legendPattern   = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
)

// References returns the metrics in expr that start with one of prefixes,
// with the matchers written directly after them.
func References(expr string, prefixes []string) []Reference {
	var out []Reference
	for _, m := range selectorPattern.FindAllStringSubmatch(expr, -1) {
		if !hasPrefix(m[1], prefixes) {
			continue
		}
		ref := Reference{Metric: m[1]}
		for _, mm := range matcherPattern.FindAllStringSubmatch(m[2], -1) {
			ref.Matchers = append(ref.Matchers, Matcher{Label: mm[1], Op: mm[2], Value: mm[3]})
		}
		out = append(out, ref)
	}
	return out
}

// LegendLabels returns the {{label}} placeholders of a legendFormat.
func LegendLabels(format string) []string {
	var out []string
	for _, m := range legendPattern.FindAllStringSubmatch(format, -1) {
		out = append(out, m[1])
	}
	return out
}

func hasPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// datasourceUID inspects a datasource reference. A bare string is the legacy
// by-name form.
func datasourceUID(raw json.RawMessage) (uid string, byName bool, present bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, false
	}
	var name string
	if json.Unmarshal(raw, &name) == nil {
		// "${DS_PROMETHEUS}" style template variables resolve to a uid.
		return name, !strings.HasPrefix(name, "$"), true
	}
	var ref struct {
		UID  string `json:"uid"`
		Name string `json:"name"`
	}
	if json.Unmarshal(raw, &ref) != nil {
		return "", true, true
	}
	return ref.UID, ref.UID == "", true
}
