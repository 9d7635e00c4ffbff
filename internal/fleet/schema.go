package fleet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/netip"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Severity grades a schema Finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one schema problem found by ValidateState.
type Finding struct {
	Severity Severity `json:"severity"`
	// Path is a dotted JSON path, e.g. "vms.claude-agent-01.ip".
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s: %s", f.Severity, f.Path, f.Message)
}

var (
	agentNamePattern = regexp.MustCompile(`^claude-agent-\d{2}$`)
	taskRefPattern   = regexp.MustCompile(`^#?\d+$`)
)

// HasErrors reports whether any finding has SeverityError.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// IDRange is an inclusive range of vm ids.
type IDRange struct {
	Min, Max int
}

func (r IDRange) contains(id int) bool { return id >= r.Min && id <= r.Max }

func (r IDRange) String() string { return fmt.Sprintf("%d-%d", r.Min, r.Max) }

// Infrastructure describes where agents are expected to run. Agents outside
// it are reported as warnings. The zero value disables both checks.
type Infrastructure struct {
	// IPPrefix every agent ip must start with, e.g. "192.168.1.".
	IPPrefix string
	// VMIDRanges lists the numeric vm ids in use.
	VMIDRanges []IDRange
}

// ValidateState checks a raw state file against the canonical schema.
// It returns an error only when data is not a JSON object; every schema
// problem is reported as a Finding.
func ValidateState(data []byte) ([]Finding, error) {
	return ValidateStateFor(data, Infrastructure{})
}

// ValidateStateFor is ValidateState plus the infra checks.
func ValidateStateFor(data []byte, infra Infrastructure) ([]Finding, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("fleet: validate state: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("fleet: validate state: document is null")
	}

	v := &validator{infra: infra}
	v.root(root)
	return v.findings, nil
}

type validator struct {
	infra    Infrastructure
	findings []Finding
}

func (v *validator) errorf(path, format string, args ...any) {
	v.findings = append(v.findings, Finding{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warnf(path, format string, args ...any) {
	v.findings = append(v.findings, Finding{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) root(root map[string]json.RawMessage) {
	if _, ok := root["wave"]; !ok {
		v.warnf("wave", "missing key")
	}
	_, hasPhase := root["phase"]
	_, hasStatus := root["status"]
	if !hasPhase && !hasStatus {
		v.warnf("phase", "missing key (expected \"phase\" or \"status\")")
	}

	vms, hasVMs := root["vms"]
	_, hasAgents := root["agents"]
	switch {
	case !hasVMs && hasAgents:
		v.errorf("agents", "non-canonical key; the exporter reads agents only from \"vms\"")
	case !hasVMs:
		v.errorf("vms", "missing key")
	case hasAgents:
		v.warnf("agents", "ignored; the exporter reads agents only from \"vms\"")
	}
	if hasVMs {
		v.agents(vms)
	}

	if tasks, ok := root["tasks"]; ok {
		v.tasks(tasks)
	}
}

func (v *validator) agents(raw json.RawMessage) {
	var agents map[string]json.RawMessage
	if err := json.Unmarshal(raw, &agents); err != nil || agents == nil {
		v.errorf("vms", "must be an object keyed by agent name")
		return
	}

	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)

	ips := make(map[string]string)
	vmIDs := make(map[string]string)
	for _, name := range names {
		path := "vms." + name
		if !agentNamePattern.MatchString(name) {
			v.errorf(path, "agent name does not match claude-agent-NN")
		}

		var f map[string]json.RawMessage
		if err := json.Unmarshal(agents[name], &f); err != nil || f == nil {
			v.errorf(path, "must be an object")
			continue
		}
		for _, key := range []string{"vm_id", "ip", "status"} {
			if _, ok := f[key]; !ok {
				v.errorf(path+"."+key, "missing required field")
			}
		}

		if raw, ok := f["vm_id"]; ok {
			id, valid := stringOrInt(raw)
			if !valid {
				v.errorf(path+".vm_id", "must be a string or integer")
			} else if prev, dup := vmIDs[id]; dup {
				v.errorf(path+".vm_id", "duplicate vm_id %q (also used by %s)", id, prev)
			} else {
				vmIDs[id] = name
				v.vmIDRange(path+".vm_id", id)
			}
		}

		if raw, ok := f["ip"]; ok {
			ip, isString := jsonString(raw)
			switch {
			case !isString || !isIPv4(ip):
				v.errorf(path+".ip", "invalid IPv4 address %s", compact(raw))
			default:
				if prev, dup := ips[ip]; dup {
					v.errorf(path+".ip", "duplicate ip %q (also used by %s)", ip, prev)
				} else {
					ips[ip] = name
				}
				if p := v.infra.IPPrefix; p != "" && !strings.HasPrefix(ip, p) {
					v.warnf(path+".ip", "ip %q outside infrastructure range %s*", ip, p)
				}
			}
		}

		if raw, ok := f["status"]; ok {
			status, isString := jsonString(raw)
			if !isString {
				v.errorf(path+".status", "must be a string")
			} else if _, known := agentStatusCodes[status]; !known {
				v.errorf(path+".status", "unknown status %q", status)
			}
		}

		if raw, ok := f["current_task"]; ok && !isNull(raw) {
			ref, isString := jsonString(raw)
			if !isString || !taskRefPattern.MatchString(ref) {
				v.errorf(path+".current_task", "must be null or a task number like \"#42\", got %s", compact(raw))
			}
		}
	}
}

func (v *validator) vmIDRange(path, id string) {
	ranges := v.infra.VMIDRanges
	if len(ranges) == 0 {
		return
	}
	n, err := strconv.Atoi(id)
	if !isDigits(id) || err != nil {
		v.warnf(path, "vm_id %q is not numeric", id)
		return
	}
	for _, r := range ranges {
		if r.contains(n) {
			return
		}
	}
	names := make([]string, len(ranges))
	for i, r := range ranges {
		names[i] = r.String()
	}
	v.warnf(path, "vm_id %q outside valid ranges %s", id, strings.Join(names, ", "))
}

func (v *validator) tasks(raw json.RawMessage) {
	var tasks []json.RawMessage
	if err := json.Unmarshal(raw, &tasks); err != nil {
		v.errorf("tasks", "must be an array")
		return
	}
	for i, t := range tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		var f map[string]json.RawMessage
		if err := json.Unmarshal(t, &f); err != nil || f == nil {
			v.errorf(path, "must be an object")
			continue
		}
		for _, key := range []string{"id", "status", "title"} {
			if _, ok := f[key]; !ok {
				v.errorf(path+"."+key, "missing required field")
			}
		}
		if raw, ok := f["status"]; ok {
			status, isString := jsonString(raw)
			if !isString {
				v.errorf(path+".status", "must be a string")
			} else if _, known := taskStatusCodes[status]; !known {
				v.errorf(path+".status", "unknown status %q", status)
			}
		}
	}
}

func jsonString(raw json.RawMessage) (string, bool) {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

func stringOrInt(raw json.RawMessage) (string, bool) {
	if s, ok := jsonString(raw); ok {
		return s, true
	}
	var n json.Number
	if isNull(raw) || json.Unmarshal(raw, &n) != nil {
		return "", false
	}
	if _, err := n.Int64(); err != nil {
		return "", false
	}
	return n.String(), true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isIPv4(s string) bool {
	if strings.Count(s, ".") != 3 {
		return false
	}
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is4()
}

func compact(raw json.RawMessage) string {
	var b bytes.Buffer
	if json.Compact(&b, raw) != nil {
		return string(raw)
	}
	return b.String()
}
