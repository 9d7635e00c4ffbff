package fleet

import (
	"bytes"
	"encoding/json"
)

// State is one decoded snapshot of the fleet state file.
type State struct {
	// Agents holds the entries of the "vms" object, keyed by agent name.
	Agents map[string]Agent
	// Tasks holds the "tasks" array in file order.
	Tasks []Task

	keys int
}

// Agent is one fleet worker.
type Agent struct {
	Name   string
	VMID   string
	IP     string
	Status string
	// CurrentTask is the raw task reference ("#42", "42", "0") or "" for null.
	CurrentTask string

	Branch string
	PR     string
	Role   string
}

// Task is one unit of work tracked in the state file.
type Task struct {
	ID        string
	Status    string
	Title     string
	BlockedBy []string
}

// Empty reports whether the snapshot was null or an object with no keys.
func (s State) Empty() bool { return s.keys == 0 }

// UnmarshalJSON decodes the top-level object leniently: a "vms" or "tasks"
// value of the wrong JSON type is ignored rather than failing the snapshot,
// and every agent and task is decoded field by field.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = State{keys: len(raw)}

	if v, ok := raw["vms"]; ok {
		var agents map[string]json.RawMessage
		if json.Unmarshal(v, &agents) == nil && len(agents) > 0 {
			s.Agents = make(map[string]Agent, len(agents))
			for name, a := range agents {
				s.Agents[name] = decodeAgent(name, a)
			}
		}
	}

	if v, ok := raw["tasks"]; ok {
		var tasks []json.RawMessage
		if json.Unmarshal(v, &tasks) == nil {
			for _, t := range tasks {
				s.Tasks = append(s.Tasks, decodeTask(t))
			}
		}
	}
	return nil
}

func decodeAgent(name string, data json.RawMessage) Agent {
	f := fields(data)
	return Agent{
		Name:        name,
		VMID:        text(f, "vm_id", ""),
		IP:          text(f, "ip", ""),
		Status:      text(f, "status", "unknown"),
		CurrentTask: text(f, "current_task", ""),
		Branch:      text(f, "branch", ""),
		PR:          text(f, "pr", ""),
		Role:        text(f, "role", ""),
	}
}

func decodeTask(data json.RawMessage) Task {
	f := fields(data)
	t := Task{
		ID:     text(f, "id", ""),
		Status: text(f, "status", "unknown"),
		Title:  text(f, "title", ""),
	}
	var blockers []json.RawMessage
	if raw, ok := f["blocked_by"]; ok && json.Unmarshal(raw, &blockers) == nil {
		for _, b := range blockers {
			if id := scalar(b); id != "" {
				t.BlockedBy = append(t.BlockedBy, id)
			}
		}
	}
	return t
}

// fields splits an object into its members. Non-objects yield nil.
func fields(data json.RawMessage) map[string]json.RawMessage {
	var f map[string]json.RawMessage
	if json.Unmarshal(data, &f) != nil {
		return nil
	}
	return f
}

// text returns a string member as-is, a number member as its literal, and def
// for a missing, null or non-scalar member.
func text(f map[string]json.RawMessage, key, def string) string {
	raw, ok := f[key]
	if !ok {
		return def
	}
	if s := scalar(raw); s != "" || isEmptyString(raw) {
		return s
	}
	return def
}

func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func isEmptyString(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte(`""`))
}
