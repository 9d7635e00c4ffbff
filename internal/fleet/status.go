package fleet

import (
	"strconv"
	"strings"
)

// Agent status codes exposed by fleet_agent_status.
const (
	AgentUnknown  = 0
	AgentIdle     = 1
	AgentActive   = 2
	AgentComplete = 3
)

// Task status codes exposed by fleet_task_status.
const (
	TaskUnknown   = 0
	TaskPending   = 1
	TaskBlocked   = 2
	TaskActive    = 3
	TaskCompleted = 4
)

// Aggregation buckets, in the order fleet_tasks_total is written.
const (
	BucketPending   = "pending"
	BucketBlocked   = "blocked"
	BucketActive    = "active"
	BucketCompleted = "completed"
)

// Buckets lists the aggregation buckets in output order.
var Buckets = []string{BucketPending, BucketBlocked, BucketActive, BucketCompleted}

var agentStatusCodes = map[string]int{
	"idle":         AgentIdle,
	"user-managed": AgentIdle,
	"active":       AgentActive,
	"busy":         AgentActive,
	"dispatched":   AgentActive,
	"running":      AgentActive,
	"complete":     AgentComplete,
	"completed":    AgentComplete,
	"merged":       AgentComplete,
}

var taskStatusCodes = map[string]int{
	"pending":    TaskPending,
	"blocked":    TaskBlocked,
	"active":     TaskActive,
	"dispatched": TaskActive,
	"completed":  TaskCompleted,
	"merged":     TaskCompleted,
}

var taskBucketAliases = map[string]string{
	"dispatched": BucketActive,
	"merged":     BucketCompleted,
}

// AgentStatusCode maps an agent status to 1 (idle), 2 (active),
// 3 (complete) or 0 for anything unrecognized.
func AgentStatusCode(status string) int {
	return agentStatusCodes[status]
}

// TaskStatusCode maps a task status to 1 (pending), 2 (blocked),
// 3 (active), 4 (completed) or 0 for anything unrecognized.
func TaskStatusCode(status string) int {
	return taskStatusCodes[status]
}

// TaskBucket returns the aggregation bucket for a task status. Aliases
// collapse (dispatched -> active, merged -> completed); every other status,
// including unknown ones, is returned unchanged.
func TaskBucket(status string) string {
	if b, ok := taskBucketAliases[status]; ok {
		return b
	}
	return status
}

// ParseTaskRef parses a current_task reference such as "#42" or "42".
// One leading '#' is stripped and the rest must be ASCII digits. Empty, "0",
// "#0", signed and non-numeric references all yield 0.
func ParseTaskRef(ref string) int {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if !isDigits(ref) {
		return 0
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0
	}
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// blockerID strips the optional '#' from a blocked_by reference.
func blockerID(ref string) string {
	return strings.TrimPrefix(strings.TrimSpace(ref), "#")
}
