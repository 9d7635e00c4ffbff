// Package fleet turns the fleet state file (.fleet-state.json) into
// Prometheus exposition text.
//
// The state file is read from the canonical "vms" key only. The alternate
// server-manager shape (top-level "agents", bare "01" agent names) is not
// merged in; ValidateState reports it so the producer can be fixed.
//
// Pipeline per scrape: ReadState -> Render, where Render normalizes agent and
// task statuses (status.go), aggregates task buckets (aggregate.go) and
// encodes the families listed below. Nothing is cached between scrapes.
//
//	fleet_exporter_up                                  1 if the file was read
//	fleet_agent_status{agent,vm_id,ip}                 0..3
//	fleet_agent_current_task{agent}                    task number or 0
//	fleet_task_status{task_id,title}                   0..4
//	fleet_task_blocked_by{task_id,blocked_by}          1 per dependency edge
//	fleet_tasks_total{status}                          per bucket
//	fleet_progress_percent                             completed/total*100
package fleet
