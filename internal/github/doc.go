// Package github renders repository activity read through the gh CLI as a
// Prometheus exposition block.
//
// Families written, in order:
//
//	github_exporter_up
//	github_issues_total{state}
//	github_issue_state{number,title,assignee}
//	github_issue_age_days{number}
//	github_pulls_total{state}
//	github_pr_state{number,title,author}
//	github_pr_changes{number}
//
// When both the issue and the pull request listing fail only
// github_exporter_up 0 is written. When issues succeed and pull requests do
// not, github_pulls_total is still written with zero values so dashboards see
// zeros instead of missing series.
package github
