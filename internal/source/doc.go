// Package source reads the point-in-time inputs the exporters are built from:
// a JSON state file on disk or the JSON stdout of an external command.
//
// Readers never return raw I/O or decode errors. Every read produces an
// Outcome that holds either the decoded value or a *Failure tagged with one
// of four kinds:
//
//   - NotFound     file missing, or command binary not on PATH
//   - Malformed    bytes were read but are not valid JSON for the target type
//   - EmptyOutput  a command exited cleanly but printed nothing
//   - Failed       a command exited non-zero or hit its timeout
//
// External commands go through the Runner interface so tests can substitute
// canned output; ExecRunner is the os/exec implementation.
package source
