package source

import (
	"errors"
	"fmt"
)

// Kind classifies why a source could not produce a value.
type Kind int

const (
	// KindNotFound means the file does not exist or the command binary is absent.
	KindNotFound Kind = iota + 1
	// KindMalformed means the bytes could not be decoded as the expected JSON shape.
	KindMalformed
	// KindEmptyOutput means a command succeeded but wrote nothing to stdout.
	KindEmptyOutput
	// KindFailed covers non-zero exits, timeouts and other read errors.
	KindFailed
)

// String returns the snake_case name used in logs and telemetry labels.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindMalformed:
		return "malformed"
	case KindEmptyOutput:
		return "empty_output"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Failure describes a source read that produced no usable value.
type Failure struct {
	Kind Kind
	// Source is the file path or command line that was read.
	Source string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("source %s: %s", f.Source, f.Kind)
	}
	return fmt.Sprintf("source %s: %s: %v", f.Source, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// IsKind reports whether err is (or wraps) a *Failure of kind k.
func IsKind(err error, k Kind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == k
}

// Outcome is the result of reading one source: either Value is set and
// Failure is nil, or Failure explains why there is no value.
type Outcome[T any] struct {
	Value   T
	Failure *Failure
}

// Ok wraps a successfully read value.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Fail wraps a failure. The zero T is left in Value.
func Fail[T any](f *Failure) Outcome[T] {
	return Outcome[T]{Failure: f}
}

// OK reports whether the read produced a value.
func (o Outcome[T]) OK() bool { return o.Failure == nil }

// Observer is told about every failed read. name identifies the logical
// source ("fleet_state", "gh_issues", ...). Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveFailure(name string, f *Failure)
}
