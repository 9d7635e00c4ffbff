package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

// Runner executes an external command in dir and returns its stdout.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// killGrace is how long Run keeps waiting for stdout to close after the
// process was killed. Grandchildren that inherited the pipe are abandoned.
const killGrace = time.Second

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run starts name with args and waits for it. The process is killed when
// ctx is done and Run returns at most killGrace later. On a non-zero exit the
// returned *exec.ExitError carries stderr.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = killGrace
	return cmd.Output()
}

// Command runs name with args through r, bounded by timeout, and returns the
// trimmed stdout. A zero timeout means no deadline beyond ctx.
func Command(ctx context.Context, r Runner, timeout time.Duration, dir, name string, args ...string) Outcome[[]byte] {
	desc := describe(name, args)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := r.Run(ctx, dir, name, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Fail[[]byte](&Failure{
				Kind:   KindFailed,
				Source: desc,
				Err:    fmt.Errorf("timed out after %s: %w", timeout, err),
			})
		}
		return Fail[[]byte](classify(desc, err))
	}

	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return Fail[[]byte](&Failure{Kind: KindEmptyOutput, Source: desc})
	}
	return Ok(out)
}

// CommandJSON runs a command like Command and decodes its stdout into a T.
func CommandJSON[T any](ctx context.Context, r Runner, timeout time.Duration, dir, name string, args ...string) Outcome[T] {
	res := Command(ctx, r, timeout, dir, name, args...)
	if !res.OK() {
		return Fail[T](res.Failure)
	}
	return DecodeJSON[T](describe(name, args), res.Value)
}

func classify(desc string, err error) *Failure {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return &Failure{Kind: KindNotFound, Source: desc, Err: err}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(string(exitErr.Stderr))
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
	}
	return &Failure{Kind: KindFailed, Source: desc, Err: err}
}

func describe(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
