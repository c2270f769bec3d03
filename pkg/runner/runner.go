package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Result is the outcome of a single command invocation.
type Result struct {
	// ExitCode is the process exit status. Zero means success.
	ExitCode int
	// Output holds combined stdout and stderr.
	Output []byte
}

type Runner interface {
	// Run executes name with args and blocks until it exits. A non-zero
	// exit is reported through Result.ExitCode with a nil error; the error
	// is reserved for failures to start or wait on the process.
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Exec runs commands as child processes of the current one.
type Exec struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
	// Stream, if set, receives output live in addition to it being
	// captured in Result.Output.
	Stream io.Writer
}

var _ Runner = &Exec{}

func (e *Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	var buf bytes.Buffer
	var w io.Writer = &buf
	if e.Stream != nil {
		w = io.MultiWriter(&buf, e.Stream)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	res := Result{Output: buf.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	res.ExitCode = -1
	return res, execError(err, res.Output)
}

// execError attaches the tail of captured output to err so failures to
// run are diagnosable without the full log.
func execError(err error, output []byte) error {
	if out := strings.TrimSpace(string(output)); out != "" {
		return fmt.Errorf("%w: %s", err, Tail(out, 5))
	}
	return err
}

// Tail returns the last n lines of s.
func Tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
