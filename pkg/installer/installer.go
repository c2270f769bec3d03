package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/agentpkg/pindeps/pkg/runner"
)

// NoBuildIsolationFlag is passed on every invocation so each dependency
// builds against whatever is already installed in the environment.
const NoBuildIsolationFlag = "--no-build-isolation"

// DefaultCommand is the installation command used when none is configured.
var DefaultCommand = []string{"pip"}

// Outcome describes one installation attempt.
type Outcome struct {
	Specifier string
	Index     int
	Args      []string
	ExitCode  int
	Output    []byte
	Duration  time.Duration
	DryRun    bool
}

// Succeeded reports whether the attempt exited zero.
func (o Outcome) Succeeded() bool {
	return o.ExitCode == 0
}

// InstallFailure is returned for the first specifier whose installation
// did not succeed. Specifiers after it were not attempted.
type InstallFailure struct {
	Specifier string
	Index     int
	// ExitCode is the command's exit status, or -1 if it never ran to
	// completion (see Err).
	ExitCode int
	Output   []byte
	Err      error
}

func (f *InstallFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "installing %q", f.Specifier)
	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	} else {
		fmt.Fprintf(&b, ": exit status %d", f.ExitCode)
	}
	if out := strings.TrimSpace(string(f.Output)); out != "" && f.Err == nil {
		fmt.Fprintf(&b, ": %s", runner.Tail(out, 3))
	}
	return b.String()
}

func (f *InstallFailure) Unwrap() error {
	return f.Err
}

type Installer struct {
	Runner runner.Runner
	// Command is the installation program and any leading arguments,
	// e.g. ["pip"] or ["python", "-m", "pip"]. Empty means DefaultCommand.
	Command []string
	// ExtraArgs are appended after the isolation flag on every invocation.
	ExtraArgs []string
	// DryRun reports each invocation through OnOutcome without running it.
	DryRun bool
	// OnOutcome, if set, is called after every attempt, in order.
	OnOutcome func(Outcome)
	Logger    *slog.Logger
}

// InstallAll installs specs one at a time in the given order. Each
// invocation blocks until the previous one has exited, since an install
// changes what the next isolation-disabled build sees. The first failure
// stops the run and is returned as *InstallFailure.
func (inst *Installer) InstallAll(ctx context.Context, specs []string) error {
	logger := inst.logger()
	if inst.Runner == nil && !inst.DryRun {
		return errors.New("installer has no runner")
	}

	for i, spec := range specs {
		args := inst.Args(spec)

		if inst.DryRun {
			logger.Debug("dry run", "specifier", spec, "argv", args)
			inst.report(Outcome{Specifier: spec, Index: i, Args: args, DryRun: true})
			continue
		}

		if err := ctx.Err(); err != nil {
			return &InstallFailure{Specifier: spec, Index: i, ExitCode: -1, Err: err}
		}

		logger.Info("installing", "specifier", spec, "index", i, "argv", args)
		start := time.Now()
		res, err := inst.Runner.Run(ctx, args[0], args[1:]...)
		out := Outcome{
			Specifier: spec,
			Index:     i,
			Args:      args,
			ExitCode:  res.ExitCode,
			Output:    res.Output,
			Duration:  time.Since(start),
		}
		if err != nil && out.ExitCode == 0 {
			out.ExitCode = -1
		}
		inst.report(out)

		if err != nil {
			logger.Error("install command did not run", "specifier", spec, "error", err)
			return &InstallFailure{Specifier: spec, Index: i, ExitCode: out.ExitCode, Output: res.Output, Err: err}
		}
		if res.ExitCode != 0 {
			logger.Error("install failed", "specifier", spec, "exit_code", res.ExitCode, "duration", out.Duration)
			return &InstallFailure{Specifier: spec, Index: i, ExitCode: res.ExitCode, Output: res.Output}
		}

		logger.Debug("installed", "specifier", spec, "duration", out.Duration)
	}

	return nil
}

// Args returns the full argv used to install spec. The isolation flag is
// always present regardless of configuration.
func (inst *Installer) Args(spec string) []string {
	command := inst.Command
	if len(command) == 0 {
		command = DefaultCommand
	}

	args := slices.Clone(command)
	args = append(args, "install", spec, NoBuildIsolationFlag)
	for _, a := range inst.ExtraArgs {
		if a == NoBuildIsolationFlag {
			continue
		}
		args = append(args, a)
	}
	return args
}

func (inst *Installer) report(o Outcome) {
	if inst.OnOutcome != nil {
		inst.OnOutcome(o)
	}
}

func (inst *Installer) logger() *slog.Logger {
	if inst.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return inst.Logger
}
