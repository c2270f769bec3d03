package runner

import (
	"context"
	"slices"
)

// Call is one invocation seen by a Recorder.
type Call struct {
	Name string
	Args []string
}

// Argv returns the full command line, name first.
func (c Call) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// Recorder is a Runner that never starts a process. It records every call
// and answers from Results, keyed by any argument of the call, so a
// scripted failure can be attached to a single specifier.
type Recorder struct {
	Calls []Call
	// Results maps an argument value to the result returned when a call
	// contains it. Calls matching nothing succeed with empty output.
	Results map[string]Result
	// Errs maps an argument value to an error returned instead of a result.
	Errs map[string]error
}

var _ Runner = &Recorder{}

func (r *Recorder) Run(ctx context.Context, name string, args ...string) (Result, error) {
	r.Calls = append(r.Calls, Call{Name: name, Args: slices.Clone(args)})

	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}

	for _, a := range args {
		if err, ok := r.Errs[a]; ok {
			return Result{ExitCode: -1}, err
		}
		if res, ok := r.Results[a]; ok {
			return res, nil
		}
	}
	return Result{}, nil
}
