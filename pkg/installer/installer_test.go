package installer

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/agentpkg/pindeps/pkg/runner"
)

func specsOf(calls []runner.Call) []string {
	var specs []string
	for _, c := range calls {
		i := slices.Index(c.Args, "install")
		if i < 0 || i+1 >= len(c.Args) {
			continue
		}
		specs = append(specs, c.Args[i+1])
	}
	return specs
}

func TestInstallAll(t *testing.T) {
	tests := map[string]struct {
		specs       []string
		results     map[string]runner.Result
		errs        map[string]error
		wantCalls   []string
		wantFailure string
		wantCode    int
	}{
		"all succeed in order": {
			specs:     []string{"a", "b"},
			wantCalls: []string{"a", "b"},
		},
		"empty list runs nothing": {
			specs:     nil,
			wantCalls: nil,
		},
		"failure stops remaining": {
			specs: []string{"a", "b", "c"},
			results: map[string]runner.Result{
				"b": {ExitCode: 1, Output: []byte("ERROR: No matching distribution found for b")},
			},
			wantCalls:   []string{"a", "b"},
			wantFailure: "b",
			wantCode:    1,
		},
		"first specifier fails": {
			specs: []string{"a", "b"},
			results: map[string]runner.Result{
				"a": {ExitCode: 2},
			},
			wantCalls:   []string{"a"},
			wantFailure: "a",
			wantCode:    2,
		},
		"command cannot start": {
			specs: []string{"a", "b"},
			errs: map[string]error{
				"a": errors.New("executable file not found in $PATH"),
			},
			wantCalls:   []string{"a"},
			wantFailure: "a",
			wantCode:    -1,
		},
		"duplicates are installed twice": {
			specs:     []string{"a", "b", "a"},
			wantCalls: []string{"a", "b", "a"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rec := &runner.Recorder{Results: tc.results, Errs: tc.errs}
			inst := &Installer{Runner: rec}

			err := inst.InstallAll(context.Background(), tc.specs)

			if got := specsOf(rec.Calls); !slices.Equal(got, tc.wantCalls) {
				t.Errorf("invoked %v, want %v", got, tc.wantCalls)
			}

			if tc.wantFailure == "" {
				if err != nil {
					t.Fatalf("InstallAll() error: %v", err)
				}
				return
			}

			var failure *InstallFailure
			if !errors.As(err, &failure) {
				t.Fatalf("InstallAll() error = %v, want *InstallFailure", err)
			}
			if failure.Specifier != tc.wantFailure {
				t.Errorf("failure specifier = %q, want %q", failure.Specifier, tc.wantFailure)
			}
			if failure.ExitCode != tc.wantCode {
				t.Errorf("failure exit code = %d, want %d", failure.ExitCode, tc.wantCode)
			}
			if !strings.Contains(failure.Error(), tc.wantFailure) {
				t.Errorf("Error() = %q, want it to mention %q", failure.Error(), tc.wantFailure)
			}
		})
	}
}

func TestInstallAllAlwaysDisablesIsolation(t *testing.T) {
	tests := map[string]struct {
		command   []string
		extraArgs []string
	}{
		"default command": {},
		"python -m pip": {
			command: []string{"python", "-m", "pip"},
		},
		"uv pip with extra args": {
			command:   []string{"uv", "pip"},
			extraArgs: []string{"--quiet"},
		},
		"extra args repeat the flag": {
			extraArgs: []string{NoBuildIsolationFlag, "--verbose"},
		},
	}

	specs := []string{"hy == 0.27.0", "hyrule == 0.4.0", "toolz >= 0.12.0"}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rec := &runner.Recorder{}
			inst := &Installer{Runner: rec, Command: tc.command, ExtraArgs: tc.extraArgs}

			if err := inst.InstallAll(context.Background(), specs); err != nil {
				t.Fatalf("InstallAll() error: %v", err)
			}
			if len(rec.Calls) != len(specs) {
				t.Fatalf("recorded %d calls, want %d", len(rec.Calls), len(specs))
			}

			for i, call := range rec.Calls {
				argv := call.Argv()
				n := 0
				for _, a := range argv {
					if a == NoBuildIsolationFlag {
						n++
					}
				}
				if n != 1 {
					t.Errorf("call %d argv %q has the isolation flag %d times, want 1", i, argv, n)
				}
				if j := slices.Index(argv, "install"); argv[j+1] != specs[i] || argv[j+2] != NoBuildIsolationFlag {
					t.Errorf("call %d argv %q, want %q followed by %s", i, argv, specs[i], NoBuildIsolationFlag)
				}
			}
		})
	}
}

func TestArgs(t *testing.T) {
	tests := map[string]struct {
		command   []string
		extraArgs []string
		want      []string
	}{
		"default": {
			want: []string{"pip", "install", "a==1", NoBuildIsolationFlag},
		},
		"multi-word command": {
			command: []string{"python", "-m", "pip"},
			want:    []string{"python", "-m", "pip", "install", "a==1", NoBuildIsolationFlag},
		},
		"extra args after flag": {
			command:   []string{"pip"},
			extraArgs: []string{"--quiet"},
			want:      []string{"pip", "install", "a==1", NoBuildIsolationFlag, "--quiet"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			inst := &Installer{Command: tc.command, ExtraArgs: tc.extraArgs}
			if got := inst.Args("a==1"); !slices.Equal(got, tc.want) {
				t.Errorf("Args() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestArgsDoesNotAliasCommand(t *testing.T) {
	command := make([]string, 1, 4)
	command[0] = "pip"
	inst := &Installer{Command: command}

	first := inst.Args("a")
	second := inst.Args("b")
	if first[2] != "a" || second[2] != "b" {
		t.Errorf("Args() shared backing array: %q, %q", first, second)
	}
}

func TestInstallAllOutcomes(t *testing.T) {
	rec := &runner.Recorder{
		Results: map[string]runner.Result{"b": {ExitCode: 1, Output: []byte("boom")}},
	}

	var outcomes []Outcome
	inst := &Installer{
		Runner:    rec,
		OnOutcome: func(o Outcome) { outcomes = append(outcomes, o) },
	}

	err := inst.InstallAll(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected failure, got nil")
	}

	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if !outcomes[0].Succeeded() || outcomes[0].Specifier != "a" {
		t.Errorf("outcome[0] = %+v, want success for a", outcomes[0])
	}
	if outcomes[1].Succeeded() || string(outcomes[1].Output) != "boom" {
		t.Errorf("outcome[1] = %+v, want failure with output", outcomes[1])
	}
}

func TestInstallAllDryRun(t *testing.T) {
	rec := &runner.Recorder{}

	var outcomes []Outcome
	inst := &Installer{
		Runner:    rec,
		DryRun:    true,
		OnOutcome: func(o Outcome) { outcomes = append(outcomes, o) },
	}

	if err := inst.InstallAll(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("InstallAll() error: %v", err)
	}
	if len(rec.Calls) != 0 {
		t.Errorf("dry run invoked runner %d times", len(rec.Calls))
	}
	if len(outcomes) != 2 || !outcomes[0].DryRun || outcomes[1].Specifier != "b" {
		t.Errorf("outcomes = %+v, want two dry-run outcomes", outcomes)
	}
}

func TestInstallAllContextCanceled(t *testing.T) {
	rec := &runner.Recorder{}
	inst := &Installer{Runner: rec}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := inst.InstallAll(ctx, []string{"a", "b"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("InstallAll() error = %v, want context.Canceled", err)
	}
	if len(rec.Calls) != 0 {
		t.Errorf("invoked runner %d times after cancel", len(rec.Calls))
	}
}

func TestInstallAllWithoutRunner(t *testing.T) {
	inst := &Installer{}
	err := inst.InstallAll(context.Background(), []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "no runner") {
		t.Errorf("InstallAll() error = %v, want no runner", err)
	}

	inst.DryRun = true
	if err := inst.InstallAll(context.Background(), []string{"a"}); err != nil {
		t.Errorf("dry run InstallAll() error = %v", err)
	}
}
