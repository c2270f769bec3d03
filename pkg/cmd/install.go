package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentpkg/pindeps/pkg/installer"
	"github.com/agentpkg/pindeps/pkg/runner"
	"github.com/charmbracelet/huh"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
)

// newRunner builds the runner used by install. Tests replace it.
var newRunner = func(dir string, env []string, stream io.Writer) runner.Runner {
	return &runner.Exec{Dir: dir, Env: env, Stream: stream}
}

func newInstallCmd() *cobra.Command {
	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install descriptor dependencies one at a time",
		Long: `Installs every dependency declared by the descriptor, in order, each with
build isolation disabled so it compiles against the versions already
installed. The first failing install stops the run; its exit status
becomes pindeps' exit status.`,
		Args: cobra.NoArgs,
		RunE: runInstall,
	}

	installCmd.Flags().Bool("dry-run", false, "print each install command without running it")
	installCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	installCmd.Flags().BoolP("quiet", "q", false, "capture installer output instead of streaming it")

	return installCmd
}

func runInstall(cmd *cobra.Command, args []string) error {
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}

	specs, err := extract(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(specs) == 0 {
		fmt.Fprintf(out, "No dependencies declared by %s in %s\n", Cfg.Variable, Cfg.Descriptor)
		return nil
	}

	if !dryRun && !yes && isInteractive() {
		ok, err := confirmInstall(specs)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
	}

	var stream io.Writer
	if !quiet {
		stream = cmd.ErrOrStderr()
	}

	inst := &installer.Installer{
		// Relative specifiers such as "./vendor/pkg" resolve against the
		// descriptor's directory.
		Runner:    newRunner(filepath.Dir(Cfg.Descriptor), Cfg.Env, stream),
		Command:   Cfg.Command,
		ExtraArgs: Cfg.ExtraArgs,
		DryRun:    dryRun,
		OnOutcome: outcomePrinter(out, len(specs)),
		Logger:    GetLogger(cmd.Context()),
	}

	if err := inst.InstallAll(cmd.Context(), specs); err != nil {
		var failure *installer.InstallFailure
		if errors.As(err, &failure) && quiet && len(failure.Output) > 0 {
			// Output was captured, not streamed; show all of it.
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", failure.Output)
		}
		return err
	}

	if dryRun {
		fmt.Fprintf(out, "Would install %d dependenc%s from %s\n", len(specs), plural(len(specs)), Cfg.Descriptor)
	} else {
		fmt.Fprintf(out, "Installed %d dependenc%s from %s\n", len(specs), plural(len(specs)), Cfg.Descriptor)
	}
	return nil
}

// outcomePrinter reports each install attempt as a status line.
func outcomePrinter(w io.Writer, total int) func(installer.Outcome) {
	return func(o installer.Outcome) {
		progress := dimStyle.Render(fmt.Sprintf("[%d/%d]", o.Index+1, total))
		switch {
		case o.DryRun:
			fmt.Fprintf(w, "%s %s\n", progress, shellquote.Join(o.Args...))
		case o.Succeeded():
			fmt.Fprintf(w, "%s %s %s %s\n", progress, okStyle.Render("✓"), o.Specifier, dimStyle.Render(o.Duration.Round(time.Millisecond).String()))
		default:
			fmt.Fprintf(w, "%s %s %s %s\n", progress, failStyle.Render("✗"), o.Specifier, dimStyle.Render(fmt.Sprintf("exit %d", o.ExitCode)))
		}
	}
}

// confirmInstall asks before mutating the current environment.
func confirmInstall(specs []string) (bool, error) {
	confirmed := true
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Install %d dependenc%s without build isolation?", len(specs), plural(len(specs)))).
				Description(strings.Join(specs, "\n")).
				Affirmative("Install").
				Negative("Cancel").
				Value(&confirmed),
		),
	).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return confirmed, nil
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
