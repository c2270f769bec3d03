package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/agentpkg/pindeps/pkg/config"
	"github.com/agentpkg/pindeps/pkg/descriptor"
	"github.com/agentpkg/pindeps/pkg/installer"
	"github.com/spf13/cobra"
)

var (
	flagConfig     string
	flagDescriptor string
	flagVariable   string
	flagCommand    []string
	flagVerbose    bool

	// Cfg holds the resolved configuration, available to all subcommands
	// after PersistentPreRunE completes.
	Cfg *config.Config
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pindeps",
		Short: "Install pinned build dependencies without build isolation",
		Long: `pindeps reads the dependency list bound by the first statement of a project
descriptor (setup.py by default) and installs each entry in order with
"<command> install <spec> --no-build-isolation", stopping at the first failure.

Only the first statement of the descriptor is evaluated.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			withLogger(cmd)

			cfg, err := config.Load(flagConfig, config.Overrides{
				Descriptor: flagDescriptor,
				Variable:   flagVariable,
				Command:    flagCommand,
			})
			if err != nil {
				return err
			}
			Cfg = cfg
			GetLogger(cmd.Context()).Debug("resolved config", "descriptor", cfg.Descriptor, "variable", cfg.Variable, "command", cfg.Command)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to the manifest (default ./"+config.ManifestFileName+")")
	root.PersistentFlags().StringVarP(&flagDescriptor, "descriptor", "f", "", "descriptor file whose first statement lists dependencies")
	root.PersistentFlags().StringVar(&flagVariable, "variable", "", "name bound by the descriptor's first statement")
	root.PersistentFlags().StringSliceVar(&flagCommand, "command", nil, "installer program and leading args (e.g. python,-m,pip)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newInitCmd())
	root.AddCommand(newInstallCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newCollectCmd())

	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), failStyle.Render("Error:"), err)
		stop()
		os.Exit(ExitCode(err))
	}
}

// ExitCode maps an error to the process exit status. A failed install
// propagates the installer's own exit status.
func ExitCode(err error) int {
	var failure *installer.InstallFailure
	switch {
	case err == nil:
		return 0
	case errors.As(err, &failure):
		if failure.ExitCode > 0 {
			return failure.ExitCode
		}
		return 1
	case errors.Is(err, descriptor.ErrMalformedDescriptor), errors.Is(err, descriptor.ErrMissingDependencyList):
		return 2
	default:
		return 1
	}
}

// extract reads the dependency list named by the resolved configuration.
func extract(cmd *cobra.Command) ([]string, error) {
	e := &descriptor.Extractor{
		Variable: Cfg.Variable,
		MaxSteps: Cfg.MaxEvalSteps,
		Logger:   GetLogger(cmd.Context()),
	}
	return e.Extract(Cfg.Descriptor)
}
