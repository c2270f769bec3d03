package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/agentpkg/pindeps/pkg/config"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// installCommands are offered when init runs interactively.
var installCommands = [][]string{
	{"pip"},
	{"python", "-m", "pip"},
	{"uv", "pip"},
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a pindeps.toml manifest",
		Long:  "Writes a pindeps.toml with default settings into the working directory.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
		// init does not need config resolution; skip the root PersistentPreRunE.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			withLogger(cmd)
			return nil
		},
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	cfg := config.Default()
	if flagDescriptor != "" {
		cfg.Descriptor = flagDescriptor
	}
	if flagVariable != "" {
		cfg.Variable = flagVariable
	}

	command := flagCommand
	if len(command) == 0 && isInteractive() {
		if command, err = promptCommand(); err != nil {
			return err
		}
	}
	if len(command) > 0 {
		cfg.Command = command
	}

	if _, err := config.Init(wd, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", config.ManifestFileName)
	return nil
}

// promptCommand uses huh to pick the installer invoked per dependency.
func promptCommand() ([]string, error) {
	options := make([]huh.Option[int], len(installCommands))
	for i, c := range installCommands {
		options[i] = huh.NewOption(strings.Join(c, " ")+" install ...", i)
	}

	var selected int
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Which installer should pindeps run?").
				Options(options...).
				Value(&selected),
		),
	).Run()
	if err != nil {
		return nil, fmt.Errorf("installer prompt failed: %w", err)
	}

	return installCommands[selected], nil
}
