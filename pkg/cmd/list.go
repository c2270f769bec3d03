package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type dependencyList struct {
	Descriptor   string   `json:"descriptor"`
	Variable     string   `json:"variable"`
	Dependencies []string `json:"dependencies"`
}

func newListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show the dependencies declared by the descriptor",
		Long:  "Evaluates only the descriptor's first statement and prints the dependency specifiers in install order.",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	listCmd.Flags().StringP("output", "o", "table", "output format: table, json, or yaml")

	return listCmd
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	specs, err := extract(cmd)
	if err != nil {
		return err
	}

	rows := make([]table.Row, len(specs))
	for i, s := range specs {
		rows[i] = table.Row{i + 1, s}
	}

	return render(cmd.OutOrStdout(), format, dependencyList{
		Descriptor:   Cfg.Descriptor,
		Variable:     Cfg.Variable,
		Dependencies: specs,
	}, table.Row{"#", "Specifier"}, rows)
}
