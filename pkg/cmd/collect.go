package cmd

import (
	"github.com/agentpkg/pindeps/pkg/collect"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newCollectCmd() *cobra.Command {
	collectCmd := &cobra.Command{
		Use:   "collect [dir]",
		Short: "List test files the host test runner should collect",
		Long: `Walks dir (default ".") for test files named <prefix>*<extension>,
test_*.hy unless configured under [test] in pindeps.toml.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCollect,
	}

	collectCmd.Flags().StringP("output", "o", "table", "output format: table, json, or yaml")

	return collectCmd
}

func runCollect(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	c := &collect.Collector{
		Prefix:    Cfg.Test.Prefix,
		Extension: Cfg.Test.Extension,
	}
	modules, err := c.Walk(root)
	if err != nil {
		return err
	}
	GetLogger(cmd.Context()).Debug("collected test modules", "root", root, "count", len(modules))

	rows := make([]table.Row, len(modules))
	for i, m := range modules {
		rows[i] = table.Row{m.Name, m.Path}
	}

	if modules == nil {
		modules = []*collect.Module{}
	}
	return render(cmd.OutOrStdout(), format, modules, table.Row{"Module", "Path"}, rows)
}
