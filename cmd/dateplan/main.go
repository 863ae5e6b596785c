package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "dateplan",
		Short:         "Couple calendar server for anniversaries, schedules and datings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "dateplan.yaml", "config file path")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newPreviewCommand(opts),
		newVAPIDKeysCommand(),
	)
	return cmd
}
