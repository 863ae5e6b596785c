package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/dateplan/internal/config"
	"github.com/dukerupert/dateplan/internal/database"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}

			db, err := database.OpenNoMigrate(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			return database.Migrate(db, args[0])
		},
	}
}
