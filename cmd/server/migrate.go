package main

import (
	"github.com/spf13/cobra"
	"github.com/subremind/backend/internal/repository"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			db, err := repository.NewDB(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				log.WithError(err).Error("database error")
				return err
			}
			defer db.Close()

			if err := repository.RunMigrations(cmd.Context(), db); err != nil {
				log.WithError(err).Error("migration error")
				return err
			}
			log.Info("database migrated")
			return nil
		},
	}
}
