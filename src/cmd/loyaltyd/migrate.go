package main

import (
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence"
	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/persistence/schema"
	"github.com/spf13/cobra"
)

func migrateCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			db, err := persistence.Open(persistence.Options{DSN: cfg.Database.DSN, LogSQL: cfg.Database.LogSQL})
			if err != nil {
				return err
			}
			defer persistence.Close(db)

			if err := schema.Migrate(db); err != nil {
				return err
			}
			logger.Info("schema migrated", "dsn", cfg.Database.DSN)
			return nil
		},
	}
}
