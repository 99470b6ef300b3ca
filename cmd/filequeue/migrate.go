package main

import (
	"fmt"

	"github.com/phrazzld/filequeue/internal/config"
	"github.com/phrazzld/filequeue/internal/platform/postgres"
	"github.com/phrazzld/filequeue/internal/redact"
	"github.com/spf13/cobra"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the postgres driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Queue.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate requires queue.driver=%s, configured driver is %s",
					config.DriverPostgres, cfg.Queue.Driver)
			}

			log, err := root.newLogger(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			log.Info("applying migrations", "database", redact.URL(cfg.Database.URL))
			db, err := postgres.Open(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to open database: %s", redact.Error(err))
			}
			defer db.Close()

			if err := postgres.Migrate(ctx, db, log); err != nil {
				return err
			}
			version, err := postgres.SchemaVersion(ctx, db, log)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Schema is at version %d.\n", version)
			return nil
		},
	}
}
