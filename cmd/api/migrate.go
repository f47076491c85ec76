package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/deal-portal/internal/config"
	"github.com/spec-kit/deal-portal/internal/observability"
	"github.com/spec-kit/deal-portal/internal/persistence"
)

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		Long: `Apply the SQL files in the migrations directory in lexical order.

Every file is written to be re-runnable, so the whole set is applied each time.

Examples:
  deal-portal migrate
  deal-portal migrate --dir ./migrations`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Postgres.DSN == "" {
				return fmt.Errorf("POSTGRES_DSN is required")
			}
			if dir == "" {
				dir = cfg.Postgres.MigrationsDir
			}

			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return fmt.Errorf("failed to connect postgres: %w", err)
			}
			defer pg.Close()

			return persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), dir, logger)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (defaults to POSTGRES_MIGRATIONS_DIR)")

	return cmd
}
