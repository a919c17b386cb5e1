package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"quizdeck/internal/config"
	"quizdeck/internal/infra/postgres"
)

// newMigrateCmd applies database migrations.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return errors.New("postgres url not configured")
			}
			logger := config.NewLogger(cfg)

			db := postgres.OpenBun(cfg.Postgres.URL)
			defer db.Close()
			group, err := postgres.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			if group.IsZero() {
				logger.Info("no new migrations")
				return nil
			}
			logger.WithField("group", group.String()).Info("migrations applied")
			return nil
		},
	}
}
