package cli

import (
	"fmt"

	"github.com/Freeeeeet/lesson_scheduler/internal/app"
	"github.com/Freeeeeet/lesson_scheduler/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCommand() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations (or roll back the last one with --down)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Storage != "postgres" {
				return fmt.Errorf("migrate requires STORAGE=postgres")
			}

			logger := app.NewLogger(cfg.Environment)
			defer logger.Sync()

			ctx := cmd.Context()
			pool, err := app.OpenPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := app.NewMigrator(pool, logger)
			if err != nil {
				return err
			}
			defer migrator.Close()

			if down {
				if err := migrator.Down(ctx); err != nil {
					return err
				}
			} else if err := migrator.Up(ctx); err != nil {
				return err
			}

			version, err := migrator.Version(ctx)
			if err != nil {
				return err
			}
			logger.Info("Database schema version", zap.Int64("version", version))
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}
