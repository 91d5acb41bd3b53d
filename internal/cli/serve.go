package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/lesson_scheduler/internal/app"
	"github.com/Freeeeeet/lesson_scheduler/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the background sweeper and notification delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := app.NewLogger(cfg.Environment)
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				logger.Error("Failed to start", zap.Error(err))
				return err
			}
			defer application.Close()

			logger.Info("Starting lesson scheduler",
				zap.String("environment", cfg.Environment),
				zap.String("storage", cfg.Storage),
				zap.String("confirmation_policy", cfg.ConfirmationPolicy),
			)
			return application.Serve(ctx)
		},
	}
}
