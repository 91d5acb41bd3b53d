package cli

import (
	"github.com/Freeeeeet/lesson_scheduler/internal/app"
	"github.com/Freeeeeet/lesson_scheduler/internal/config"
	"github.com/spf13/cobra"
)

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance pass: reconcile payments, expire unpaid and complete elapsed bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := app.NewLogger(cfg.Environment)
			defer logger.Sync()

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.SweepOnce(cmd.Context())
		},
	}
}
