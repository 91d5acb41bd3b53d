// Package cli команды бинарника scheduler.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "scheduler",
		Short: "Lesson scheduling service for the tutoring marketplace.",
		Long: `Turns tutors' weekly availability into bookable slots, keeps bookings
free of overlaps and drives them through payment and confirmation.
Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newSweepCommand())
	return root
}
