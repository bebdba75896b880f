package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kebairia/dbshield/internal/logger"
	"github.com/kebairia/dbshield/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Back up all enabled targets once, ignoring their schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		exec, err := newExecutor(cmd.Context(), store)
		if err != nil {
			return err
		}
		daemon := scheduler.New(store, exec,
			scheduler.WithLogger(logger.Global()))
		return daemon.RunAll(cmd.Context())
	},
}
