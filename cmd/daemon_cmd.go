package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kebairia/dbshield/internal/logger"
	"github.com/kebairia/dbshield/internal/scheduler"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the backup scheduler in the foreground",
	Long: `daemon polls the configuration on a fixed interval, dispatches
due targets to a bounded worker pool, and records each outcome back
into the config file. SIGINT or SIGTERM triggers a graceful shutdown:
no new backups start and in-flight dumps get a grace period to finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(
			cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		exec, err := newExecutor(ctx, store)
		if err != nil {
			return err
		}

		daemon := scheduler.New(store, exec,
			scheduler.WithLogger(logger.Global()))
		return daemon.Run(ctx)
	},
}
