package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kebairia/dbshield/internal/config"
	"github.com/kebairia/dbshield/internal/executor"
	"github.com/kebairia/dbshield/internal/logger"
	"github.com/kebairia/dbshield/internal/vault"
)

// ConfigFile is the path to the YAML configuration.
var (
	ConfigFile string
	rootCmd    = &cobra.Command{
		Use:   "dbshield",
		Short: "Scheduled database backups for MariaDB and PostgreSQL",
		Long: `dbshield runs scheduled dumps of MariaDB/MySQL and PostgreSQL
databases, skipping runs when the data has not changed since the
last successful backup. Targets live in a YAML configuration file
and can be managed with the add, list, delete, enable and disable
subcommands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() {
	log, _ := logger.Init()
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", "error", err)
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "./configs/config.yaml", "path to YAML config file")
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

// openStore loads the config file named by the --config flag.
func openStore() (*config.Store, error) {
	store, err := config.Open(ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", ConfigFile, err)
	}
	return store, nil
}

// newExecutor builds the backup executor, attaching a Vault credential
// source when the config carries a Vault address.
func newExecutor(ctx context.Context, store *config.Store) (*executor.Executor, error) {
	opts := []executor.Option{executor.WithLogger(logger.Global())}

	vc := store.Vault()
	if vc.Address != "" {
		client, err := vault.NewClient(ctx,
			vault.WithAddress(vc.Address),
			vault.WithAppRole(vc.RoleID, vc.RoleName),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, executor.WithCredentials(client))
	}

	return executor.New(store.Backup(), store.Daemon().Retry, opts...), nil
}
