package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kebairia/dbshield/internal/config"
	"github.com/kebairia/dbshield/internal/schedule"
)

var addFlags struct {
	engine    string
	host      string
	port      string
	user      string
	password  string
	database  string
	schedule  string
	outputDir string
	retention int
	skipLock  bool
	vaultRole string
	disabled  bool
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a new backup target to the configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var store *config.Store
		var err error
		if _, statErr := os.Stat(ConfigFile); errors.Is(statErr, os.ErrNotExist) {
			store, err = config.OpenDefault(ConfigFile)
		} else {
			store, err = openStore()
		}
		if err != nil {
			return err
		}

		engine, err := config.ParseEngine(addFlags.engine)
		if err != nil {
			return err
		}
		if _, err := schedule.Parse(addFlags.schedule); err != nil {
			return fmt.Errorf("invalid --schedule: %w", err)
		}

		target := config.Target{
			Name:   args[0],
			Engine: engine,
			Connection: config.Connection{
				Host:      addFlags.host,
				Port:      addFlags.port,
				User:      addFlags.user,
				Password:  addFlags.password,
				Database:  addFlags.database,
				VaultRole: addFlags.vaultRole,
			},
			Schedule:       addFlags.schedule,
			Enabled:        !addFlags.disabled,
			OutputDir:      addFlags.outputDir,
			RetentionCount: addFlags.retention,
			SkipLockTables: addFlags.skipLock,
		}
		if err := store.Put(target); err != nil {
			return err
		}
		fmt.Printf("added target %q (%s, schedule %q)\n",
			target.Name, target.Engine, target.Schedule)
		return nil
	},
}

func init() {
	f := addCmd.Flags()
	f.StringVar(&addFlags.engine, "engine", "", "database engine: mariadb, mysql or postgres")
	f.StringVar(&addFlags.host, "host", "localhost", "database host")
	f.StringVar(&addFlags.port, "port", "", "database port (defaults per engine)")
	f.StringVar(&addFlags.user, "user", "", "database user")
	f.StringVar(&addFlags.password, "password", "", "database password (prefer --vault-role)")
	f.StringVar(&addFlags.database, "database", "", "database name to dump")
	f.StringVar(&addFlags.schedule, "schedule", "daily",
		"preset (hourly, daily, weekly, monthly) or cron expression")
	f.StringVar(&addFlags.outputDir, "output-dir", "", "per-target artifact directory override")
	f.IntVar(&addFlags.retention, "retention", 0, "artifacts to keep (0 uses the global default)")
	f.BoolVar(&addFlags.skipLock, "skip-lock-tables", false,
		"retry with lock-avoiding dump flags after a lock failure")
	f.StringVar(&addFlags.vaultRole, "vault-role", "", "Vault database role for dynamic credentials")
	f.BoolVar(&addFlags.disabled, "disabled", false, "create the target disabled")

	_ = addCmd.MarkFlagRequired("engine")
	_ = addCmd.MarkFlagRequired("database")
}
