package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kebairia/dbshield/internal/config"
	"github.com/kebairia/dbshield/internal/schedule"
)

var editFlags struct {
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
}

var editCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Edit an existing backup target",
	Long: `edit changes only the fields whose flags are given; everything else,
including the target's run history, is left as-is. A running daemon
picks the change up on its next poll tick.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		target, err := store.Get(args[0])
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("engine") {
			engine, err := config.ParseEngine(editFlags.engine)
			if err != nil {
				return err
			}
			target.Engine = engine
		}
		if flags.Changed("host") {
			target.Connection.Host = editFlags.host
		}
		if flags.Changed("port") {
			target.Connection.Port = editFlags.port
		}
		if flags.Changed("user") {
			target.Connection.User = editFlags.user
		}
		if flags.Changed("password") {
			target.Connection.Password = editFlags.password
		}
		if flags.Changed("database") {
			target.Connection.Database = editFlags.database
		}
		if flags.Changed("schedule") {
			if _, err := schedule.Parse(editFlags.schedule); err != nil {
				return fmt.Errorf("invalid --schedule: %w", err)
			}
			target.Schedule = editFlags.schedule
		}
		if flags.Changed("output-dir") {
			target.OutputDir = editFlags.outputDir
		}
		if flags.Changed("retention") {
			target.RetentionCount = editFlags.retention
		}
		if flags.Changed("skip-lock-tables") {
			target.SkipLockTables = editFlags.skipLock
		}
		if flags.Changed("vault-role") {
			target.Connection.VaultRole = editFlags.vaultRole
		}

		if err := store.Update(target); err != nil {
			return err
		}
		fmt.Printf("updated target %q\n", target.Name)
		return nil
	},
}

func init() {
	f := editCmd.Flags()
	f.StringVar(&editFlags.engine, "engine", "", "database engine: mariadb, mysql or postgres")
	f.StringVar(&editFlags.host, "host", "", "database host")
	f.StringVar(&editFlags.port, "port", "", "database port")
	f.StringVar(&editFlags.user, "user", "", "database user")
	f.StringVar(&editFlags.password, "password", "", "database password (prefer --vault-role)")
	f.StringVar(&editFlags.database, "database", "", "database name to dump")
	f.StringVar(&editFlags.schedule, "schedule", "",
		"preset (hourly, daily, weekly, monthly) or cron expression")
	f.StringVar(&editFlags.outputDir, "output-dir", "", "per-target artifact directory override")
	f.IntVar(&editFlags.retention, "retention", 0, "artifacts to keep (0 uses the global default)")
	f.BoolVar(&editFlags.skipLock, "skip-lock-tables", false,
		"retry with lock-avoiding dump flags after a lock failure")
	f.StringVar(&editFlags.vaultRole, "vault-role", "", "Vault database role for dynamic credentials")
}
