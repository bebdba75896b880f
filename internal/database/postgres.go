package database

import (
	"context"
	"os"
	"os/exec"

	"github.com/kebairia/dbshield/internal/config"
)

// postgresLockSignatures are the stderr fragments that mark a transient
// lock-contention failure from pg_dump.
var postgresLockSignatures = []string{
	"could not obtain lock",
	"lock_timeout",
	"canceling statement due to lock timeout",
}

type postgresDumper struct{}

func (d *postgresDumper) Engine() config.Engine { return config.EnginePostgres }

// Command builds the pg_dump invocation. Connection parameters go through
// the PG* environment, PGPASSWORD included, for non-interactive auth.
func (d *postgresDumper) Command(ctx context.Context, conn config.Connection, artifactPath string, opts DumpOptions) *exec.Cmd {
	args := []string{
		"-f", artifactPath,
	}
	if opts.SkipLockTables {
		// pg_dump has no lock-free mode; a short lock_timeout makes it
		// fail fast instead of queueing behind a long-lived lock.
		args = append(args, "--lock-wait-timeout=5000")
	}

	cmd := exec.CommandContext(ctx, "pg_dump", args...)
	cmd.Env = append(os.Environ(),
		"PGHOST="+conn.Host,
		"PGPORT="+conn.Port,
		"PGUSER="+conn.User,
		"PGDATABASE="+conn.Database,
	)
	if conn.Password != "" {
		cmd.Env = append(cmd.Env, "PGPASSWORD="+conn.Password)
	}
	return cmd
}

func (d *postgresDumper) IsLockError(stderr string) bool {
	return matchesAny(stderr, postgresLockSignatures)
}
