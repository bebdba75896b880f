package database

import (
	"context"
	"os"
	"os/exec"

	"github.com/kebairia/dbshield/internal/config"
)

// mariadbLockSignatures are the stderr fragments that mark a transient
// lock-contention failure from mysqldump.
var mariadbLockSignatures = []string{
	"lock wait timeout exceeded",
	"deadlock found when trying to get lock",
	"error 1205",
}

type mariadbDumper struct{}

func (d *mariadbDumper) Engine() config.Engine { return config.EngineMariaDB }

// Command builds the mysqldump invocation. The password goes through
// MYSQL_PWD so it never appears in the process list.
func (d *mariadbDumper) Command(ctx context.Context, conn config.Connection, artifactPath string, opts DumpOptions) *exec.Cmd {
	args := []string{
		"-h", conn.Host,
		"-P", conn.Port,
		"-u", conn.User,
		"--skip-dump-date",
		"--result-file=" + artifactPath,
	}
	if opts.SkipLockTables {
		args = append(args,
			"--skip-lock-tables",
			"--single-transaction",
			"--quick",
		)
	}
	args = append(args, conn.Database)

	cmd := exec.CommandContext(ctx, "mysqldump", args...)
	cmd.Env = append(os.Environ(), "MYSQL_PWD="+conn.Password)
	return cmd
}

func (d *mariadbDumper) IsLockError(stderr string) bool {
	return matchesAny(stderr, mariadbLockSignatures)
}
