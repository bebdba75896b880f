package database

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kebairia/dbshield/internal/config"
)

var testConn = config.Connection{
	Host:     "db.example.com",
	Port:     "3306",
	User:     "backup",
	Password: "hunter2",
	Database: "orders",
}

func TestDumperFor(t *testing.T) {
	for _, engine := range []config.Engine{config.EngineMariaDB, config.EnginePostgres} {
		d, err := DumperFor(engine)
		if err != nil {
			t.Fatalf("DumperFor(%q): %v", engine, err)
		}
		if d.Engine() != engine {
			t.Errorf("Engine() = %q, want %q", d.Engine(), engine)
		}
	}
	if _, err := DumperFor(config.Engine("oracle")); err == nil {
		t.Error("DumperFor with unknown engine should fail")
	}
}

func TestArtifactPath(t *testing.T) {
	now := time.Date(2025, 6, 1, 2, 30, 0, 0, time.UTC)
	got := ArtifactPath("/var/backups", config.EngineMariaDB, "orders", "2006-01-02_15-04-05", now)
	want := filepath.Join("/var/backups", "mariadb", "orders", "2025-06-01_02-30-00-orders.sql")
	if got != want {
		t.Errorf("ArtifactPath = %q, want %q", got, want)
	}
}

func TestMariaDBCommand(t *testing.T) {
	d := &mariadbDumper{}
	cmd := d.Command(context.Background(), testConn, "/tmp/out.sql", DumpOptions{})

	if filepath.Base(cmd.Path) != "mysqldump" && cmd.Args[0] != "mysqldump" {
		t.Errorf("expected mysqldump invocation, got %q", cmd.Args[0])
	}
	if slices.Contains(cmd.Args, "--skip-lock-tables") {
		t.Error("skip-lock-tables must not be set by default")
	}
	if !slices.Contains(cmd.Args, "--result-file=/tmp/out.sql") {
		t.Errorf("missing result-file arg in %v", cmd.Args)
	}
	// Database name comes last.
	if cmd.Args[len(cmd.Args)-1] != "orders" {
		t.Errorf("database must be the final arg, got %v", cmd.Args)
	}
	if !slices.Contains(cmd.Env, "MYSQL_PWD=hunter2") {
		t.Error("password must be passed via MYSQL_PWD")
	}
	for _, arg := range cmd.Args {
		if strings.Contains(arg, "hunter2") {
			t.Error("password must never appear in argv")
		}
	}
}

func TestMariaDBCommand_SkipLockTables(t *testing.T) {
	d := &mariadbDumper{}
	cmd := d.Command(context.Background(), testConn, "/tmp/out.sql", DumpOptions{SkipLockTables: true})
	for _, want := range []string{"--skip-lock-tables", "--single-transaction", "--quick"} {
		if !slices.Contains(cmd.Args, want) {
			t.Errorf("missing %s in %v", want, cmd.Args)
		}
	}
}

func TestPostgresCommand(t *testing.T) {
	d := &postgresDumper{}
	conn := testConn
	conn.Port = "5432"
	cmd := d.Command(context.Background(), conn, "/tmp/out.sql", DumpOptions{})

	if filepath.Base(cmd.Path) != "pg_dump" && cmd.Args[0] != "pg_dump" {
		t.Errorf("expected pg_dump invocation, got %q", cmd.Args[0])
	}
	for _, want := range []string{
		"PGHOST=db.example.com",
		"PGPORT=5432",
		"PGUSER=backup",
		"PGDATABASE=orders",
		"PGPASSWORD=hunter2",
	} {
		if !slices.Contains(cmd.Env, want) {
			t.Errorf("missing %s in command env", want)
		}
	}
}

func TestLockErrorClassification(t *testing.T) {
	mariadb := &mariadbDumper{}
	postgres := &postgresDumper{}

	cases := []struct {
		d      Dumper
		stderr string
		want   bool
	}{
		{mariadb, "mysqldump: Error 1205: Lock wait timeout exceeded; try restarting transaction", true},
		{mariadb, "mysqldump: Got error: 2003: Can't connect to MySQL server", false},
		{mariadb, "Deadlock found when trying to get lock", true},
		{postgres, "pg_dump: error: could not obtain lock on relation \"orders\"", true},
		{postgres, "pg_dump: error: connection to server failed", false},
		{postgres, "canceling statement due to lock timeout", true},
		{mariadb, "", false},
	}
	for _, tc := range cases {
		if got := tc.d.IsLockError(tc.stderr); got != tc.want {
			t.Errorf("%s IsLockError(%q) = %v, want %v", tc.d.Engine(), tc.stderr, got, tc.want)
		}
	}
}
