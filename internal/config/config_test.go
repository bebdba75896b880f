package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalTarget = `
targets:
  - name: shop
    engine: mariadb
    schedule: daily
    enabled: true
    connection:
      host: localhost
      port: "3306"
      user: backup
      password: secret
      database: shop
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalTarget)

	var cfg Config
	if err := cfg.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Daemon.PollInterval != DefaultPollInterval {
		t.Errorf("poll interval = %v, want %v", cfg.Daemon.PollInterval, DefaultPollInterval)
	}
	if cfg.Daemon.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("max concurrent = %d, want %d", cfg.Daemon.MaxConcurrent, DefaultMaxConcurrent)
	}
	if cfg.Daemon.Retry.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("max attempts = %d, want %d", cfg.Daemon.Retry.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Backup.Timeout != DefaultDumpTimeout {
		t.Errorf("timeout = %v, want %v", cfg.Backup.Timeout, DefaultDumpTimeout)
	}
	if got := cfg.Targets[0].RetentionCount; got != DefaultRetention {
		t.Errorf("retention = %d, want %d", got, DefaultRetention)
	}
}

func TestLoadParsesDurationsAndTimestamps(t *testing.T) {
	path := writeConfig(t, `
daemon:
  poll_interval: 90s
  shutdown_grace: 1m
  retry:
    initial_delay: 250ms
targets:
  - name: shop
    engine: postgres
    schedule: "0 3 * * *"
    enabled: true
    last_run_at: "2026-08-27T03:00:00Z"
    last_fingerprint: abc123
    connection:
      host: db.internal
      port: "5432"
      user: backup
      database: shop
`)

	var cfg Config
	if err := cfg.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Daemon.PollInterval != 90*time.Second {
		t.Errorf("poll interval = %v, want 90s", cfg.Daemon.PollInterval)
	}
	if cfg.Daemon.Retry.InitialDelay != 250*time.Millisecond {
		t.Errorf("initial delay = %v, want 250ms", cfg.Daemon.Retry.InitialDelay)
	}
	tgt := cfg.Targets[0]
	if tgt.LastRunAt == nil {
		t.Fatal("last_run_at not decoded")
	}
	want := time.Date(2026, 8, 27, 3, 0, 0, 0, time.UTC)
	if !tgt.LastRunAt.Equal(want) {
		t.Errorf("last_run_at = %v, want %v", tgt.LastRunAt, want)
	}
	if tgt.LastFingerprint != "abc123" {
		t.Errorf("last_fingerprint = %q, want abc123", tgt.LastFingerprint)
	}
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	incPath := filepath.Join(dir, "extra.yaml")
	err := os.WriteFile(incPath, []byte(`
backup:
  compress: true
`), 0o644)
	if err != nil {
		t.Fatalf("write include: %v", err)
	}

	path := writeConfig(t, `
include:
  - `+incPath+`
backup:
  output_directory: /var/backups
`+minimalTarget)

	var cfg Config
	if err := cfg.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Backup.Compress {
		t.Error("compress from include file not merged")
	}
	if cfg.Backup.OutputDirectory != "/var/backups" {
		t.Errorf("output dir = %q, want /var/backups", cfg.Backup.OutputDirectory)
	}
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	path := writeConfig(t, `
targets:
  - name: shop
    engine: mariadb
    schedule: daily
    connection: {database: shop}
  - name: shop
    engine: postgres
    schedule: daily
    connection: {database: shop2}
`)

	var cfg Config
	err := cfg.Load(path)
	if !errors.Is(err, ErrValidate) {
		t.Fatalf("Load = %v, want ErrValidate", err)
	}
}

func TestLoadRejectsUnknownEngine(t *testing.T) {
	path := writeConfig(t, `
targets:
  - name: shop
    engine: oracle
    schedule: daily
    connection: {database: shop}
`)

	var cfg Config
	err := cfg.Load(path)
	if !errors.Is(err, ErrValidate) {
		t.Fatalf("Load = %v, want ErrValidate", err)
	}
}

func TestParseEngine(t *testing.T) {
	cases := []struct {
		in      string
		want    Engine
		wantErr bool
	}{
		{"mariadb", EngineMariaDB, false},
		{"mysql", EngineMariaDB, false},
		{"postgres", EnginePostgres, false},
		{"oracle", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseEngine(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownEngine) {
				t.Errorf("ParseEngine(%q) err = %v, want ErrUnknownEngine", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseEngine(%q) = (%q, %v), want %q", tc.in, got, err, tc.want)
		}
	}
}
