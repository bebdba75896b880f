package config

import (
	"errors"
	"fmt"
	"time"
)

// Engine identifies the database engine behind a target. The set is closed:
// adding an engine means adding a dump strategy and a fingerprint probe.
type Engine string

const (
	EngineMariaDB  Engine = "mariadb"
	EnginePostgres Engine = "postgres"
)

// ErrUnknownEngine indicates an engine value outside the supported set.
var ErrUnknownEngine = errors.New("unknown database engine")

// ParseEngine validates a raw engine string. "mysql" is accepted as an
// alias for mariadb since both are dumped with mysqldump.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case EngineMariaDB, EnginePostgres:
		return Engine(s), nil
	}
	if s == "mysql" {
		return EngineMariaDB, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEngine, s)
}

// Connection holds everything needed to reach one database. Password may be
// empty when credentials come from Vault (VaultRole set).
type Connection struct {
	Host      string `mapstructure:"host"       yaml:"host"`
	Port      string `mapstructure:"port"       yaml:"port"`
	User      string `mapstructure:"user"       yaml:"user"`
	Password  string `mapstructure:"password"   yaml:"password,omitempty"`
	Database  string `mapstructure:"database"   yaml:"database"`
	VaultRole string `mapstructure:"vault_role" yaml:"vault_role,omitempty"`
}

// Target is one configured backup job. Name is the store key and must be
// unique. LastRunAt and LastFingerprint are written back by the daemon;
// everything else is operator-owned.
type Target struct {
	Name           string     `mapstructure:"name"             yaml:"name"`
	Engine         Engine     `mapstructure:"engine"           yaml:"engine"`
	Connection     Connection `mapstructure:"connection"       yaml:"connection"`
	Schedule       string     `mapstructure:"schedule"         yaml:"schedule"`
	Enabled        bool       `mapstructure:"enabled"          yaml:"enabled"`
	OutputDir      string     `mapstructure:"output_dir"       yaml:"output_dir,omitempty"`
	RetentionCount int        `mapstructure:"retention_count"  yaml:"retention_count,omitempty"`
	SkipLockTables bool       `mapstructure:"skip_lock_tables" yaml:"skip_lock_tables,omitempty"`

	// LastRunAt is the time of the last attempted run, successful or not.
	LastRunAt *time.Time `mapstructure:"last_run_at" yaml:"last_run_at,omitempty"`
	// LastFingerprint is the content fingerprint as of the last successful,
	// non-skipped backup.
	LastFingerprint string `mapstructure:"last_fingerprint" yaml:"last_fingerprint,omitempty"`
}

// Validate checks the operator-owned fields of a target.
func (t *Target) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: target name is required", ErrValidate)
	}
	if _, err := ParseEngine(string(t.Engine)); err != nil {
		return fmt.Errorf("%w: target %q: %v", ErrValidate, t.Name, err)
	}
	if t.Connection.Database == "" {
		return fmt.Errorf("%w: target %q: database name is required", ErrValidate, t.Name)
	}
	if t.Schedule == "" {
		return fmt.Errorf("%w: target %q: schedule is required", ErrValidate, t.Name)
	}
	return nil
}
