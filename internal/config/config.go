package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// ErrLoad indicates a failure to read or parse the YAML configuration.
var ErrLoad = errors.New("config load failed")

// ErrValidate indicates that the loaded configuration is invalid.
var ErrValidate = errors.New("configuration validation failed")

// Config is the top-level YAML configuration file.
type Config struct {
	Include []string     `mapstructure:"include" yaml:"include,omitempty"`
	Daemon  DaemonConfig `mapstructure:"daemon"  yaml:"daemon"`
	Backup  BackupConfig `mapstructure:"backup"  yaml:"backup"`
	Vault   VaultConfig  `mapstructure:"vault"   yaml:"vault,omitempty"`
	Targets []Target     `mapstructure:"targets" yaml:"targets"`
}

// DaemonConfig holds the scheduler loop settings.
type DaemonConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"  yaml:"poll_interval"`
	MaxConcurrent int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
	Retry         RetryConfig   `mapstructure:"retry"          yaml:"retry"`
}

// RetryConfig controls the lock-contention retry policy. The values are
// deliberately configurable; there is no product-blessed numeric schedule.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"  yaml:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	Multiplier   float64       `mapstructure:"multiplier"    yaml:"multiplier"`
	MaxDelay     time.Duration `mapstructure:"max_delay"     yaml:"max_delay"`

	// LockErrorPatterns extends the built-in per-engine lock error
	// signatures used to classify a dump failure as retryable.
	LockErrorPatterns []string `mapstructure:"lock_error_patterns" yaml:"lock_error_patterns,omitempty"`
}

// BackupConfig contains global backup options.
type BackupConfig struct {
	OutputDirectory string        `mapstructure:"output_directory" yaml:"output_directory"`
	Compress        bool          `mapstructure:"compress"         yaml:"compress"`
	TimestampFormat string        `mapstructure:"timestamp_format" yaml:"timestamp_format"`
	Timeout         time.Duration `mapstructure:"timeout"          yaml:"timeout"`
}

// VaultConfig holds connection settings for HashiCorp Vault.
type VaultConfig struct {
	Address  string `mapstructure:"address"   yaml:"address,omitempty"`
	RoleID   string `mapstructure:"role_id"   yaml:"role_id,omitempty"`
	RoleName string `mapstructure:"role_name" yaml:"role_name,omitempty"`
}

// Defaults applied where the file leaves a setting unset.
const (
	DefaultPollInterval    = 60 * time.Second
	DefaultMaxConcurrent   = 2
	DefaultShutdownGrace   = 30 * time.Second
	DefaultMaxAttempts     = 3
	DefaultInitialDelay    = 5 * time.Second
	DefaultMultiplier      = 2.0
	DefaultMaxDelay        = 2 * time.Minute
	DefaultTimestampFormat = "2006-01-02_15-04-05"
	DefaultDumpTimeout     = 30 * time.Minute
	DefaultRetention       = 5
)

// Load reads the configuration from the given YAML file using Viper,
// merges any included files, and unmarshals into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("dbshield")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read base config %s: %v", ErrLoad, path, err)
	}

	// Merge include files (if any)
	for _, inc := range v.GetStringSlice("include") {
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoad, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoad, inc, err)
		}
	}

	// The store writes last_run_at back as an RFC3339 string; decode it
	// on the way in alongside the default duration/slice hooks.
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(c, hook); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoad, err)
	}

	c.applyDefaults()
	return c.validate()
}

func (c *Config) applyDefaults() {
	if c.Daemon.PollInterval <= 0 {
		c.Daemon.PollInterval = DefaultPollInterval
	}
	if c.Daemon.MaxConcurrent <= 0 {
		c.Daemon.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Daemon.ShutdownGrace <= 0 {
		c.Daemon.ShutdownGrace = DefaultShutdownGrace
	}
	if c.Daemon.Retry.MaxAttempts <= 0 {
		c.Daemon.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.Daemon.Retry.InitialDelay <= 0 {
		c.Daemon.Retry.InitialDelay = DefaultInitialDelay
	}
	if c.Daemon.Retry.Multiplier <= 1 {
		c.Daemon.Retry.Multiplier = DefaultMultiplier
	}
	if c.Daemon.Retry.MaxDelay <= 0 {
		c.Daemon.Retry.MaxDelay = DefaultMaxDelay
	}
	if c.Backup.TimestampFormat == "" {
		c.Backup.TimestampFormat = DefaultTimestampFormat
	}
	if c.Backup.Timeout <= 0 {
		c.Backup.Timeout = DefaultDumpTimeout
	}
	for i := range c.Targets {
		if c.Targets[i].OutputDir == "" {
			c.Targets[i].OutputDir = c.Backup.OutputDirectory
		}
		if c.Targets[i].RetentionCount <= 0 {
			c.Targets[i].RetentionCount = DefaultRetention
		}
	}
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Targets))
	for i := range c.Targets {
		t := &c.Targets[i]
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate target name %q", ErrValidate, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}
