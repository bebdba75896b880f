// Package database builds the external dump-tool invocations for each
// supported engine and classifies their failures. The engine set is closed;
// DumperFor is the only construction point.
package database

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kebairia/dbshield/internal/config"
)

// ErrTimeout marks a dump that exceeded its deadline.
var ErrTimeout = errors.New("dump timed out")

// DumpOptions tweaks a single dump invocation.
type DumpOptions struct {
	// SkipLockTables switches to the non-locking dump variant. Used on
	// retry after lock contention.
	SkipLockTables bool
}

// Dumper builds and classifies dump invocations for one engine. The
// executor only needs the command, the stderr text, and the artifact.
type Dumper interface {
	Engine() config.Engine
	// Command returns the dump subprocess, configured to write the dump
	// to artifactPath. Stderr wiring is the caller's job.
	Command(ctx context.Context, conn config.Connection, artifactPath string, opts DumpOptions) *exec.Cmd
	// IsLockError reports whether stderr text matches this engine's
	// lock-contention signatures.
	IsLockError(stderr string) bool
}

// DumperFor returns the dump strategy for the given engine.
func DumperFor(engine config.Engine) (Dumper, error) {
	switch engine {
	case config.EngineMariaDB:
		return &mariadbDumper{}, nil
	case config.EnginePostgres:
		return &postgresDumper{}, nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownEngine, engine)
}

// ArtifactPath builds the timestamped artifact path for one dump:
// <outDir>/<engine>/<database>/<timestamp>-<database>.sql. Timestamps keep
// every successful artifact distinct so none is ever overwritten.
func ArtifactPath(outDir string, engine config.Engine, database, tsFormat string, now time.Time) string {
	ts := now.Format(tsFormat)
	return filepath.Join(
		outDir,
		string(engine),
		database,
		fmt.Sprintf("%s-%s.sql", ts, database),
	)
}

// matchesAny reports whether stderr contains any of the given signatures,
// case-insensitively.
func matchesAny(stderr string, signatures []string) bool {
	lower := strings.ToLower(stderr)
	for _, sig := range signatures {
		if strings.Contains(lower, strings.ToLower(sig)) {
			return true
		}
	}
	return false
}
