// Package fingerprint computes cheap content fingerprints of a database so
// the executor can skip a dump when nothing changed. Fingerprints come from
// engine-reported metadata (table row estimates, modification counters,
// binlog/WAL position), never from hashing a dump.
package fingerprint

import (
	"context"
	"errors"
	"fmt"

	"github.com/kebairia/dbshield/internal/config"
)

// Fingerprint is an opaque digest of a database's current content state.
// Callers only ever compare fingerprints for bit-equality.
type Fingerprint string

// ErrUnavailable indicates the fingerprint could not be computed (connection
// failure, missing privileges, unsupported engine feature). Policy: callers
// treat this as "not a match" and never skip the dump.
var ErrUnavailable = errors.New("fingerprint unavailable")

// ShouldSkip reports whether a new dump is unnecessary: true iff a prior
// fingerprint exists and the fresh one is identical.
func ShouldSkip(fresh Fingerprint, last string) bool {
	return last != "" && string(fresh) == last
}

// Prober computes a fingerprint for one engine.
type Prober interface {
	Fingerprint(ctx context.Context, conn config.Connection) (Fingerprint, error)
}

// ProberFor returns the probe implementation for the given engine.
func ProberFor(engine config.Engine) (Prober, error) {
	switch engine {
	case config.EngineMariaDB:
		return &mariadbProber{}, nil
	case config.EnginePostgres:
		return &postgresProber{}, nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownEngine, engine)
}
