// Package executor runs one backup job for one target: dedup pre-check,
// dump subprocess supervision, lock-error retry with bounded exponential
// backoff, and post-success housekeeping (compression, retention,
// metadata).
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kebairia/dbshield/internal/config"
	"github.com/kebairia/dbshield/internal/database"
	"github.com/kebairia/dbshield/internal/fingerprint"
	"github.com/kebairia/dbshield/internal/logger"
)

// CredentialSource resolves a target's connection credentials at execution
// time. The Vault client implements this; a nil source means the config's
// static credentials are used as-is.
type CredentialSource interface {
	Resolve(ctx context.Context, conn config.Connection) (config.Connection, error)
}

// Option overrides an Executor default.
type Option func(*Executor)

// WithRunner substitutes the dump subprocess runner. Used in tests.
func WithRunner(r DumpRunner) Option {
	return func(e *Executor) { e.runner = r }
}

// WithProberFunc substitutes the fingerprint probe lookup. Used in tests.
func WithProberFunc(f func(config.Engine) (fingerprint.Prober, error)) Option {
	return func(e *Executor) { e.proberFor = f }
}

// WithCredentials sets the credential source for targets with a Vault role.
func WithCredentials(cs CredentialSource) Option {
	return func(e *Executor) { e.creds = cs }
}

// WithLogger overrides the logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor executes backup jobs. Safe for concurrent use across targets;
// per-target serialization is the scheduler's job.
type Executor struct {
	backup    config.BackupConfig
	retry     config.RetryConfig
	runner    DumpRunner
	proberFor func(config.Engine) (fingerprint.Prober, error)
	creds     CredentialSource
	log       logger.Logger
	now       func() time.Time
}

// New builds an Executor from the global backup and retry settings.
func New(backup config.BackupConfig, retry config.RetryConfig, opts ...Option) *Executor {
	e := &Executor{
		backup:    backup,
		retry:     retry,
		runner:    &toolRunner{timeout: backup.Timeout},
		proberFor: fingerprint.ProberFor,
		log:       logger.Global(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one backup job for the target and returns its outcome. The
// stored fingerprint is never modified here; the caller persists the
// outcome through the config store.
func (e *Executor) Execute(ctx context.Context, t config.Target) Outcome {
	start := e.now()

	conn := t.Connection
	if e.creds != nil && conn.VaultRole != "" {
		resolved, err := e.creds.Resolve(ctx, conn)
		if err != nil {
			return failedFatal(fmt.Errorf("resolve credentials for %q: %w", t.Name, err), 0)
		}
		conn = resolved
	}

	// Dedup pre-check. A probe failure degrades to "always dump": a
	// missed skip costs one redundant dump, a wrong skip loses a backup.
	fresh := e.probe(ctx, t, conn)
	if fingerprint.ShouldSkip(fresh, t.LastFingerprint) {
		e.log.Info("backup skipped",
			"target", t.Name,
			"outcome", OutcomeSkipped.String(),
			"detail", "no data change",
		)
		return skipped("no data change")
	}

	dumper, err := database.DumperFor(t.Engine)
	if err != nil {
		return failedFatal(err, 0)
	}

	bo := newRetryBackOff(e.retry)

	var lastErr error
	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		opts := database.DumpOptions{
			// Switch to the non-locking variant after the first lock
			// failure when the target allows it.
			SkipLockTables: t.SkipLockTables && attempt > 1,
		}
		artifactPath := database.ArtifactPath(
			t.OutputDir, t.Engine, conn.Database, e.backup.TimestampFormat, e.now(),
		)

		e.log.Info("backup started",
			"target", t.Name,
			"engine", string(t.Engine),
			"attempt", attempt,
			"path", artifactPath,
			"skip_lock_tables", opts.SkipLockTables,
		)

		stderr, err := e.runner.Dump(ctx, t.Engine, conn, artifactPath, opts)
		if err == nil {
			return e.finish(t, conn, fresh, artifactPath, attempt, start)
		}
		lastErr = err

		// Never leave a partial artifact behind; a later success writes
		// a fresh timestamped file and prior artifacts stay untouched.
		os.Remove(artifactPath)

		if !e.isLockError(dumper, stderr) {
			e.log.Error("backup failed",
				"target", t.Name,
				"outcome", OutcomeFailedFatal.String(),
				"attempt", attempt,
				"error", err.Error(),
			)
			return failedFatal(err, attempt)
		}

		if attempt == e.retry.MaxAttempts {
			break
		}

		wait := bo.NextBackOff()
		e.log.Warn("backup hit lock contention, retrying",
			"target", t.Name,
			"outcome", OutcomeFailedRetryable.String(),
			"attempt", attempt,
			"backoff", wait.String(),
			"error", err.Error(),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return failedRetryable(fmt.Errorf("retry interrupted: %w", ctx.Err()), attempt)
		case <-timer.C:
		}
	}

	err = fmt.Errorf("lock contention persisted after %d attempts: %w",
		e.retry.MaxAttempts, lastErr)
	e.log.Error("backup failed",
		"target", t.Name,
		"outcome", OutcomeFailedFatal.String(),
		"attempts", e.retry.MaxAttempts,
		"error", err.Error(),
	)
	return failedFatal(err, e.retry.MaxAttempts)
}

// newRetryBackOff builds the lock-retry delay schedule from the configured
// policy. MaxElapsedTime is disabled: MaxAttempts bounds the loop, and the
// library's default elapsed cutoff would make NextBackOff return Stop (-1),
// turning the remaining waits into immediate retries.
func newRetryBackOff(retry config.RetryConfig) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retry.InitialDelay
	bo.Multiplier = retry.Multiplier
	bo.MaxInterval = retry.MaxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// probe computes the fresh fingerprint, returning empty on failure.
func (e *Executor) probe(ctx context.Context, t config.Target, conn config.Connection) fingerprint.Fingerprint {
	prober, err := e.proberFor(t.Engine)
	if err != nil {
		e.log.Warn("no fingerprint probe for engine", "target", t.Name, "error", err.Error())
		return ""
	}
	fp, err := prober.Fingerprint(ctx, conn)
	if err != nil {
		e.log.Warn("fingerprint unavailable, dump will not be skipped",
			"target", t.Name,
			"error", err.Error(),
		)
		return ""
	}
	return fp
}

// finish handles the post-success path: fingerprint backfill, compression,
// metadata, retention.
func (e *Executor) finish(t config.Target, conn config.Connection,
	fresh fingerprint.Fingerprint, artifactPath string, attempts int, start time.Time,
) Outcome {
	// If the pre-dump probe failed, try once more now so the store can
	// still learn the new state. Empty is fine; the old fingerprint is
	// left untouched and the next run simply won't skip.
	if fresh == "" {
		fresh = e.probe(context.Background(), t, conn)
	}

	finalPath := artifactPath
	if e.backup.Compress {
		compressed, err := compressZstd(artifactPath)
		if err != nil {
			e.log.Warn("artifact compression failed, keeping uncompressed dump",
				"target", t.Name, "error", err.Error())
		} else {
			finalPath = compressed
		}
	}

	completed := e.now()
	record := Record{
		Target:      t.Name,
		Engine:      string(t.Engine),
		Database:    conn.Database,
		FilePath:    finalPath,
		Status:      "success",
		Fingerprint: string(fresh),
		Attempts:    attempts,
		StartedAt:   start,
		CompletedAt: completed,
		Duration:    completed.Sub(start),
	}
	if info, err := os.Stat(finalPath); err == nil {
		record.SizeBytes = info.Size()
	}
	if err := record.Write(filepath.Dir(finalPath)); err != nil {
		e.log.Warn("metadata write failed", "target", t.Name, "error", err.Error())
	}

	if err := rotateArtifacts(filepath.Dir(finalPath), t.RetentionCount); err != nil {
		e.log.Warn("artifact rotation failed", "target", t.Name, "error", err.Error())
	}

	e.log.Info("backup completed",
		"target", t.Name,
		"outcome", OutcomeSucceeded.String(),
		"path", finalPath,
		"attempts", attempts,
		"duration", completed.Sub(start).String(),
	)
	return succeeded(fresh, finalPath, attempts)
}

// isLockError checks the engine's built-in signatures plus any configured
// extras.
func (e *Executor) isLockError(dumper database.Dumper, stderr string) bool {
	if dumper.IsLockError(stderr) {
		return true
	}
	lower := strings.ToLower(stderr)
	for _, pat := range e.retry.LockErrorPatterns {
		if pat != "" && strings.Contains(lower, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}
