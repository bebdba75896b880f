package executor

import (
	"github.com/kebairia/dbshield/internal/fingerprint"
)

// OutcomeKind enumerates the possible results of one execution attempt.
// The set is closed; switches over it should be exhaustive.
type OutcomeKind int

const (
	// OutcomeSkipped: dedup found no data change, no subprocess was run.
	OutcomeSkipped OutcomeKind = iota
	// OutcomeSucceeded: the dump completed and the artifact exists.
	OutcomeSucceeded
	// OutcomeFailedRetryable: transient lock contention, retried per policy.
	// Only ever the final kind when the retry loop was interrupted.
	OutcomeFailedRetryable
	// OutcomeFailedFatal: non-lock failure or exhausted retries.
	OutcomeFailedFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailedRetryable:
		return "failed_retryable"
	case OutcomeFailedFatal:
		return "failed_fatal"
	}
	return "unknown"
}

// Outcome is the ephemeral result of executing one backup job. It drives
// the config store update and the log; it is never persisted itself.
type Outcome struct {
	Kind OutcomeKind

	// Reason is set for OutcomeSkipped.
	Reason string

	// Fingerprint and ArtifactPath are set for OutcomeSucceeded. The
	// fingerprint may be empty when probing was unavailable; the store
	// leaves the previous fingerprint untouched in that case.
	Fingerprint  fingerprint.Fingerprint
	ArtifactPath string

	// Err is set for the failure kinds.
	Err error

	// Attempts counts dump subprocess invocations (0 for a skip).
	Attempts int
}

func skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

func succeeded(fp fingerprint.Fingerprint, path string, attempts int) Outcome {
	return Outcome{Kind: OutcomeSucceeded, Fingerprint: fp, ArtifactPath: path, Attempts: attempts}
}

func failedFatal(err error, attempts int) Outcome {
	return Outcome{Kind: OutcomeFailedFatal, Err: err, Attempts: attempts}
}

func failedRetryable(err error, attempts int) Outcome {
	return Outcome{Kind: OutcomeFailedRetryable, Err: err, Attempts: attempts}
}
