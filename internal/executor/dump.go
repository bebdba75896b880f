package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kebairia/dbshield/internal/config"
	"github.com/kebairia/dbshield/internal/database"
)

// DumpRunner runs one dump subprocess attempt and returns its stderr text
// for classification. The production implementation shells out to the
// engine's dump tool; tests substitute fakes that count invocations.
type DumpRunner interface {
	Dump(ctx context.Context, engine config.Engine, conn config.Connection,
		artifactPath string, opts database.DumpOptions) (stderr string, err error)
}

// toolRunner is the production DumpRunner.
type toolRunner struct {
	timeout time.Duration
}

func (r *toolRunner) Dump(ctx context.Context, engine config.Engine, conn config.Connection,
	artifactPath string, opts database.DumpOptions,
) (string, error) {
	dumper, err := database.DumperFor(engine)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(artifactPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", filepath.Dir(artifactPath), err)
	}

	dumpCtx, cancel := context.WithTimeoutCause(ctx, r.timeout, database.ErrTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := dumper.Command(dumpCtx, conn, artifactPath, opts)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cause := context.Cause(dumpCtx); cause != nil && dumpCtx.Err() != nil {
			return stderr.String(), fmt.Errorf("%s dump: %w", engine, cause)
		}
		return stderr.String(), fmt.Errorf("%s dump failed: %w: %s", engine, err, stderr.String())
	}

	// Exit code 0 with an empty artifact still counts as a failure; a
	// zero-byte dump is never a valid backup.
	info, err := os.Stat(artifactPath)
	if err != nil {
		return stderr.String(), fmt.Errorf("artifact missing after dump: %w", err)
	}
	if info.Size() == 0 {
		return stderr.String(), fmt.Errorf("artifact %q is empty", artifactPath)
	}
	return stderr.String(), nil
}
