package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// rotateArtifacts removes the oldest artifacts in dir so that at most keep
// remain. Only dump artifacts (.sql, .sql.zst) are considered; metadata and
// anything else in the directory is left alone.
func rotateArtifacts(dir string, keep int) error {
	if keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read artifact directory %q: %w", dir, err)
	}

	type artifact struct {
		path    string
		modTime int64
	}
	var artifacts []artifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") && !strings.HasSuffix(name, ".sql.zst") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, artifact{
			path:    filepath.Join(dir, name),
			modTime: info.ModTime().UnixNano(),
		})
	}

	if len(artifacts) <= keep {
		return nil
	}
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].modTime < artifacts[j].modTime
	})
	for _, a := range artifacts[:len(artifacts)-keep] {
		if err := os.Remove(a.path); err != nil {
			return fmt.Errorf("rotate artifact %q: %w", a.path, err)
		}
	}
	return nil
}
