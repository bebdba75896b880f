package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const metadataFilename = "metadata.json"

// Record is the metadata written next to each artifact after a run.
type Record struct {
	Target      string        `json:"target"`
	Engine      string        `json:"engine"`
	Database    string        `json:"database"`
	FilePath    string        `json:"file_path"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Attempts    int           `json:"attempts"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration_ms"`
	SizeBytes   int64         `json:"size_bytes"`
}

// Write stores the record as metadata.json inside dirPath.
func (r *Record) Write(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("ensure metadata directory %q: %w", dirPath, err)
	}

	filePath := filepath.Join(dirPath, metadataFilename)
	jsonFile, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create metadata file %q: %w", filePath, err)
	}
	defer jsonFile.Close()

	encoder := json.NewEncoder(jsonFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("encode metadata JSON: %w", err)
	}
	return nil
}
