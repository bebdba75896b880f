package executor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestCompressZstd(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "orders.sql")
	if err := os.WriteFile(input, []byte("-- dump\nINSERT INTO t VALUES (1);\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := compressZstd(input)
	if err != nil {
		t.Fatalf("compressZstd: %v", err)
	}
	if out != input+".zst" {
		t.Errorf("output path = %q, want %q", out, input+".zst")
	}
	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Error("uncompressed artifact must be removed after compression")
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	reader, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	decoded, err := reader.DecodeAll(data, nil)
	if err != nil {
		t.Fatalf("compressed artifact does not decode: %v", err)
	}
	if string(decoded) != "-- dump\nINSERT INTO t VALUES (1);\n" {
		t.Error("round-tripped content differs from the original dump")
	}
}

func TestCompressZstdRemovesPartialOnFailure(t *testing.T) {
	// A directory opens fine but fails the copy, exercising the mid-stream
	// error path.
	dir := t.TempDir()
	input := filepath.Join(dir, "broken.sql")
	if err := os.Mkdir(input, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := compressZstd(input); err == nil {
		t.Fatal("compressZstd on a directory should fail")
	}
	if _, err := os.Stat(input + ".zst"); !os.IsNotExist(err) {
		t.Error("partial compressed artifact left behind after failure")
	}
}
