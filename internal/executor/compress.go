package executor

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// compressZstd compresses the artifact in place, replacing it with a .zst
// file and removing the original. Returns the compressed path.
func compressZstd(inputPath string) (string, error) {
	outputPath := inputPath + ".zst"

	inFile, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer inFile.Close()

	outFile, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("create compressed artifact: %w", err)
	}
	defer outFile.Close()

	// A partial .zst must never survive: rotation counts compressed
	// artifacts, so a corrupt leftover could displace a good backup.
	writer, err := zstd.NewWriter(outFile)
	if err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := io.Copy(writer, inFile); err != nil {
		writer.Close()
		os.Remove(outputPath)
		return "", fmt.Errorf("compress artifact: %w", err)
	}
	if err := writer.Close(); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("flush zstd writer: %w", err)
	}

	if err := os.Remove(inputPath); err != nil {
		return "", fmt.Errorf("remove uncompressed artifact: %w", err)
	}
	return outputPath, nil
}
