package storage

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const undated = "undated"

// Storage writes canonical track documents as gzip files, grouped into one
// directory per capture day
type Storage struct {
	outputDir string
	mu        sync.Mutex
}

// New creates a new Storage instance
func New(outputDir string) *Storage {
	return &Storage{outputDir: outputDir}
}

// PathFor returns where the track for a session stamp and digest is stored
func (s *Storage) PathFor(stamp, digest string) string {
	day := undated
	if len(stamp) >= len("2006-01-02") {
		day = stamp[:len("2006-01-02")]
	}
	short := digest
	if len(short) > 12 {
		short = short[:12]
	}
	name := fmt.Sprintf("track-%s.json.gz", short)
	if stamp != "" {
		name = fmt.Sprintf("track-%s-%s.json.gz", stamp, short)
	}
	return filepath.Join(s.outputDir, day, name)
}

// WriteTrack compresses canonical track JSON to its path. The file appears
// atomically; an existing file for the same digest is replaced.
func (s *Storage) WriteTrack(stamp, digest string, canonical []byte) (string, error) {
	if digest == "" || strings.ContainsAny(digest, `/\`) {
		return "", fmt.Errorf("invalid digest %q", digest)
	}
	if strings.ContainsAny(stamp, `/\`) {
		return "", fmt.Errorf("invalid stamp %q", stamp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.PathFor(stamp, digest)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".track-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create track file: %w", err)
	}
	defer os.Remove(tmp.Name())

	gzipWriter := gzip.NewWriter(tmp)
	gzipWriter.Name = strings.TrimSuffix(filepath.Base(path), ".gz")
	if _, err := gzipWriter.Write(canonical); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to compress track: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to compress track: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close track file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move track file into place: %w", err)
	}
	return path, nil
}

// ReadTrack returns the decompressed contents of a stored track
func (s *Storage) ReadTrack(path string) ([]byte, error) {
	//nolint:gosec // path is produced by PathFor
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gzipReader.Close()

	return io.ReadAll(gzipReader)
}
