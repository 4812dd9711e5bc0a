package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AtomicJSONSink writes a full JSON snapshot via the sibling-temp-file,
// fsync, rename idiom: marshal, write temp, fsync, rename, clean up the
// temp file on any failure.
type AtomicJSONSink struct {
	path string
}

// NewAtomicJSONSink constructs a snapshot writer for the given destination path.
func NewAtomicJSONSink(path string) *AtomicJSONSink {
	return &AtomicJSONSink{path: path}
}

// Write marshals snapshot and atomically replaces the destination file.
// On any failure the temp file is removed, the destination is left
// untouched, and the error is returned to the caller; Write does not log
// the failure itself.
func (s *AtomicJSONSink) Write(snapshot interface{}) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp snapshot file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp snapshot file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}
