// Package sink implements the append-only JSONL evidence/tamper writers and
// the atomic JSON snapshot writer for metrics.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// JSONLWriter appends one JSON-encoded record per line to a file, opened on
// first write and kept open for the process lifetime. Writes are serialized
// per file with a mutex.
type JSONLWriter struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// NewJSONLWriter constructs a writer for the given path; the file is opened
// lazily on the first Write call.
func NewJSONLWriter(path string) *JSONLWriter {
	return &JSONLWriter{path: path}
}

// Write appends one record as a single JSON line. Records are never
// rewritten or retracted — every emission is a new line.
func (w *JSONLWriter) Write(record interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open sink %s: %w", w.path, err)
		}
		w.file = f
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("write sink %s: %w", w.path, err)
	}
	return nil
}

// Close flushes and closes the underlying file handle, if open.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
