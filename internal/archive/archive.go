// Package archive implements the optional raw-message archive (spec.md §6,
// StoreMessagesToFile): when enabled, every inbound SIRI payload is written
// out verbatim before processing, for later replay/debugging. Gated by
// config so it costs nothing when disabled.
package archive

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Writer persists a raw inbound payload somewhere durable.
type Writer interface {
	Write(kind, requestorID string, payload []byte) error
}

// NoopWriter discards every payload; used when StoreMessagesToFile is false.
type NoopWriter struct{}

// Write implements Writer.
func (NoopWriter) Write(string, string, []byte) error { return nil }

// FileWriter writes each payload to its own timestamped file under dir.
type FileWriter struct {
	dir string
}

// NewFileWriter returns a FileWriter rooted at dir, creating it if absent.
func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: create dir %s: %w", dir, err)
	}
	return &FileWriter{dir: dir}, nil
}

// Write implements Writer.
func (w *FileWriter) Write(kind, requestorID string, payload []byte) error {
	name := fmt.Sprintf("%s-%s-%d.xml", kind, requestorID, time.Now().UnixNano())
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		log.Printf("[archive] failed to write %s: %v", path, err)
		return err
	}
	return nil
}
