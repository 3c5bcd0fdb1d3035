package exporter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shamaton/msgpack/v2"
)

// RecordEntry identifies a processed input by size and modification time.
type RecordEntry struct {
	Size    int64    `msgpack:"size"`
	ModTime int64    `msgpack:"modTime"`
	Outputs []string `msgpack:"outputs,omitempty"`
}

// Record remembers which inputs were already exported so later runs can
// skip them. It is safe for concurrent use.
type Record struct {
	mu    sync.Mutex
	path  string
	files map[string]RecordEntry
}

// LoadRecord reads the record at path. A missing file yields an empty record
// and an empty path disables recording.
func LoadRecord(path string) (*Record, error) {
	if path == "" {
		return nil, nil
	}
	r := &Record{path: path, files: map[string]RecordEntry{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	if len(data) == 0 {
		return r, nil
	}
	if err := msgpack.Unmarshal(data, &r.files); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", path, err)
	}
	if r.files == nil {
		r.files = map[string]RecordEntry{}
	}
	return r, nil
}

func recordKey(file string) string {
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return file
}

func statEntry(file string) (RecordEntry, error) {
	info, err := os.Stat(file)
	if err != nil {
		return RecordEntry{}, err
	}
	return RecordEntry{Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
}

// Done reports whether file was exported and has not changed since.
func (r *Record) Done(file string) bool {
	if r == nil {
		return false
	}
	current, err := statEntry(file)
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.files[recordKey(file)]
	return ok && entry.Size == current.Size && entry.ModTime == current.ModTime
}

// Mark stores file as exported with the outputs it produced.
func (r *Record) Mark(file string, outputs []string) error {
	if r == nil {
		return nil
	}
	entry, err := statEntry(file)
	if err != nil {
		return err
	}
	entry.Outputs = outputs
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[recordKey(file)] = entry
	return nil
}

func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

// Save writes the record atomically.
func (r *Record) Save() error {
	if r == nil || r.path == "" {
		return nil
	}
	r.mu.Lock()
	data, err := msgpack.Marshal(r.files)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace record: %w", err)
	}
	return nil
}
