package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONFile writes a document to a local file atomically.
type JSONFile struct {
	path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path returns the destination path.
func (f *JSONFile) Path() string { return f.path }

// Write encodes v as indented JSON and replaces the file.
func (f *JSONFile) Write(v interface{}) error {
	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write output tmp: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
