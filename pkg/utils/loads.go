package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
)

func Load[T any](path string) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()

	var v T
	if err := json.NewDecoder(f).Decode(&v); err != nil {
		return zero, err
	}
	return v, nil
}

// Save writes v as indented JSON, creating parent directories as needed.
func Save[T any](path string, v T) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
