package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"workshop-monitor/internal/history"
)

// JSONFile keeps the state as a pretty printed JSON document, the same document other
// clients (like a phone app) read as a feed.
type JSONFile struct {
	path string
}

func NewJSONFile(path string) JSONFile {
	return JSONFile{path: path}
}

func (f JSONFile) Path() string {
	return f.path
}

func (f JSONFile) LoadOrCreate(ctx context.Context) (*history.WorkshopState, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return history.NewWorkshopState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStateCorrupt, f.path, err)
	}

	var state history.WorkshopState
	err = json.Unmarshal(data, &state)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrStateCorrupt, f.path, err)
	}
	return normalize(&state), nil
}

// Save writes the whole state to a temporary file next to the destination and renames it
// over the destination, so a crash mid-write never leaves a truncated history behind.
func (f JSONFile) Save(ctx context.Context, state *history.WorkshopState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(f.path)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, err = tmp.Write(append(data, '\n'))
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	err = os.Chmod(tmpPath, 0644)
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	err = os.Rename(tmpPath, f.path)
	if err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
