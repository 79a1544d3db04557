package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// ErrInvalidTraceID is returned for ids that cannot be used as file names.
var ErrInvalidTraceID = errors.New("invalid trace id")

// Store implements ports.CheckpointStore using the local filesystem.
// Checkpoints live at <BasePath>/<trace_id>/<STEP>.json.
type Store struct {
	BasePath string
}

// NewStore creates a Store rooted at basePath.
// If basePath is empty, it defaults to ".chancellor/checkpoints".
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".chancellor", "checkpoints")
	}
	return &Store{BasePath: basePath}
}

func validTraceID(traceID string) error {
	if traceID == "" || traceID == "." || traceID == ".." || strings.ContainsAny(traceID, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidTraceID, traceID)
	}
	return nil
}

func (s *Store) dir(traceID string) string {
	return filepath.Join(s.BasePath, traceID)
}

// Save writes the snapshot atomically, overwriting an earlier one for the same step.
func (s *Store) Save(ctx context.Context, traceID string, step domain.Step, state *domain.GraphState) error {
	if err := validTraceID(traceID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return writeAtomic(s.dir(traceID), string(step)+".json", data)
}

// Load reads the snapshot of one step.
func (s *Store) Load(ctx context.Context, traceID string, step domain.Step) (*domain.GraphState, error) {
	if err := validTraceID(traceID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir(traceID), string(step)+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var state domain.GraphState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &state, nil
}

// Latest loads the checkpoint of the furthest step on disk.
func (s *Store) Latest(ctx context.Context, traceID string) (*domain.GraphState, error) {
	for i := len(domain.Order) - 1; i >= 0; i-- {
		state, err := s.Load(ctx, traceID, domain.Order[i])
		if errors.Is(err, domain.ErrCheckpointNotFound) {
			continue
		}
		return state, err
	}
	return nil, domain.ErrCheckpointNotFound
}

// Delete removes the trace directory.
func (s *Store) Delete(ctx context.Context, traceID string) error {
	if err := validTraceID(traceID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.dir(traceID)); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}
	return nil
}

// List returns the trace ids that have a checkpoint directory.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	traces := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			traces = append(traces, entry.Name())
		}
	}
	return traces, nil
}

// writeAtomic writes to a temp file in dir, fsyncs it and renames it over name.
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}
	destPath := filepath.Join(dir, name)

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-*-"+name)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
