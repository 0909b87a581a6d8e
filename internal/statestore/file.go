package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore persists the shared state document as a single JSON file.
// Writes go through a temp file followed by an atomic rename, so a reader
// always observes either the previous or the new complete document. An
// unreadable document is backed up and treated as empty rather than
// aborting the cycle.
type FileStore struct {
	path   string
	logger *slog.Logger
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With("component", "statestore"),
	}
}

// Load returns the current state document, or an empty document when the
// file is absent or corrupt. Corrupt files are moved aside to <path>.bak
// so the original bytes survive for inspection.
func (s *FileStore) Load(ctx context.Context) (map[string]any, error) {
	return s.read(), nil
}

// Merge applies updates on top of the persisted document and writes the
// result atomically. See mergeState for the protected-key semantics.
func (s *FileStore) Merge(ctx context.Context, updates map[string]any, protected []string) error {
	existing := s.read()
	merged := mergeState(existing, updates, protected)

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

func (s *FileStore) read() map[string]any {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]any{}
	}
	if err != nil {
		s.logger.Warn("state file unreadable, starting empty", "path", s.path, "error", err)
		return map[string]any{}
	}

	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		s.backupCorrupt(data)
		return map[string]any{}
	}
	if state == nil {
		state = map[string]any{}
	}
	return state
}

func (s *FileStore) backupCorrupt(data []byte) {
	backup := s.path + ".bak"
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		s.logger.Warn("failed to back up corrupt state file", "path", backup, "error", err)
		return
	}
	s.logger.Warn("state file corrupt, backed up and reset", "path", s.path, "backup", backup)
}
