package statestore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readStateFile(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var state map[string]any
	require.NoError(t, json.Unmarshal(data, &state))
	return state
}

func TestFileStore_MergeCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path, testLogger())

	err := store.Merge(context.Background(), map[string]any{"score": 42}, nil)
	require.NoError(t, err)

	state := readStateFile(t, path)
	assert.Equal(t, float64(42), state["score"])
}

func TestFileStore_ProtectedKeySurvival(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"score": 10, "owner_b_field": "keep"}`), 0o644))

	store := NewFileStore(path, testLogger())
	err := store.Merge(context.Background(), map[string]any{"score": 42}, []string{"owner_b_field"})
	require.NoError(t, err)

	state := readStateFile(t, path)
	assert.Equal(t, float64(42), state["score"])
	assert.Equal(t, "keep", state["owner_b_field"])
	assert.Len(t, state, 2)
}

func TestFileStore_ProtectedKeyRestoredOnFalsyUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"owner_b_field": "keep"}`), 0o644))

	store := NewFileStore(path, testLogger())
	err := store.Merge(context.Background(), map[string]any{"owner_b_field": "", "score": 1}, []string{"owner_b_field"})
	require.NoError(t, err)

	state := readStateFile(t, path)
	assert.Equal(t, "keep", state["owner_b_field"])
}

func TestFileStore_UnknownKeysRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"alert_history": [1, 2, 3]}`), 0o644))

	store := NewFileStore(path, testLogger())
	err := store.Merge(context.Background(), map[string]any{
		KeyPublicationHistory: map[string]any{"EN": "2024-03-15T08:05:00Z"},
	}, nil)
	require.NoError(t, err)

	state := readStateFile(t, path)
	assert.Contains(t, state, "alert_history")
	assert.Contains(t, state, KeyPublicationHistory)
}

func TestFileStore_CorruptFileBackedUpAndReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	corrupt := []byte(`{"truncated": `)
	require.NoError(t, os.WriteFile(path, corrupt, 0o644))

	store := NewFileStore(path, testLogger())
	err := store.Merge(context.Background(), map[string]any{"score": 7}, nil)
	require.NoError(t, err)

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, corrupt, backup)

	state := readStateFile(t, path)
	assert.Equal(t, map[string]any{"score": float64(7)}, state)
}

func TestFileStore_FailedWriteLeavesOriginalIntact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	original := []byte(`{"score": 10}`)
	require.NoError(t, os.WriteFile(path, original, 0o644))

	store := NewFileStore(path, testLogger())
	// Channels are not JSON-serializable, so the write fails before the
	// temp file can replace the destination.
	err := store.Merge(context.Background(), map[string]any{"bad": make(chan int)}, nil)
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file may be left behind")
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), testLogger())
	state, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestHistoryRoundTrip(t *testing.T) {
	published := time.Date(2024, 3, 15, 8, 5, 0, 0, time.UTC)
	state := map[string]any{
		KeyPublicationHistory: map[string]any{
			"EN":  published.Format(time.RFC3339),
			"bad": 12345,
		},
		KeyContentHashes: map[string]any{"EN": "abc123"},
	}

	history := History(state)
	require.Len(t, history, 1)
	assert.True(t, history["EN"].Equal(published))

	hashes := ContentHashes(state)
	assert.Equal(t, map[string]string{"EN": "abc123"}, hashes)

	encoded := EncodeHistory(history)
	assert.Equal(t, map[string]any{"EN": "2024-03-15T08:05:00Z"}, encoded)
}

func TestMergeState_UpdatesWin(t *testing.T) {
	existing := map[string]any{"a": 1, "b": "old"}
	merged := mergeState(existing, map[string]any{"b": "new", "c": true}, nil)
	assert.Equal(t, map[string]any{"a": 1, "b": "new", "c": true}, merged)
}

func TestMergeState_ProtectedAbsentFromOriginalNotInvented(t *testing.T) {
	merged := mergeState(map[string]any{}, map[string]any{"x": 1}, []string{"ghost"})
	assert.Equal(t, map[string]any{"x": 1}, merged)
}
