package fileevents

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCreate_UndoDeletesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	c := New(filepath.Join(dir, "backups"), 10, time.Hour)
	c.RecordCreate(path)

	require.NoError(t, c.UndoRecordedEvent(context.Background(), path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRecordUpdate_UndoRestoresPriorContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	c := New(filepath.Join(dir, "backups"), 10, time.Hour)
	require.NoError(t, c.RecordUpdate(path))

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))

	require.NoError(t, c.UndoRecordedEvent(context.Background(), path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))
}

func TestRecordDelete_UndoRecreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("will be deleted"), 0o644))

	c := New(filepath.Join(dir, "backups"), 10, time.Hour)
	require.NoError(t, c.RecordDelete(path))
	require.NoError(t, os.Remove(path))

	require.NoError(t, c.UndoRecordedEvent(context.Background(), path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "will be deleted", string(content))
}

func TestPush_EvictsOldestBeyondCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	c := New(filepath.Join(dir, "backups"), 2, time.Hour)
	require.NoError(t, c.RecordUpdate(path)) // backs up v0
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	require.NoError(t, c.RecordUpdate(path)) // backs up v1
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	require.NoError(t, c.RecordUpdate(path)) // backs up v2, evicts v0's entry

	assert.Len(t, c.events[path], 2)
}
