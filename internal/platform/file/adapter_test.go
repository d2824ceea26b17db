package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/fileevents"
	"github.com/meshbridge/bridge/internal/incoming"
)

func TestAdapter_SendMessageWritesFile(t *testing.T) {
	dir := t.TempDir()
	cache := fileevents.New(filepath.Join(dir, "backups"), 10, time.Hour)
	a, err := New(Config{WorkspaceDirectory: dir, Cache: cache})
	require.NoError(t, err)

	ids, err := a.SendMessage(context.Background(), events.SendMessageCommand{ConversationID: "note.txt", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"note.txt"}, ids)

	data, err := os.ReadFile(filepath.Join(dir, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestAdapter_SendMessageOverwriteRecordsUpdate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	cache := fileevents.New(filepath.Join(dir, "backups"), 10, time.Hour)
	a, err := New(Config{WorkspaceDirectory: dir, Cache: cache})
	require.NoError(t, err)

	_, err = a.SendMessage(context.Background(), events.SendMessageCommand{ConversationID: "note.txt", Text: "new"})
	require.NoError(t, err)

	require.NoError(t, cache.UndoRecordedEvent(context.Background(), path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestAdapter_EditDeleteReactPinAreUnsupported(t *testing.T) {
	dir := t.TempDir()
	a, err := New(Config{WorkspaceDirectory: dir})
	require.NoError(t, err)

	assert.Error(t, a.EditMessage(context.Background(), events.EditMessageCommand{}))
	assert.Error(t, a.DeleteMessage(context.Background(), events.DeleteMessageCommand{}))
	assert.Error(t, a.AddReaction(context.Background(), events.ReactionCommand{}))
	assert.Error(t, a.PinMessage(context.Background(), events.PinCommand{}))
}

func TestAdapter_TickDetectsCreateUpdateDelete(t *testing.T) {
	dir := t.TempDir()
	a, err := New(Config{WorkspaceDirectory: dir, PollInterval: time.Hour})
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background()))

	var seen []changeEvent
	a.OnRawEvent(func(raw incoming.RawEvent) {
		seen = append(seen, raw.(changeEvent))
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("1"), 0o644))
	a.tick()
	require.Len(t, seen, 1)
	assert.Equal(t, fileevents.ActionCreate, seen[0].kind)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("12"), 0o644))
	a.tick()
	require.Len(t, seen, 2)
	assert.Equal(t, fileevents.ActionUpdate, seen[1].kind)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.txt")))
	a.tick()
	require.Len(t, seen, 3)
	assert.Equal(t, fileevents.ActionDelete, seen[2].kind)
}
