// Package file implements the local text-file pseudo-platform: instead
// of talking to a remote chat API, it watches a workspace directory for
// file create/update/delete and surfaces each as an incoming message,
// and an outgoing send_message writes a new file into that directory.
// Every mutation the adapter itself performs against the workspace is
// recorded into C13 (internal/fileevents.Cache) first, so it can be
// undone. platformreg.Default declares this platform with CapAttachments
// only: no edit/delete/react/pin/history, since the bridge treats each
// send as dropping a new artifact rather than mutating one in place.
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/coreerr"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/fileevents"
	"github.com/meshbridge/bridge/internal/history"
	"github.com/meshbridge/bridge/internal/incoming"
)

const fileMaxLength = 1 << 20 // 1 MiB of text per message, generous for a file body

// Config configures the adapter.
type Config struct {
	WorkspaceDirectory string
	Cache              *fileevents.Cache
	PollInterval       time.Duration
}

type fileState struct {
	modTime time.Time
	size    int64
}

// Adapter implements outgoing.Platform for the file pseudo-platform.
type Adapter struct {
	workspaceDir string
	cache        *fileevents.Cache
	pollInterval time.Duration

	mu    sync.Mutex
	known map[string]fileState

	onRaw func(incoming.RawEvent)
}

func New(cfg Config) (*Adapter, error) {
	if cfg.WorkspaceDirectory == "" {
		return nil, coreerr.New(coreerr.KindInvalidRequest, "file: workspace_directory is required")
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Adapter{
		workspaceDir: cfg.WorkspaceDirectory,
		cache:        cfg.Cache,
		pollInterval: interval,
		known:        make(map[string]fileState),
	}, nil
}

func (a *Adapter) OnRawEvent(fn func(incoming.RawEvent)) { a.onRaw = fn }

// Connect takes an initial directory snapshot (so pre-existing files
// don't replay as create events) and starts the poll loop.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	snap, err := scanDir(a.workspaceDir)
	if err != nil {
		a.mu.Unlock()
		return coreerr.Wrap(coreerr.KindIOError, "file: initial scan", err)
	}
	a.known = snap
	a.mu.Unlock()

	go a.pollLoop(ctx)
	return nil
}

func (a *Adapter) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *Adapter) tick() {
	current, err := scanDir(a.workspaceDir)
	if err != nil {
		return
	}

	a.mu.Lock()
	previous := a.known
	a.known = current
	a.mu.Unlock()

	if a.onRaw == nil {
		return
	}
	for path, state := range current {
		prior, existed := previous[path]
		switch {
		case !existed:
			a.onRaw(changeEvent{path: path, kind: fileevents.ActionCreate})
		case prior.modTime != state.modTime || prior.size != state.size:
			a.onRaw(changeEvent{path: path, kind: fileevents.ActionUpdate})
		}
	}
	for path := range previous {
		if _, still := current[path]; !still {
			a.onRaw(changeEvent{path: path, kind: fileevents.ActionDelete})
		}
	}
}

func scanDir(root string) (map[string]fileState, error) {
	out := make(map[string]fileState)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out[rel] = fileState{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) MaxMessageLength() int        { return fileMaxLength }
func (a *Adapter) MaxAttachmentsPerMessage() int { return 1 }

// SendMessage writes cmd.Text as a new file named by conversation_id,
// recording the creation (or, if the file already exists, the
// overwrite) into C13 before touching disk.
func (a *Adapter) SendMessage(ctx context.Context, cmd events.SendMessageCommand) ([]string, error) {
	path := filepath.Join(a.workspaceDir, cmd.ConversationID)
	existed := fileExists(path)

	if a.cache != nil {
		var err error
		if existed {
			err = a.cache.RecordUpdate(path)
		} else {
			a.cache.RecordCreate(path)
		}
		if err != nil {
			return nil, coreerr.Wrap(coreerr.KindIOError, "file: record event", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, coreerr.Wrap(coreerr.KindIOError, "file: mkdir", err)
	}
	if err := os.WriteFile(path, []byte(cmd.Text), 0o644); err != nil {
		return nil, coreerr.Wrap(coreerr.KindIOError, "file: write", err)
	}
	return []string{cmd.ConversationID}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EditMessage, DeleteMessage, AddReaction, RemoveReaction, PinMessage,
// and UnpinMessage are unsupported: platformreg.Default declares no
// CapEdit/CapDelete/CapReactions/CapPin for the file platform.
func (a *Adapter) EditMessage(ctx context.Context, cmd events.EditMessageCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "file: edit is not supported")
}

func (a *Adapter) DeleteMessage(ctx context.Context, cmd events.DeleteMessageCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "file: delete is not supported")
}

func (a *Adapter) AddReaction(ctx context.Context, cmd events.ReactionCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "file: reactions are not supported")
}

func (a *Adapter) RemoveReaction(ctx context.Context, cmd events.ReactionCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "file: reactions are not supported")
}

func (a *Adapter) PinMessage(ctx context.Context, cmd events.PinCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "file: pinning is not supported")
}

func (a *Adapter) UnpinMessage(ctx context.Context, cmd events.PinCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "file: pinning is not supported")
}

// FetchAttachment reads a file directly out of the workspace by its
// relative path.
func (a *Adapter) FetchAttachment(ctx context.Context, attachmentID string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(a.workspaceDir, attachmentID))
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindIOError, "file: read attachment", err)
	}
	return data, nil
}

// FetchPage is unsupported: the file platform has no history API,
// relying on C2 alone as spec.md §4.8 permits.
func (a *Adapter) FetchPage(ctx context.Context, conversationID string, before, after *int64, limit int) (history.Page, error) {
	return history.Page{}, coreerr.New(coreerr.KindUnsupported, "file: no history endpoint")
}

// ToIncomingMessage converts a detected filesystem change into the
// adapter-local DTO, reading the file's current content for create and
// update (delete has none).
func ToIncomingMessage(workspaceDir string, ev changeEvent) (conversation.IncomingMessage, error) {
	msg := conversation.IncomingMessage{
		MessageID:        ev.path,
		ConversationID:   ev.path,
		PlatformConvID:   ev.path,
		ConversationType: conversation.ConversationChannel,
		Timestamp:        time.Now().UnixMilli(),
	}
	if ev.kind == fileevents.ActionDelete {
		return msg, nil
	}
	data, err := os.ReadFile(filepath.Join(workspaceDir, ev.path))
	if err != nil {
		return msg, coreerr.Wrap(coreerr.KindIOError, "file: read changed file", err)
	}
	msg.Text = string(data)
	return msg, nil
}
