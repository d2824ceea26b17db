// Package shell implements the shell pseudo-platform: outgoing
// send_message commands are executed as shell commands against a
// persistent session (C14, internal/shellsession), and the command's
// captured output is surfaced back as a new incoming message.
// platformreg.Default declares this platform with an empty
// CapabilitySet — no edit/delete/react/pin/history/attachments — since
// per spec.md's own non-goals ("shell subprocess management beyond its
// session state machine" is out of scope) this adapter's only contract
// with the rest of the system is "run a command, report what happened".
package shell

import (
	"context"
	"fmt"
	"time"

	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/coreerr"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/history"
	"github.com/meshbridge/bridge/internal/incoming"
	"github.com/meshbridge/bridge/internal/shellsession"
)

// Config configures the adapter.
type Config struct {
	SessionConfig shellsession.Config
}

// Adapter implements outgoing.Platform for the shell pseudo-platform.
// Each conversation_id maps 1:1 to a shell session id; a session is
// opened lazily on first use.
type Adapter struct {
	manager *shellsession.Manager

	onRaw func(incoming.RawEvent)
}

func New(cfg Config) *Adapter {
	return &Adapter{manager: shellsession.NewManager(cfg.SessionConfig)}
}

func (a *Adapter) OnRawEvent(fn func(incoming.RawEvent)) { a.onRaw = fn }

// maintenanceInterval is how often the session reaper sweeps for
// sessions past their max lifetime, well under any realistic
// session_max_lifetime_minutes configuration.
const maintenanceInterval = 5 * time.Minute

// StartMaintenance runs the session reaper loop until ctx is cancelled.
func (a *Adapter) StartMaintenance(ctx context.Context) {
	a.manager.StartMaintenance(ctx, maintenanceInterval)
}

func (a *Adapter) MaxMessageLength() int        { return 0 } // unbounded: commands aren't split
func (a *Adapter) MaxAttachmentsPerMessage() int { return 0 }

// SendMessage treats cmd.Text as a shell command, runs it in
// cmd.ConversationID's session (opening one if needed), and emits the
// captured output as a fresh incoming message before returning an id for
// the executed command itself.
func (a *Adapter) SendMessage(ctx context.Context, cmd events.SendMessageCommand) ([]string, error) {
	sess, ok := a.manager.Get(cmd.ConversationID)
	if !ok {
		var err error
		sess, err = a.manager.Open()
		if err != nil {
			return nil, coreerr.Wrap(coreerr.KindIOError, "shell: open session", err)
		}
	}

	result, err := sess.Run(ctx, cmd.Text)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindTransientNetwork, "shell: run command", err)
	}
	if !result.Successful {
		_ = a.manager.Close(sess.ID)
		return nil, coreerr.New(coreerr.KindInternal, "shell: command exceeded resource limits")
	}

	messageID := fmt.Sprintf("%s-%d", sess.ID, result.OriginalSize)
	if a.onRaw != nil {
		a.onRaw(outputEvent{
			conversationID: cmd.ConversationID,
			messageID:      messageID,
			text:           result.Stdout,
		})
	}
	return []string{messageID}, nil
}

// EditMessage, DeleteMessage, AddReaction, RemoveReaction, PinMessage,
// and UnpinMessage are unsupported: platformreg.Default's shell entry
// declares no capabilities at all.
func (a *Adapter) EditMessage(ctx context.Context, cmd events.EditMessageCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "shell: edit is not supported")
}

func (a *Adapter) DeleteMessage(ctx context.Context, cmd events.DeleteMessageCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "shell: delete is not supported")
}

func (a *Adapter) AddReaction(ctx context.Context, cmd events.ReactionCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "shell: reactions are not supported")
}

func (a *Adapter) RemoveReaction(ctx context.Context, cmd events.ReactionCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "shell: reactions are not supported")
}

func (a *Adapter) PinMessage(ctx context.Context, cmd events.PinCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "shell: pinning is not supported")
}

func (a *Adapter) UnpinMessage(ctx context.Context, cmd events.PinCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "shell: pinning is not supported")
}

func (a *Adapter) FetchAttachment(ctx context.Context, attachmentID string) ([]byte, error) {
	return nil, coreerr.New(coreerr.KindUnsupported, "shell: attachments are not supported")
}

func (a *Adapter) FetchPage(ctx context.Context, conversationID string, before, after *int64, limit int) (history.Page, error) {
	return history.Page{}, coreerr.New(coreerr.KindUnsupported, "shell: no history endpoint")
}

// outputEvent carries one command's captured output back through the
// incoming pipeline as a new message.
type outputEvent struct {
	conversationID, messageID, text string
}

func (outputEvent) Type() string { return "new_message" }

// ToIncomingMessage converts an outputEvent into the adapter-local DTO.
func ToIncomingMessage(ev outputEvent) conversation.IncomingMessage {
	return conversation.IncomingMessage{
		MessageID:        ev.messageID,
		ConversationID:   ev.conversationID,
		PlatformConvID:   ev.conversationID,
		ConversationType: conversation.ConversationChannel,
		Text:             ev.text,
	}
}
