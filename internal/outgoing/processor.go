// Package outgoing implements C9: validated outgoing commands ->
// rate-limited platform SDK calls -> ConversationDelta reconciliation.
package outgoing

import (
	"bytes"
	"context"
	"io"

	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/coreerr"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/history"
	"github.com/meshbridge/bridge/internal/ratelimit"
)

// Platform is the narrow adapter-local capability C9 calls into for each
// op. A platform that doesn't support an operation returns a
// coreerr.KindUnsupported error (spec.md §4.7 "Not-supported operations
// per adapter").
type Platform interface {
	SendMessage(ctx context.Context, cmd events.SendMessageCommand) (messageIDs []string, err error)
	EditMessage(ctx context.Context, cmd events.EditMessageCommand) error
	DeleteMessage(ctx context.Context, cmd events.DeleteMessageCommand) error
	AddReaction(ctx context.Context, cmd events.ReactionCommand) error
	RemoveReaction(ctx context.Context, cmd events.ReactionCommand) error
	PinMessage(ctx context.Context, cmd events.PinCommand) error
	UnpinMessage(ctx context.Context, cmd events.PinCommand) error
	FetchAttachment(ctx context.Context, attachmentID string) ([]byte, error)

	MaxMessageLength() int
	MaxAttachmentsPerMessage() int
}

// Recorder lets C9 push the server-confirmed result of a
// creating/editing op back into C7, per spec.md §4.7 step 4.
type Recorder interface {
	RecordSent(conversationID string, messageIDs []string, text string)
	RecordEdited(conversationID, messageID, text string)
	RecordDeleted(conversationID, messageID string)
}

// AttachmentStore optionally persists fetched attachment bytes to local
// content-addressed storage (internal/attachment), so a repeated
// fetch_attachment for the same id can be served from disk instead of
// re-hitting the platform API every time. Nil disables this cache.
type AttachmentStore interface {
	Open(info conversation.AttachmentInfo) (io.ReadCloser, error)
	Download(ctx context.Context, info conversation.AttachmentInfo, src io.Reader) error
}

// AttachmentMetadata resolves an attachment id to its cached info
// (filename, type, extension), needed to place fetched bytes at the
// right content-addressed path.
type AttachmentMetadata func(id string) (conversation.AttachmentInfo, bool)

// Processor is C9.
type Processor struct {
	Platform Platform
	Limiter  *ratelimit.Limiter
	History  *history.Fetcher
	Recorder Recorder

	// Store and Metadata are both optional; set together to enable
	// on-disk attachment caching, or leave nil to always re-fetch from
	// the platform.
	Store    AttachmentStore
	Metadata AttachmentMetadata
}

// Handle dispatches a validated Command and returns the RequestResult the
// transport will wrap into request_success/request_failed.
func (p *Processor) Handle(ctx context.Context, cmd events.Command) (events.RequestResult, error) {
	switch cmd.EventType {
	case events.EventSendMessage:
		return p.handleSend(ctx, *cmd.SendMessage)
	case events.EventEditMessage:
		return p.handleEdit(ctx, *cmd.EditMessage)
	case events.EventDeleteMessage:
		return p.handleDelete(ctx, *cmd.DeleteMessage)
	case events.EventAddReaction:
		return p.handleReaction(ctx, *cmd.Reaction, p.Platform.AddReaction, "reaction")
	case events.EventRemoveReaction:
		return p.handleReaction(ctx, *cmd.Reaction, p.Platform.RemoveReaction, "reaction")
	case events.EventFetchHistory:
		return p.handleFetchHistory(ctx, *cmd.FetchHistory)
	case events.EventFetchAttachment:
		return p.handleFetchAttachment(ctx, *cmd.FetchAttachment)
	case events.EventPinMessage:
		return p.handlePin(ctx, *cmd.Pin, p.Platform.PinMessage)
	case events.EventUnpinMessage:
		return p.handlePin(ctx, *cmd.Pin, p.Platform.UnpinMessage)
	default:
		return events.RequestResult{}, coreerr.New(coreerr.KindInvalidRequest, "unhandled event_type")
	}
}

func (p *Processor) limit(ctx context.Context, op, scopeKey string) error {
	if p.Limiter == nil {
		return nil
	}
	return p.Limiter.LimitRequest(ctx, op, scopeKey)
}

func (p *Processor) handleSend(ctx context.Context, cmd events.SendMessageCommand) (events.RequestResult, error) {
	if err := p.limit(ctx, "send_message", cmd.ConversationID); err != nil {
		return events.RequestResult{}, err
	}

	pieces := SplitLongMessage(cmd.Text, p.Platform.MaxMessageLength())
	attachmentChunks := ChunkAttachments(cmd.Attachments, p.Platform.MaxAttachmentsPerMessage())

	var allIDs []string
	for i, piece := range pieces {
		part := cmd
		part.Text = piece
		if i < len(attachmentChunks) {
			part.Attachments = attachmentChunks[i]
		} else {
			part.Attachments = nil
		}
		ids, err := p.Platform.SendMessage(ctx, part)
		if err != nil {
			return events.RequestResult{}, err
		}
		allIDs = append(allIDs, ids...)
	}
	// any remaining attachment-only chunks beyond the number of text
	// pieces are sent as their own empty-text messages.
	for i := len(pieces); i < len(attachmentChunks); i++ {
		part := cmd
		part.Text = ""
		part.Attachments = attachmentChunks[i]
		ids, err := p.Platform.SendMessage(ctx, part)
		if err != nil {
			return events.RequestResult{}, err
		}
		allIDs = append(allIDs, ids...)
	}

	if p.Recorder != nil {
		p.Recorder.RecordSent(cmd.ConversationID, allIDs, cmd.Text)
	}
	return events.RequestResult{RequestCompleted: true, MessageIDs: allIDs}, nil
}

func (p *Processor) handleEdit(ctx context.Context, cmd events.EditMessageCommand) (events.RequestResult, error) {
	if err := p.limit(ctx, "edit_message", cmd.ConversationID); err != nil {
		return events.RequestResult{}, err
	}
	if err := p.Platform.EditMessage(ctx, cmd); err != nil {
		return events.RequestResult{}, err
	}
	if p.Recorder != nil {
		p.Recorder.RecordEdited(cmd.ConversationID, cmd.MessageID, cmd.Text)
	}
	return events.RequestResult{RequestCompleted: true, MessageIDs: []string{cmd.MessageID}}, nil
}

func (p *Processor) handleDelete(ctx context.Context, cmd events.DeleteMessageCommand) (events.RequestResult, error) {
	if err := p.limit(ctx, "delete_message", cmd.ConversationID); err != nil {
		return events.RequestResult{}, err
	}
	if err := p.Platform.DeleteMessage(ctx, cmd); err != nil {
		return events.RequestResult{}, err
	}
	if p.Recorder != nil {
		p.Recorder.RecordDeleted(cmd.ConversationID, cmd.MessageID)
	}
	return events.RequestResult{RequestCompleted: true, MessageIDs: []string{cmd.MessageID}}, nil
}

func (p *Processor) handleReaction(ctx context.Context, cmd events.ReactionCommand, call func(context.Context, events.ReactionCommand) error, op string) (events.RequestResult, error) {
	if err := p.limit(ctx, op, cmd.ConversationID); err != nil {
		return events.RequestResult{}, err
	}
	if err := call(ctx, cmd); err != nil {
		return events.RequestResult{}, err
	}
	return events.RequestResult{RequestCompleted: true, MessageIDs: []string{cmd.MessageID}}, nil
}

func (p *Processor) handlePin(ctx context.Context, cmd events.PinCommand, call func(context.Context, events.PinCommand) error) (events.RequestResult, error) {
	if err := p.limit(ctx, "pin_message", cmd.ConversationID); err != nil {
		return events.RequestResult{}, err
	}
	if err := call(ctx, cmd); err != nil {
		return events.RequestResult{}, err
	}
	return events.RequestResult{RequestCompleted: true, MessageIDs: []string{cmd.MessageID}}, nil
}

func (p *Processor) handleFetchHistory(ctx context.Context, cmd events.FetchHistoryCommand) (events.RequestResult, error) {
	if err := p.limit(ctx, "fetch_history", cmd.ConversationID); err != nil {
		return events.RequestResult{}, err
	}
	if p.History == nil {
		return events.RequestResult{}, coreerr.New(coreerr.KindUnsupported, "history fetching not configured")
	}
	msgs, err := p.History.Fetch(ctx, history.Request{
		ConversationID: cmd.ConversationID,
		Limit:          cmd.Limit,
		Before:         cmd.Before,
		After:          cmd.After,
	})
	if err != nil {
		return events.RequestResult{}, err
	}
	payload := make([]events.MessageReceivedData, 0, len(msgs))
	for _, m := range msgs {
		payload = append(payload, events.MessageReceivedData{
			MessageID:      m.MessageID,
			ConversationID: m.ConversationID,
			Sender:         events.Sender{UserID: m.SenderID, DisplayName: m.SenderName},
			Text:           m.Text,
			Timestamp:      m.Timestamp,
			Edited:         m.Edited,
			ThreadID:       m.ThreadID,
			Mentions:       m.Mentions,
		})
	}
	return events.RequestResult{RequestCompleted: true, History: payload}, nil
}

func (p *Processor) handleFetchAttachment(ctx context.Context, cmd events.FetchAttachmentCommand) (events.RequestResult, error) {
	if err := p.limit(ctx, "fetch_attachment", cmd.AttachmentID); err != nil {
		return events.RequestResult{}, err
	}

	info, hasInfo := conversation.AttachmentInfo{}, false
	if p.Metadata != nil {
		info, hasInfo = p.Metadata(cmd.AttachmentID)
	}

	if p.Store != nil && hasInfo {
		if rc, err := p.Store.Open(info); err == nil {
			defer rc.Close()
			if content, readErr := io.ReadAll(rc); readErr == nil {
				return events.RequestResult{RequestCompleted: true, Content: content}, nil
			}
		}
	}

	content, err := p.Platform.FetchAttachment(ctx, cmd.AttachmentID)
	if err != nil {
		return events.RequestResult{}, err
	}

	if p.Store != nil && hasInfo {
		// Best-effort cache: a failed local write never fails the fetch
		// that already succeeded against the platform.
		_ = p.Store.Download(ctx, info, bytes.NewReader(content))
	}

	return events.RequestResult{RequestCompleted: true, Content: content}, nil
}
