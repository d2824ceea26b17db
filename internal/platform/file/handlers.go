package file

import (
	"context"

	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/incoming"
	"github.com/meshbridge/bridge/internal/platform/shared"
)

// Register binds this adapter's detected filesystem changes onto proc.
// workspaceDir is needed to read file content when building the incoming
// DTO, so it's threaded through explicitly rather than carried on
// shared.Wiring (which is shape-shared across every platform).
func Register(proc *incoming.Processor, w shared.Wiring, workspaceDir string) {
	proc.Register("new_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(changeEvent)
		in, err := ToIncomingMessage(workspaceDir, ev)
		if err != nil {
			return nil, err
		}
		delta := w.Manager.AddToConversation(ctx, conversation.AddInput{Message: in})
		return incoming.NewMessageEvents(ctx, w.Builder, w.Fetcher, delta, false, w.Attachments, w.HistoryLimit)
	})

	proc.Register("edited_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(changeEvent)
		in, err := ToIncomingMessage(workspaceDir, ev)
		if err != nil {
			return nil, err
		}
		delta := w.Manager.UpdateConversation(ctx, conversation.UpdateInput{
			EventType:      conversation.EventEditedMessage,
			ConversationID: in.ConversationID,
			MessageID:      in.MessageID,
			NewText:        in.Text,
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})

	proc.Register("deleted_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(changeEvent)
		delta := w.Manager.DeleteFromConversation(ctx, conversation.DeleteInput{
			ConversationID: ev.path,
			DeletedIDs:     []string{ev.path},
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})
}
