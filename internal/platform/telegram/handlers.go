package telegram

import (
	"context"

	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/incoming"
	"github.com/meshbridge/bridge/internal/platform/shared"
)

// Register binds this adapter's raw Telegram updates onto proc:
// new_message, edited_message, and the reaction_added/reaction_removed
// events derived by reactionDiff. Telegram exposes no message-deleted
// update type to bots, so deleted_message is not wired.
func Register(proc *incoming.Processor, w shared.Wiring) {
	proc.Register("new_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(messageEvent)
		in := ToIncomingMessage(ev.m)
		attachments := ToIncomingAttachments(ev.m)
		delta := w.Manager.AddToConversation(ctx, conversation.AddInput{Message: in, Attachments: attachments})
		return incoming.NewMessageEvents(ctx, w.Builder, w.Fetcher, delta, false, w.Attachments, w.HistoryLimit)
	})

	proc.Register("edited_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(editEvent)
		in := ToIncomingMessage(ev.m)
		delta := w.Manager.UpdateConversation(ctx, conversation.UpdateInput{
			EventType:      conversation.EventEditedMessage,
			ConversationID: in.ConversationID,
			MessageID:      in.MessageID,
			NewText:        in.Text,
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})

	proc.Register("reaction_added", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(reactionEvent)
		delta := w.Manager.UpdateConversation(ctx, conversation.UpdateInput{
			EventType:      conversation.EventAddedReaction,
			ConversationID: ev.chatID,
			MessageID:      ev.messageID,
			Emoji:          ev.emoji,
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})

	proc.Register("reaction_removed", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(reactionEvent)
		delta := w.Manager.UpdateConversation(ctx, conversation.UpdateInput{
			EventType:      conversation.EventRemovedReaction,
			ConversationID: ev.chatID,
			MessageID:      ev.messageID,
			Emoji:          ev.emoji,
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})
}
