package zulip

import (
	"context"

	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/incoming"
	"github.com/meshbridge/bridge/internal/platform/shared"
)

// Register binds this adapter's raw Zulip events onto proc. Zulip's
// events API has no message-delete or message-edit event type wired here
// beyond edits Zulip itself reports as "update_message" — that case is
// left unimplemented pending a concrete edit-event shape, matching this
// module's practice of only wiring event types it has confirmed fields
// for.
func Register(proc *incoming.Processor, w shared.Wiring) {
	proc.Register("new_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(messageEvent)
		in := ToIncomingMessage(ev.m)
		delta := w.Manager.AddToConversation(ctx, conversation.AddInput{Message: in})
		return incoming.NewMessageEvents(ctx, w.Builder, w.Fetcher, delta, false, w.Attachments, w.HistoryLimit)
	})

	proc.Register("reaction_added", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(reactionEvent)
		convID, ok := w.Manager.ConversationIDForMessage(ev.messageID)
		if !ok {
			return nil, nil
		}
		delta := w.Manager.UpdateConversation(ctx, conversation.UpdateInput{
			EventType:      conversation.EventAddedReaction,
			ConversationID: convID,
			MessageID:      ev.messageID,
			Emoji:          ev.emoji,
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})

	proc.Register("reaction_removed", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(reactionEvent)
		convID, ok := w.Manager.ConversationIDForMessage(ev.messageID)
		if !ok {
			return nil, nil
		}
		delta := w.Manager.UpdateConversation(ctx, conversation.UpdateInput{
			EventType:      conversation.EventRemovedReaction,
			ConversationID: convID,
			MessageID:      ev.messageID,
			Emoji:          ev.emoji,
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})
}
