package slack

import (
	"context"

	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/incoming"
	"github.com/meshbridge/bridge/internal/platform/shared"
)

// Register binds this adapter's raw Slack events onto proc.
func Register(proc *incoming.Processor, w shared.Wiring) {
	proc.Register("new_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(messageEvent)
		in := ToIncomingMessage(ev.e)
		delta := w.Manager.AddToConversation(ctx, conversation.AddInput{Message: in})
		return incoming.NewMessageEvents(ctx, w.Builder, w.Fetcher, delta, false, w.Attachments, w.HistoryLimit)
	})

	proc.Register("edited_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(editEvent)
		delta := w.Manager.UpdateConversation(ctx, conversation.UpdateInput{
			EventType:      conversation.EventEditedMessage,
			ConversationID: ev.channel,
			MessageID:      ev.ts,
			NewText:        ev.text,
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})

	proc.Register("deleted_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(deleteEvent)
		delta := w.Manager.DeleteFromConversation(ctx, conversation.DeleteInput{
			ConversationID: ev.channelID,
			DeletedIDs:     []string{ev.ts},
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})

	proc.Register("reaction_added", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(reactionEvent)
		delta := w.Manager.UpdateConversation(ctx, conversation.UpdateInput{
			EventType:      conversation.EventAddedReaction,
			ConversationID: ev.channel,
			MessageID:      ev.ts,
			Emoji:          ev.emoji,
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})

	proc.Register("reaction_removed", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(reactionEvent)
		delta := w.Manager.UpdateConversation(ctx, conversation.UpdateInput{
			EventType:      conversation.EventRemovedReaction,
			ConversationID: ev.channel,
			MessageID:      ev.ts,
			Emoji:          ev.emoji,
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})
}
