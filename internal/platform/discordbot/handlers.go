package discordbot

import (
	"context"

	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/incoming"
	"github.com/meshbridge/bridge/internal/platform/shared"
)

// Register binds this adapter's raw Discord events onto proc, per
// spec.md §4.6's new_message / edited_message / deleted_message /
// reaction_added / reaction_removed handlers.
func Register(proc *incoming.Processor, w shared.Wiring) {
	proc.Register("new_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(messageEvent)
		parentID, isThread := "", false
		// No thread resolution happens here or in Adapter.dispatchMessage:
		// a message posted in a thread channel is attributed to that
		// channel, and NativeThreadID stays empty.
		in := ToIncomingMessage(ev.m, parentID, isThread)
		attachmentsIn := ToIncomingAttachments(ev.m)

		delta := w.Manager.AddToConversation(ctx, conversation.AddInput{Message: in, Attachments: attachmentsIn})
		return incoming.NewMessageEvents(ctx, w.Builder, w.Fetcher, delta, in.ConversationType == conversation.ConversationDM, w.Attachments, w.HistoryLimit)
	})

	proc.Register("edited_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(editEvent)
		delta := w.Manager.UpdateConversation(ctx, conversation.UpdateInput{
			EventType:      conversation.EventEditedMessage,
			ConversationID: ev.m.ChannelID,
			MessageID:      ev.m.ID,
			NewText:        ev.m.Content,
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})

	proc.Register("deleted_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(deleteEvent)
		delta := w.Manager.DeleteFromConversation(ctx, conversation.DeleteInput{
			ConversationID: ev.channelID,
			DeletedIDs:     []string{ev.messageID},
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})

	proc.Register("reaction_added", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(reactionEvent)
		delta := w.Manager.UpdateConversation(ctx, conversation.UpdateInput{
			EventType:      conversation.EventAddedReaction,
			ConversationID: ev.r.ChannelID,
			MessageID:      ev.r.MessageID,
			Emoji:          ev.r.Emoji.Name,
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})

	proc.Register("reaction_removed", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(reactionEvent)
		delta := w.Manager.UpdateConversation(ctx, conversation.UpdateInput{
			EventType:      conversation.EventRemovedReaction,
			ConversationID: ev.r.ChannelID,
			MessageID:      ev.r.MessageID,
			Emoji:          ev.r.Emoji.Name,
		})
		return w.Builder.FromDelta(delta, false, w.Attachments), nil
	})
}
