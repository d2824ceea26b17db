package events

import (
	"github.com/meshbridge/bridge/internal/conversation"
)

// IncomingEventBuilder is C10's first family: pure ConversationDelta ->
// Envelope conversion. adapterType/adapterName/adapterID are the bot's
// own identity, stamped onto every event per spec.md §6.
type IncomingEventBuilder struct {
	AdapterType string
	AdapterName string
	AdapterID   string
}

func (b IncomingEventBuilder) base() baseData {
	return baseData{AdapterName: b.AdapterName, AdapterID: b.AdapterID}
}

func (b IncomingEventBuilder) envelope(eventType string, data any) Envelope {
	return Envelope{AdapterType: b.AdapterType, EventType: eventType, Data: data}
}

func toAttachments(ids []string, lookup func(id string) (conversation.AttachmentInfo, bool)) []Attachment {
	out := make([]Attachment, 0, len(ids))
	for _, id := range ids {
		info, ok := lookup(id)
		if !ok {
			continue
		}
		out = append(out, Attachment{
			AttachmentID: info.AttachmentID,
			Filename:     info.Filename,
			ContentType:  info.ContentType,
			Size:         info.Size,
		})
	}
	return out
}

// ConversationStarted builds the event emitted the first time a
// conversation is observed.
func (b IncomingEventBuilder) ConversationStarted(delta conversation.ConversationDelta) Envelope {
	return b.envelope("conversation_started", ConversationData{
		baseData:         b.base(),
		ConversationID:   delta.ConversationID,
		ConversationName: delta.ConversationName,
		ServerName:       delta.ServerName,
	})
}

// ConversationUpdated mirrors ConversationStarted for subsequent deltas
// that alter conversation metadata (name/server changes).
func (b IncomingEventBuilder) ConversationUpdated(delta conversation.ConversationDelta) Envelope {
	return b.envelope("conversation_updated", ConversationData{
		baseData:         b.base(),
		ConversationID:   delta.ConversationID,
		ConversationName: delta.ConversationName,
		ServerName:       delta.ServerName,
	})
}

// MessageReceived builds one event per newly added message.
func (b IncomingEventBuilder) MessageReceived(msg conversation.CachedMessage, isDirectMessage bool, attachments func(id string) (conversation.AttachmentInfo, bool)) Envelope {
	return b.envelope("message_received", MessageReceivedData{
		baseData:        b.base(),
		MessageID:       msg.MessageID,
		ConversationID:  msg.ConversationID,
		Sender:          Sender{UserID: msg.SenderID, DisplayName: msg.SenderName},
		Text:            msg.Text,
		Timestamp:       msg.Timestamp,
		Edited:          msg.Edited,
		IsDirectMessage: isDirectMessage,
		ThreadID:        msg.ThreadID,
		EditTimestamp:   msg.EditTimestamp,
		Attachments:     toAttachments(msg.Attachments, attachments),
		Mentions:        msg.Mentions,
	})
}

// MessageUpdated builds the event for a text/attachment/mention change.
func (b IncomingEventBuilder) MessageUpdated(msg conversation.CachedMessage, attachments func(id string) (conversation.AttachmentInfo, bool)) Envelope {
	return b.envelope("message_updated", MessageUpdatedData{
		baseData:       b.base(),
		MessageID:      msg.MessageID,
		ConversationID: msg.ConversationID,
		NewText:        msg.Text,
		Timestamp:      msg.ModifiedAt.UnixMilli(),
		Attachments:    toAttachments(msg.Attachments, attachments),
		Mentions:       msg.Mentions,
	})
}

// MessageDeleted builds one event per deleted message id.
func (b IncomingEventBuilder) MessageDeleted(conversationID, messageID string) Envelope {
	return b.envelope("message_deleted", MessageDeletedData{
		baseData: b.base(), MessageID: messageID, ConversationID: conversationID,
	})
}

func (b IncomingEventBuilder) reactionEvent(eventType, conversationID, messageID, emoji string) Envelope {
	return b.envelope(eventType, ReactionData{
		baseData: b.base(), MessageID: messageID, ConversationID: conversationID, Emoji: emoji,
	})
}

func (b IncomingEventBuilder) ReactionAdded(conversationID, messageID, emoji string) Envelope {
	return b.reactionEvent("reaction_added", conversationID, messageID, emoji)
}

func (b IncomingEventBuilder) ReactionRemoved(conversationID, messageID, emoji string) Envelope {
	return b.reactionEvent("reaction_removed", conversationID, messageID, emoji)
}

func (b IncomingEventBuilder) pinEvent(eventType, conversationID, messageID string) Envelope {
	return b.envelope(eventType, PinData{baseData: b.base(), MessageID: messageID, ConversationID: conversationID})
}

func (b IncomingEventBuilder) MessagePinned(conversationID, messageID string) Envelope {
	return b.pinEvent("message_pinned", conversationID, messageID)
}

func (b IncomingEventBuilder) MessageUnpinned(conversationID, messageID string) Envelope {
	return b.pinEvent("message_unpinned", conversationID, messageID)
}

// HistoryFetched wraps C11's result.
func (b IncomingEventBuilder) HistoryFetched(conversationID string, history []conversation.CachedMessage, isDirectMessage bool, attachments func(id string) (conversation.AttachmentInfo, bool)) Envelope {
	items := make([]MessageReceivedData, 0, len(history))
	for _, msg := range history {
		items = append(items, b.MessageReceived(msg, isDirectMessage, attachments).Data.(MessageReceivedData))
	}
	return b.envelope("history_fetched", HistoryFetchedData{
		baseData:       b.base(),
		ConversationID: conversationID,
		History:        items,
	})
}

// FromDelta reshapes a ConversationDelta into zero or more outbound
// envelopes, following the ordering implied by spec.md §4.6: a
// conversation_started event precedes its message_received events.
func (b IncomingEventBuilder) FromDelta(delta conversation.ConversationDelta, isDirectMessage bool, attachments func(id string) (conversation.AttachmentInfo, bool)) []Envelope {
	var out []Envelope
	if delta.JustStarted {
		out = append(out, b.ConversationStarted(delta))
	}
	for _, msg := range delta.AddedMessages {
		out = append(out, b.MessageReceived(msg, isDirectMessage, attachments))
	}
	for _, msg := range delta.UpdatedMessages {
		out = append(out, b.MessageUpdated(msg, attachments))
	}
	for _, id := range delta.DeletedMessageIDs {
		out = append(out, b.MessageDeleted(delta.ConversationID, id))
	}
	for _, e := range delta.AddedReactions {
		out = append(out, b.ReactionAdded(delta.ConversationID, delta.MessageID, e))
	}
	for _, e := range delta.RemovedReactions {
		out = append(out, b.ReactionRemoved(delta.ConversationID, delta.MessageID, e))
	}
	for _, id := range delta.PinnedMessageIDs {
		out = append(out, b.MessagePinned(delta.ConversationID, id))
	}
	for _, id := range delta.UnpinnedMessageIDs {
		out = append(out, b.MessageUnpinned(delta.ConversationID, id))
	}
	return out
}
