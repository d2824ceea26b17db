package zulip

import (
	"strconv"

	"github.com/meshbridge/bridge/internal/conversation"
)

// zulipEvent is the decoded shape of one entry in the /api/v1/events
// response, covering the subset of fields this adapter reads.
type zulipEvent struct {
	ID        int           `json:"id"`
	Type      string        `json:"type"`
	Op        string        `json:"op"`
	EmojiName string        `json:"emoji_name"`
	MessageID int           `json:"message_id"`
	Message   *zulipMessage `json:"message"`
}

type zulipMessage struct {
	ID            int    `json:"id"`
	SenderID      int    `json:"sender_id"`
	SenderFullName string `json:"sender_full_name"`
	Content       string `json:"content"`
	Timestamp     int64  `json:"timestamp"`
	DisplayRecipient string `json:"display_recipient"`
	Subject       string `json:"subject"` // topic: Zulip's native thread id
	Type          string `json:"type"`    // "stream" or "private"
}

type messageEvent struct{ m *zulipMessage }

func (messageEvent) Type() string { return "new_message" }

type reactionEvent struct {
	messageID, emoji string
	added            bool
}

func (e reactionEvent) Type() string {
	if e.added {
		return "reaction_added"
	}
	return "reaction_removed"
}

// ToIncomingMessage converts a Zulip stream message into the
// adapter-local DTO. Zulip's topic is used verbatim as the native thread
// id, per spec.md §3's "Zulip topic" rule — unlike Discord/Slack there is
// no reply-chain fallback because topics are always present on stream
// messages.
func ToIncomingMessage(m *zulipMessage) conversation.IncomingMessage {
	convType := conversation.ConversationDM
	conversationID := strconv.Itoa(m.SenderID)
	if m.Type == "stream" {
		convType = conversation.ConversationChannel
		conversationID = m.DisplayRecipient
	}

	return conversation.IncomingMessage{
		MessageID:        strconv.Itoa(m.ID),
		ConversationID:   conversationID,
		PlatformConvID:   conversationID,
		ConversationType: convType,
		ConversationName: m.DisplayRecipient,
		NativeThreadID:   m.Subject,
		SenderID:         strconv.Itoa(m.SenderID),
		SenderName:       m.SenderFullName,
		Text:             m.Content,
		Timestamp:        m.Timestamp * 1000,
	}
}

func toCachedMessage(m zulipMessage) conversation.CachedMessage {
	conversationID := strconv.Itoa(m.SenderID)
	if m.Type == "stream" {
		conversationID = m.DisplayRecipient
	}
	return conversation.CachedMessage{
		MessageID:      strconv.Itoa(m.ID),
		ConversationID: conversationID,
		SenderID:       strconv.Itoa(m.SenderID),
		Text:           m.Content,
		Timestamp:      m.Timestamp * 1000,
	}
}
