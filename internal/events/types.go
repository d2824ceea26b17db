// Package events implements C10: the three pure builder families that
// translate between ConversationDelta/wire dicts and the typed event
// envelopes described in spec.md §6. None of these functions perform I/O.
package events

// Envelope is the common shape every incoming (adapter -> controller)
// event carries.
type Envelope struct {
	AdapterType string `json:"adapter_type"`
	EventType   string `json:"event_type"`
	Data        any    `json:"data"`
}

// Sender is the normalized actor on a message_received/updated event.
type Sender struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Attachment is the outward-facing attachment shape nested in message
// payloads.
type Attachment struct {
	AttachmentID string `json:"attachment_id"`
	Filename     string `json:"filename"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
}

type baseData struct {
	AdapterName string `json:"adapter_name"`
	AdapterID   string `json:"adapter_id"`
}

// ConversationStartedData / ConversationUpdatedData share a shape.
type ConversationData struct {
	baseData
	ConversationID   string `json:"conversation_id"`
	ConversationName string `json:"conversation_name,omitempty"`
	ServerName       string `json:"server_name,omitempty"`
}

type MessageReceivedData struct {
	baseData
	MessageID       string       `json:"message_id"`
	ConversationID  string       `json:"conversation_id"`
	Sender          Sender       `json:"sender"`
	Text            string       `json:"text"`
	Timestamp       int64        `json:"timestamp"`
	Edited          bool         `json:"edited"`
	IsDirectMessage bool         `json:"is_direct_message"`
	ThreadID        string       `json:"thread_id,omitempty"`
	EditTimestamp   int64        `json:"edit_timestamp,omitempty"`
	Attachments     []Attachment `json:"attachments"`
	Mentions        []string     `json:"mentions"`
}

type MessageUpdatedData struct {
	baseData
	MessageID      string       `json:"message_id"`
	ConversationID string       `json:"conversation_id"`
	NewText        string       `json:"new_text"`
	Timestamp      int64        `json:"timestamp,omitempty"`
	Attachments    []Attachment `json:"attachments"`
	Mentions       []string     `json:"mentions"`
}

type MessageDeletedData struct {
	baseData
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

type ReactionData struct {
	baseData
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Emoji          string `json:"emoji"`
}

type PinData struct {
	baseData
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

type HistoryFetchedData struct {
	baseData
	ConversationID string                `json:"conversation_id"`
	History        []MessageReceivedData `json:"history"`
}
