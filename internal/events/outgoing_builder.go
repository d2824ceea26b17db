package events

import (
	"encoding/json"

	"github.com/meshbridge/bridge/internal/coreerr"
)

// OutgoingEventType enumerates the wire event_type values a
// BaseOutgoingEvent may carry, per spec.md §6.
type OutgoingEventType string

const (
	EventSendMessage      OutgoingEventType = "send_message"
	EventEditMessage      OutgoingEventType = "edit_message"
	EventDeleteMessage    OutgoingEventType = "delete_message"
	EventAddReaction      OutgoingEventType = "add_reaction"
	EventRemoveReaction   OutgoingEventType = "remove_reaction"
	EventFetchHistory     OutgoingEventType = "fetch_history"
	EventFetchAttachment  OutgoingEventType = "fetch_attachment"
	EventPinMessage       OutgoingEventType = "pin_message"
	EventUnpinMessage     OutgoingEventType = "unpin_message"
)

// RawOutgoingEvent is the wire-level dict before validation/upgrade.
type RawOutgoingEvent struct {
	RequestID         string          `json:"request_id"`
	InternalRequestID string          `json:"internal_request_id,omitempty"`
	EventType         string          `json:"event_type"`
	Data              json.RawMessage `json:"data"`
}

// SendMessageCommand etc. are the typed, validated commands C9 actually
// executes.
type SendMessageCommand struct {
	ConversationID string   `json:"conversation_id"`
	Text           string   `json:"text"`
	Attachments    []string `json:"attachments,omitempty"`
	CustomName     string   `json:"custom_name,omitempty"`
	ThreadID       string   `json:"thread_id,omitempty"`
	Mentions       []string `json:"mentions,omitempty"`
}

type EditMessageCommand struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Text           string `json:"text"`
}

type DeleteMessageCommand struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type ReactionCommand struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Emoji          string `json:"emoji"`
}

type FetchHistoryCommand struct {
	ConversationID string `json:"conversation_id"`
	Limit          int    `json:"limit,omitempty"`
	Before         *int64 `json:"before,omitempty"`
	After          *int64 `json:"after,omitempty"`
}

type FetchAttachmentCommand struct {
	AttachmentID string `json:"attachment_id"`
}

type PinCommand struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// Command is the validated, typed result of OutgoingEventBuilder.Build:
// RequestID/InternalRequestID plus exactly one populated field matching
// EventType.
type Command struct {
	RequestID         string
	InternalRequestID string
	EventType         OutgoingEventType
	SendMessage       *SendMessageCommand
	EditMessage       *EditMessageCommand
	DeleteMessage     *DeleteMessageCommand
	Reaction          *ReactionCommand
	FetchHistory      *FetchHistoryCommand
	FetchAttachment   *FetchAttachmentCommand
	Pin               *PinCommand
}

// OutgoingEventBuilder validates and upgrades a RawOutgoingEvent into a
// typed Command. Unknown event_type raises unknown_event_type; a
// malformed or incomplete payload raises invalid_request (spec.md §4.9,
// §7).
type OutgoingEventBuilder struct{}

func (OutgoingEventBuilder) Build(raw RawOutgoingEvent) (Command, error) {
	cmd := Command{
		RequestID:         raw.RequestID,
		InternalRequestID: raw.InternalRequestID,
		EventType:         OutgoingEventType(raw.EventType),
	}

	decode := func(v any) error {
		if len(raw.Data) == 0 {
			return coreerr.New(coreerr.KindInvalidRequest, "missing data payload")
		}
		if err := json.Unmarshal(raw.Data, v); err != nil {
			return coreerr.Wrap(coreerr.KindInvalidRequest, "malformed data payload", err)
		}
		return nil
	}

	switch cmd.EventType {
	case EventSendMessage:
		var c SendMessageCommand
		if err := decode(&c); err != nil {
			return Command{}, err
		}
		if c.ConversationID == "" {
			return Command{}, coreerr.New(coreerr.KindInvalidRequest, "send_message requires conversation_id")
		}
		cmd.SendMessage = &c

	case EventEditMessage:
		var c EditMessageCommand
		if err := decode(&c); err != nil {
			return Command{}, err
		}
		if c.ConversationID == "" || c.MessageID == "" {
			return Command{}, coreerr.New(coreerr.KindInvalidRequest, "edit_message requires conversation_id and message_id")
		}
		cmd.EditMessage = &c

	case EventDeleteMessage:
		var c DeleteMessageCommand
		if err := decode(&c); err != nil {
			return Command{}, err
		}
		if c.ConversationID == "" || c.MessageID == "" {
			return Command{}, coreerr.New(coreerr.KindInvalidRequest, "delete_message requires conversation_id and message_id")
		}
		cmd.DeleteMessage = &c

	case EventAddReaction, EventRemoveReaction:
		var c ReactionCommand
		if err := decode(&c); err != nil {
			return Command{}, err
		}
		if c.ConversationID == "" || c.MessageID == "" || c.Emoji == "" {
			return Command{}, coreerr.New(coreerr.KindInvalidRequest, "reaction events require conversation_id, message_id, emoji")
		}
		cmd.Reaction = &c

	case EventFetchHistory:
		var c FetchHistoryCommand
		if err := decode(&c); err != nil {
			return Command{}, err
		}
		if c.ConversationID == "" {
			return Command{}, coreerr.New(coreerr.KindInvalidRequest, "fetch_history requires conversation_id")
		}
		if (c.Before == nil) == (c.After == nil) {
			return Command{}, coreerr.New(coreerr.KindInvalidRequest, "fetch_history requires exactly one of before/after")
		}
		cmd.FetchHistory = &c

	case EventFetchAttachment:
		var c FetchAttachmentCommand
		if err := decode(&c); err != nil {
			return Command{}, err
		}
		if c.AttachmentID == "" {
			return Command{}, coreerr.New(coreerr.KindInvalidRequest, "fetch_attachment requires attachment_id")
		}
		cmd.FetchAttachment = &c

	case EventPinMessage, EventUnpinMessage:
		var c PinCommand
		if err := decode(&c); err != nil {
			return Command{}, err
		}
		if c.ConversationID == "" || c.MessageID == "" {
			return Command{}, coreerr.New(coreerr.KindInvalidRequest, "pin events require conversation_id and message_id")
		}
		cmd.Pin = &c

	default:
		return Command{}, coreerr.New(coreerr.KindInvalidRequest, "unknown_event_type: "+raw.EventType)
	}

	return cmd, nil
}
