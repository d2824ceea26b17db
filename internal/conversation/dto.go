package conversation

// IncomingMessage is the adapter-local DTO a platform package builds at
// the edge before calling into the Manager. Every platform converts its
// native SDK object into this shape — C7 never sees a platform type
// (spec.md §9 "Dynamic field access... collapses to explicit variant
// matching... narrow adapter-local DTOs").
type IncomingMessage struct {
	MessageID        string
	ConversationID   string // resolved by the adapter's platform resolver; empty means "could not resolve"
	PlatformConvID   string
	ConversationType ConversationType
	ConversationName string
	ServerID         string
	ServerName       string

	SenderID         string
	SenderName       string
	SenderIsBot      bool
	Text             string
	Timestamp        int64
	NativeThreadID   string
	ReplyToMessageID string
	IsPinned         bool
	Reactions        map[string]int

	MentionsUserIDs []string
	MentionsAll     bool

	IsServiceMessage bool // join/leave/call; filtered by C8 unless it carries semantic meaning
}

// IncomingAttachment is the adapter-local DTO for an attachment observed
// alongside an incoming message.
type IncomingAttachment struct {
	AttachmentID   string
	AttachmentType AttachmentType
	Filename       string
	FileExtension  string
	Size           int64
	ContentType    string
	URL            string
	Processable    bool
	LocalPath      string
}

// AddInput is the payload for add_to_conversation.
type AddInput struct {
	Message     IncomingMessage
	Attachments []IncomingAttachment
}

// UpdateEventType enumerates update_conversation's event_type dispatch.
type UpdateEventType string

const (
	EventEditedMessage    UpdateEventType = "edited_message"
	EventAddedReaction    UpdateEventType = "added_reaction"
	EventRemovedReaction  UpdateEventType = "removed_reaction"
	EventPinnedMessage    UpdateEventType = "pinned_message"
	EventUnpinnedMessage  UpdateEventType = "unpinned_message"
)

// UpdateInput is the payload for update_conversation.
type UpdateInput struct {
	EventType      UpdateEventType
	ConversationID string
	MessageID      string

	// edited_message
	NewText           string
	NewReactions       map[string]int // full snapshot, for a resend-style edit
	NewIsPinned       *bool
	HasNewReactions   bool

	// added_reaction / removed_reaction (single emoji)
	Emoji string
}

// DeleteInput is the payload for delete_from_conversation. Exactly one of
// ConversationID or DeletedIDs-only best-match resolution is used per
// spec.md §4.5.
type DeleteInput struct {
	ConversationID string // explicit, if known
	DeletedIDs     []string
}
