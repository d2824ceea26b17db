// Package conversation implements the conversation manager and message
// cache (C2-C7 in spec.md §4): the per-adapter in-memory state engine
// that deduplicates, normalizes, threads, reacts-tracks, pins-tracks,
// bounds, and expires messages, computing a ConversationDelta for every
// upstream event.
package conversation

import "time"

// ConversationType enumerates the upstream scopes spec.md §3 names.
type ConversationType string

const (
	ConversationPrivate    ConversationType = "private"
	ConversationGroup      ConversationType = "group"
	ConversationChannel    ConversationType = "channel"
	ConversationDM         ConversationType = "dm"
	ConversationThread     ConversationType = "thread"
	ConversationTextChannel ConversationType = "text_channel"
)

// AttachmentType enumerates the derived types from spec.md §3.
type AttachmentType string

const (
	AttachmentImage      AttachmentType = "image"
	AttachmentVideo      AttachmentType = "video"
	AttachmentAudio      AttachmentType = "audio"
	AttachmentDocument   AttachmentType = "document"
	AttachmentArchive    AttachmentType = "archive"
	AttachmentCode       AttachmentType = "code"
	AttachmentEbook      AttachmentType = "ebook"
	AttachmentFont       AttachmentType = "font"
	Attachment3DModel    AttachmentType = "3d_model"
	AttachmentExecutable AttachmentType = "executable"
	AttachmentSticker    AttachmentType = "sticker"
)

// UserInfo is a cached upstream user profile (C4).
type UserInfo struct {
	UserID    string
	Username  string
	FirstName string
	LastName  string
	IsBot     bool
}

// DisplayName implements the derivation rule in spec.md §3: username,
// else "first last", else "Unknown User".
func (u UserInfo) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return "Unknown User"
	}
	return name
}

// CachedMessage is the normalized, cached form of an upstream message (C2).
type CachedMessage struct {
	MessageID          string
	ConversationID     string
	ThreadID           string
	SenderID           string
	SenderName         string
	Text               string
	Timestamp          int64 // unit is fixed per adapter at the edge, see spec.md §9
	EditTimestamp      int64
	Edited             bool
	IsFromBot          bool
	ReplyToMessageID   string
	IsPinned           bool
	Reactions          map[string]int // emoji name -> count, count >= 1 (invariant #2)
	Attachments        []string       // attachment_id list
	Mentions           []string       // user_id list, or "all"
	CreatedAt          time.Time
	ModifiedAt         time.Time
	ServiceMessage     bool // join/leave/call; skipped by history fetching
}

// IsServiceMessage reports whether this cached message is a
// join/leave/call notice rather than user content.
func (m CachedMessage) IsServiceMessage() bool { return m.ServiceMessage }

// AgeAt returns the timestamp eviction keys off: last modification, so an
// edited message's clock resets (matches "last-modification time" in
// spec.md §4.2).
func (m CachedMessage) AgeAt() time.Time { return m.ModifiedAt }

// HasReaction reports whether e is present with count > 0.
func (m CachedMessage) HasReaction(e string) bool {
	return m.Reactions[e] > 0
}

// ThreadInfo tracks a reply-chain or native thread (C5).
type ThreadInfo struct {
	ThreadID       string
	Title          string
	RootMessageID  string
	Messages       map[string]struct{}
	LastActivity   time.Time
}

// Empty reports whether the thread has no remaining cached messages,
// making it "eligible for removal on next maintenance pass" (spec.md §3).
func (t *ThreadInfo) Empty() bool { return len(t.Messages) == 0 }

// AttachmentInfo is the cached attachment metadata (C3).
type AttachmentInfo struct {
	AttachmentID   string
	AttachmentType AttachmentType
	Filename       string
	FileExtension  string
	Size           int64
	ContentType    string
	URL            string
	Processable    bool
	CreatedAt      time.Time
	ModifiedAt     time.Time
	LocalPath      string // <storage>/<type>/<id>/<filename>
	RefCount       int    // blob may outlive this entry if referenced elsewhere
}

func (a AttachmentInfo) AgeAt() time.Time { return a.ModifiedAt }

// ConversationInfo is one upstream scope's full cached state.
type ConversationInfo struct {
	ConversationID         string
	PlatformConversationID string
	ConversationType       ConversationType
	ConversationName       string
	ServerID               string
	ServerName             string

	KnownMembers   map[string]UserInfo
	Messages       map[string]struct{} // message_ids currently present in C2
	PinnedMessages map[string]struct{} // subset of Messages
	Threads        map[string]*ThreadInfo

	FetchHistoryDone bool // true once the conversation has emitted fetch_history=true
	CreatedAt        time.Time
}

// NewConversationInfo constructs an empty, just-started conversation.
func NewConversationInfo(id, platformID string, ctype ConversationType) *ConversationInfo {
	return &ConversationInfo{
		ConversationID:         id,
		PlatformConversationID: platformID,
		ConversationType:       ctype,
		KnownMembers:           make(map[string]UserInfo),
		Messages:               make(map[string]struct{}),
		PinnedMessages:         make(map[string]struct{}),
		Threads:                make(map[string]*ThreadInfo),
		CreatedAt:              time.Now(),
	}
}

// ConversationDelta is the pure value returned by every C7 mutation
// (spec.md §3 "ConversationDelta").
type ConversationDelta struct {
	ConversationID      string
	ConversationName    string
	ServerName          string
	FetchHistory        bool
	JustStarted         bool
	AddedMessages       []CachedMessage
	UpdatedMessages     []CachedMessage
	DeletedMessageIDs   []string
	PinnedMessageIDs    []string
	UnpinnedMessageIDs  []string
	AddedReactions      []string
	RemovedReactions    []string
	MessageID           string // set for single-message reaction/pin events
}

// Empty returns a delta carrying only the conversation id, used when a
// handler must signal "nothing observable happened" without raising.
func Empty(conversationID string) ConversationDelta {
	return ConversationDelta{ConversationID: conversationID}
}
