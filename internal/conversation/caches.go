package conversation

import (
	"time"

	"github.com/meshbridge/bridge/internal/cache"
)

// MessageCache is C2: conversation -> message_id -> CachedMessage, plus
// the per-conversation and global bounds from spec.md §4.2.
type MessageCache struct {
	base               *cache.Base[CachedMessage]
	maxPerConversation int
}

// NewMessageCache builds C2 bounded by maxTotal entries globally and
// maxPerConversation per conversation, aged out after maxAge.
func NewMessageCache(maxTotal, maxPerConversation int, maxAge time.Duration) *MessageCache {
	return &MessageCache{
		base:               cache.NewBase(maxTotal, maxAge, CachedMessage.AgeAt),
		maxPerConversation: maxPerConversation,
	}
}

func (c *MessageCache) Add(msg CachedMessage) { c.base.Add(msg.MessageID, msg) }

func (c *MessageCache) Get(id string) (CachedMessage, bool) { return c.base.Get(id) }

func (c *MessageCache) Peek(id string) (CachedMessage, bool) { return c.base.Peek(id) }

func (c *MessageCache) Delete(id string) bool { return c.base.Delete(id) }

func (c *MessageCache) Len() int { return c.base.Len() }

// Each exposes a read-only iterator, used by history fetch and
// delete-by-best-match.
func (c *MessageCache) Each(fn func(id string, msg CachedMessage)) { c.base.Each(fn) }

// RunMaintenance runs the age/global-cap sweep; per-conversation capping
// is applied by the ConversationManager, which alone knows conversation
// membership.
func (c *MessageCache) RunMaintenance() []string { return c.base.RunMaintenance() }

// Migrate reassigns a cached message to a new conversation id, keeping
// the message id as its key, used when the platform
// reports a chat-ID change (spec.md §4.2 "migrate").
func (c *MessageCache) Migrate(oldID, newConversationID string) (CachedMessage, bool) {
	msg, ok := c.base.Get(oldID)
	if !ok {
		return CachedMessage{}, false
	}
	msg.ConversationID = newConversationID
	c.base.Add(oldID, msg)
	return msg, true
}

// MaxPerConversation returns the configured per-conversation cap.
func (c *MessageCache) MaxPerConversation() int { return c.maxPerConversation }

// AttachmentCache is C3.
type AttachmentCache struct {
	base *cache.Base[AttachmentInfo]
}

func NewAttachmentCache(maxTotal int, maxAge time.Duration) *AttachmentCache {
	return &AttachmentCache{base: cache.NewBase(maxTotal, maxAge, AttachmentInfo.AgeAt)}
}

func (c *AttachmentCache) Add(a AttachmentInfo)              { c.base.Add(a.AttachmentID, a) }
func (c *AttachmentCache) Get(id string) (AttachmentInfo, bool) { return c.base.Get(id) }
func (c *AttachmentCache) Delete(id string) bool             { return c.base.Delete(id) }
func (c *AttachmentCache) Len() int                          { return c.base.Len() }
func (c *AttachmentCache) RunMaintenance() []string          { return c.base.RunMaintenance() }

// UserCache is C4: populated on first sighting, never evicted by the
// standard maintenance sweep (profiles have no meaningful max age in
// spec.md — it only bounds messages/attachments), but still exposed
// through the shared Base for a consistent shape.
type UserCache struct {
	base *cache.Base[UserInfo]
}

func NewUserCache() *UserCache {
	return &UserCache{base: cache.NewBase[UserInfo](0, 0, nil)}
}

func (c *UserCache) Add(u UserInfo)              { c.base.Add(u.UserID, u) }
func (c *UserCache) Get(id string) (UserInfo, bool) { return c.base.Get(id) }
func (c *UserCache) Delete(id string) bool       { return c.base.Delete(id) }
func (c *UserCache) Len() int                    { return c.base.Len() }
