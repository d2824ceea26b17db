package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/meshbridge/bridge/internal/corelog"
	"github.com/meshbridge/bridge/internal/reaction"
	"github.com/meshbridge/bridge/internal/thread"
)

// Manager is C7, the conversation manager. It serialises all three
// mutators through a per-conversation lock (spec.md §4.5 "Concurrency")
// so a burst of edits on one conversation is totally ordered while
// different conversations make progress concurrently — implemented as a
// map of conversation_id to its own mutex, per the "Design Notes" in
// spec.md §9 rather than one global lock.
type Manager struct {
	adapterID string
	log       *corelog.Logger

	mu            sync.Mutex // guards conversations map and locks map themselves
	conversations map[string]*ConversationInfo
	locks         map[string]*sync.Mutex

	messages    *MessageCache
	attachments *AttachmentCache
	users       *UserCache
}

// NewManager builds C7 wired to its own C2/C3/C4 caches. adapterID is the
// bridge's own upstream user id, used to decide is_from_bot and mentions.
func NewManager(adapterID string, messages *MessageCache, attachments *AttachmentCache, users *UserCache, log *corelog.Logger) *Manager {
	return &Manager{
		adapterID:     adapterID,
		log:           log,
		conversations: make(map[string]*ConversationInfo),
		locks:         make(map[string]*sync.Mutex),
		messages:      messages,
		attachments:   attachments,
		users:         users,
	}
}

func (m *Manager) lockFor(conversationID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[conversationID] = l
	}
	return l
}

// GetConversation is the read-only query operation.
func (m *Manager) GetConversation(conversationID string) (*ConversationInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[conversationID]
	return c, ok
}

// ConversationIDForMessage resolves a cached message id back to its
// conversation id, for platforms whose event payloads (Zulip reactions,
// notably) don't carry the channel/stream id alongside the message id.
func (m *Manager) ConversationIDForMessage(messageID string) (string, bool) {
	cached, ok := m.messages.Get(messageID)
	if !ok {
		return "", false
	}
	return cached.ConversationID, true
}

// GetAttachment resolves an attachment id to its cached metadata,
// satisfying incoming.AttachmentLookup so event builders can inline
// filename/content_type/size onto a message envelope.
func (m *Manager) GetAttachment(attachmentID string) (AttachmentInfo, bool) {
	return m.attachments.Get(attachmentID)
}

func (m *Manager) getOrCreate(in IncomingMessage) (*ConversationInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, exists := m.conversations[in.ConversationID]
	if exists {
		return c, false
	}
	c = NewConversationInfo(in.ConversationID, in.PlatformConvID, in.ConversationType)
	c.ConversationName = in.ConversationName
	c.ServerID = in.ServerID
	c.ServerName = in.ServerName
	m.conversations[in.ConversationID] = c
	return c, true
}

// AddToConversation implements spec.md §4.5 add_to_conversation.
func (m *Manager) AddToConversation(ctx context.Context, in AddInput) ConversationDelta {
	msg := in.Message
	if msg.ConversationID == "" {
		return ConversationDelta{}
	}

	lock := m.lockFor(msg.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	convo, justCreated := m.getOrCreate(msg)

	delta := ConversationDelta{
		ConversationID:   convo.ConversationID,
		ConversationName: convo.ConversationName,
		ServerName:       convo.ServerName,
		JustStarted:      justCreated,
	}
	if justCreated {
		delta.FetchHistory = true
		convo.FetchHistoryDone = true
	}

	// Upsert sender into known_members (C4-backed).
	sender := UserInfo{UserID: msg.SenderID, Username: msg.SenderName, IsBot: msg.SenderIsBot}
	m.users.Add(sender)
	convo.KnownMembers[msg.SenderID] = sender

	now := time.Now()
	threadID := thread.Resolve(
		thread.Message{MessageID: msg.MessageID, NativeThreadID: msg.NativeThreadID, ReplyToMessageID: msg.ReplyToMessageID},
		replyLookup{convo: convo, cache: m.messages},
		convoThreadIndex{convo: convo},
		now,
	)

	reactions := msg.Reactions
	if reactions == nil {
		reactions = map[string]int{}
	}

	cached := CachedMessage{
		MessageID:        msg.MessageID,
		ConversationID:   convo.ConversationID,
		ThreadID:         threadID,
		SenderID:         msg.SenderID,
		SenderName:       msg.SenderName,
		Text:             msg.Text,
		Timestamp:        msg.Timestamp,
		IsFromBot:        msg.SenderID == m.adapterID,
		ReplyToMessageID: msg.ReplyToMessageID,
		IsPinned:         msg.IsPinned,
		Reactions:        reactions,
		CreatedAt:        now,
		ModifiedAt:       now,
		Mentions:         m.resolveMentions(msg),
		ServiceMessage:   msg.IsServiceMessage,
	}

	for _, att := range in.Attachments {
		m.attachments.Add(AttachmentInfo{
			AttachmentID:   att.AttachmentID,
			AttachmentType: att.AttachmentType,
			Filename:       att.Filename,
			FileExtension:  att.FileExtension,
			Size:           att.Size,
			ContentType:    att.ContentType,
			URL:            att.URL,
			Processable:    att.Processable,
			LocalPath:      att.LocalPath,
			CreatedAt:      now,
			ModifiedAt:     now,
			RefCount:       1,
		})
		cached.Attachments = append(cached.Attachments, att.AttachmentID)
	}

	m.messages.Add(cached)
	convo.Messages[msg.MessageID] = struct{}{}
	if cached.IsPinned {
		convo.PinnedMessages[msg.MessageID] = struct{}{}
	}

	m.enforcePerConversationCap(convo)

	delta.AddedMessages = append(delta.AddedMessages, cached)
	return delta
}

// resolveMentions implements the platform-agnostic mention rule in
// spec.md §4.5 step 8: own id in explicit mentions, or a reply to a
// message the bot authored, or an at-all token.
func (m *Manager) resolveMentions(msg IncomingMessage) []string {
	var mentions []string
	for _, uid := range msg.MentionsUserIDs {
		mentions = append(mentions, uid)
	}
	if msg.ReplyToMessageID != "" {
		if parent, ok := m.messages.Peek(msg.ReplyToMessageID); ok && parent.IsFromBot {
			mentions = appendUnique(mentions, m.adapterID)
		}
	}
	if msg.MentionsAll {
		mentions = appendUnique(mentions, "all")
	}
	return mentions
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// enforcePerConversationCap evicts the oldest messages in convo until its
// message count is within MessageCache.MaxPerConversation(). Must be
// called with the conversation's lock held.
func (m *Manager) enforcePerConversationCap(convo *ConversationInfo) {
	cap := m.messages.MaxPerConversation()
	if cap <= 0 || len(convo.Messages) <= cap {
		return
	}
	type idTime struct {
		id string
		ts time.Time
	}
	all := make([]idTime, 0, len(convo.Messages))
	for id := range convo.Messages {
		if cm, ok := m.messages.Peek(id); ok {
			all = append(all, idTime{id, cm.CreatedAt})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts.Before(all[j].ts) })
	over := len(convo.Messages) - cap
	for i := 0; i < over && i < len(all); i++ {
		m.removeMessageFromConversation(convo, all[i].id)
	}
}

func (m *Manager) removeMessageFromConversation(convo *ConversationInfo, id string) {
	m.messages.Delete(id)
	delete(convo.Messages, id)
	delete(convo.PinnedMessages, id)
}

// UpdateConversation implements spec.md §4.5 update_conversation,
// dispatching on event_type.
func (m *Manager) UpdateConversation(ctx context.Context, in UpdateInput) ConversationDelta {
	if in.ConversationID == "" {
		return ConversationDelta{}
	}
	lock := m.lockFor(in.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	convo, ok := m.conversations[in.ConversationID]
	if !ok {
		return ConversationDelta{ConversationID: in.ConversationID}
	}

	switch in.EventType {
	case EventEditedMessage:
		return m.applyEdit(convo, in)
	case EventAddedReaction, EventRemovedReaction:
		return m.applySingleReaction(convo, in)
	case EventPinnedMessage, EventUnpinnedMessage:
		return m.applyPinFlip(convo, in)
	default:
		return ConversationDelta{ConversationID: in.ConversationID}
	}
}

func (m *Manager) applyEdit(convo *ConversationInfo, in UpdateInput) ConversationDelta {
	delta := ConversationDelta{ConversationID: convo.ConversationID}
	cached, ok := m.messages.Get(in.MessageID)
	if !ok {
		// pin/unpin still returns a delta with conversation_id so the
		// surface event can be suppressed cleanly; an edit on a message
		// we never cached has nothing further to report.
		return delta
	}

	now := time.Now()
	// A resend with unchanged text is not a text update (spec.md §4.5
	// edge rule: some platforms resend the full message on any metadata
	// change).
	if in.NewText != "" && in.NewText != cached.Text {
		cached.Text = in.NewText
		cached.EditTimestamp = now.UnixMilli()
		cached.Edited = true
		cached.ModifiedAt = now
		delta.UpdatedMessages = append(delta.UpdatedMessages, cached)
	}

	if in.HasNewReactions {
		added, removed := reaction.Diff(cached.Reactions, in.NewReactions)
		if len(added) > 0 || len(removed) > 0 {
			cached.Reactions = in.NewReactions
			cached.ModifiedAt = now
			delta.AddedReactions = added
			delta.RemovedReactions = removed
			delta.MessageID = in.MessageID
		}
	}

	if in.NewIsPinned != nil && *in.NewIsPinned != cached.IsPinned {
		cached.IsPinned = *in.NewIsPinned
		cached.ModifiedAt = now
		if cached.IsPinned {
			convo.PinnedMessages[in.MessageID] = struct{}{}
			delta.PinnedMessageIDs = append(delta.PinnedMessageIDs, in.MessageID)
		} else {
			delete(convo.PinnedMessages, in.MessageID)
			delta.UnpinnedMessageIDs = append(delta.UnpinnedMessageIDs, in.MessageID)
		}
	}

	m.messages.Add(cached)
	return delta
}

func (m *Manager) applySingleReaction(convo *ConversationInfo, in UpdateInput) ConversationDelta {
	delta := ConversationDelta{ConversationID: convo.ConversationID}
	cached, ok := m.messages.Get(in.MessageID)
	if !ok {
		return delta
	}
	old := cached.Reactions
	next := make(map[string]int, len(old))
	for k, v := range old {
		next[k] = v
	}
	switch in.EventType {
	case EventAddedReaction:
		next[in.Emoji] = next[in.Emoji] + 1
	case EventRemovedReaction:
		if next[in.Emoji] > 0 {
			next[in.Emoji]--
			if next[in.Emoji] == 0 {
				delete(next, in.Emoji)
			}
		}
	}
	added, removed := reaction.Diff(old, next)
	cached.Reactions = next
	cached.ModifiedAt = time.Now()
	m.messages.Add(cached)

	delta.AddedReactions = added
	delta.RemovedReactions = removed
	if len(added) > 0 || len(removed) > 0 {
		delta.MessageID = in.MessageID
	}
	return delta
}

func (m *Manager) applyPinFlip(convo *ConversationInfo, in UpdateInput) ConversationDelta {
	delta := ConversationDelta{ConversationID: convo.ConversationID}
	wantPinned := in.EventType == EventPinnedMessage

	cached, ok := m.messages.Get(in.MessageID)
	if !ok {
		// Still report the conversation id so callers can suppress the
		// surface event cleanly, per spec.md §4.5 edge rules.
		return delta
	}
	if cached.IsPinned == wantPinned {
		return delta
	}
	cached.IsPinned = wantPinned
	cached.ModifiedAt = time.Now()
	m.messages.Add(cached)

	if wantPinned {
		convo.PinnedMessages[in.MessageID] = struct{}{}
		delta.PinnedMessageIDs = append(delta.PinnedMessageIDs, in.MessageID)
	} else {
		delete(convo.PinnedMessages, in.MessageID)
		delta.UnpinnedMessageIDs = append(delta.UnpinnedMessageIDs, in.MessageID)
	}
	delta.MessageID = in.MessageID
	return delta
}

// DeleteFromConversation implements spec.md §4.5 delete_from_conversation.
// It resolves the target conversation by explicit id, else by best-match:
// the conversation whose messages set intersects deleted_ids the most,
// ties broken deterministically by conversation_id lexicographic order
// (spec.md §9, resolving an ambiguity the source left to map iteration
// order).
func (m *Manager) DeleteFromConversation(ctx context.Context, in DeleteInput) ConversationDelta {
	conversationID := in.ConversationID
	if conversationID == "" {
		conversationID = m.bestMatch(in.DeletedIDs)
	}
	if conversationID == "" {
		return ConversationDelta{}
	}

	lock := m.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	convo, ok := m.conversations[conversationID]
	if !ok {
		return ConversationDelta{ConversationID: conversationID}
	}

	delta := ConversationDelta{ConversationID: conversationID}
	for _, id := range in.DeletedIDs {
		if _, present := convo.Messages[id]; !present {
			continue
		}
		m.removeMessageFromConversation(convo, id)
		delta.DeletedMessageIDs = append(delta.DeletedMessageIDs, id)
	}
	return delta
}

func (m *Manager) bestMatch(deletedIDs []string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]struct{}, len(deletedIDs))
	for _, id := range deletedIDs {
		wanted[id] = struct{}{}
	}

	bestID := ""
	bestCount := -1
	ids := make([]string, 0, len(m.conversations))
	for id := range m.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic tie-break, per spec.md §9
	for _, id := range ids {
		convo := m.conversations[id]
		count := 0
		for msgID := range wanted {
			if _, ok := convo.Messages[msgID]; ok {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			bestID = id
		}
	}
	if bestCount <= 0 {
		return ""
	}
	return bestID
}

// RecordSent folds a successfully sent outbound message back into C2/C7
// as though it had been observed incoming, so edits/reactions/history on
// the bridge's own messages resolve the same way as for anyone else's
// (outgoing.Recorder, spec.md §4.7 step 4). Platforms that fan a single
// send_message out to several message_ids (e.g. attachment-per-message
// adapters) get one cache entry per id, all sharing the same text.
func (m *Manager) RecordSent(conversationID string, messageIDs []string, text string) {
	lock := m.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	convo, ok := m.conversations[conversationID]
	if !ok {
		return
	}
	now := time.Now()
	for _, id := range messageIDs {
		cached := CachedMessage{
			MessageID:      id,
			ConversationID: conversationID,
			SenderID:       m.adapterID,
			Text:           text,
			Timestamp:      now.UnixMilli(),
			IsFromBot:      true,
			Reactions:      map[string]int{},
			CreatedAt:      now,
			ModifiedAt:     now,
		}
		m.messages.Add(cached)
		convo.Messages[id] = struct{}{}
	}
	m.enforcePerConversationCap(convo)
}

// RecordEdited applies a confirmed outbound edit to the cached message,
// mirroring applyEdit's text-update branch for the bridge's own sends.
func (m *Manager) RecordEdited(conversationID, messageID, text string) {
	lock := m.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	cached, ok := m.messages.Get(messageID)
	if !ok {
		return
	}
	now := time.Now()
	cached.Text = text
	cached.Edited = true
	cached.EditTimestamp = now.UnixMilli()
	cached.ModifiedAt = now
	m.messages.Add(cached)
}

// RecordDeleted removes a confirmed outbound delete from the cache.
func (m *Manager) RecordDeleted(conversationID, messageID string) {
	lock := m.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	convo, ok := m.conversations[conversationID]
	if !ok {
		return
	}
	m.removeMessageFromConversation(convo, messageID)
}

// RecordFetched folds one page of platform-fetched history into C2
// without emitting a downstream event, implementing history.Recorder for
// the "cache_fetched_history" behavior in spec.md §4.8.
func (m *Manager) RecordFetched(msg CachedMessage) {
	if msg.ConversationID == "" {
		return
	}
	lock := m.lockFor(msg.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	convo, ok := m.conversations[msg.ConversationID]
	if !ok {
		return
	}
	if _, exists := m.messages.Get(msg.MessageID); exists {
		return
	}
	m.messages.Add(msg)
	convo.Messages[msg.MessageID] = struct{}{}
	if msg.IsPinned {
		convo.PinnedMessages[msg.MessageID] = struct{}{}
	}
}

// replyLookup adapts the message cache + conversation into thread.Lookup.
type replyLookup struct {
	convo *ConversationInfo
	cache *MessageCache
}

func (r replyLookup) ReplyTo(messageID string) (string, bool) {
	cm, ok := r.cache.Peek(messageID)
	if !ok {
		return "", false
	}
	return cm.ReplyToMessageID, true
}

// convoThreadIndex adapts ConversationInfo.Threads into thread.ThreadIndex.
type convoThreadIndex struct {
	convo *ConversationInfo
}

func (c convoThreadIndex) EnsureThread(threadID string) bool {
	if _, ok := c.convo.Threads[threadID]; ok {
		return false
	}
	c.convo.Threads[threadID] = &ThreadInfo{ThreadID: threadID, Messages: make(map[string]struct{})}
	return true
}

func (c convoThreadIndex) AddMessage(threadID, messageID string, at time.Time) {
	t, ok := c.convo.Threads[threadID]
	if !ok {
		t = &ThreadInfo{ThreadID: threadID, Messages: make(map[string]struct{})}
		c.convo.Threads[threadID] = t
	}
	t.Messages[messageID] = struct{}{}
	t.LastActivity = at
}
