// Package thread implements C5: reply/forum-thread inference and the
// per-conversation thread index described in spec.md §4.3.
package thread

import "time"

// Message is the minimal view of an incoming message the thread handler
// needs: its own id, an optional native thread id, and an optional
// reply-to pointer.
type Message struct {
	MessageID        string
	NativeThreadID   string // Telegram message_thread_id, Discord thread-channel id, Slack thread_ts, Zulip topic
	ReplyToMessageID string
}

// Lookup resolves a cached message's reply-to pointer, used to walk a
// reply chain back to its root.
type Lookup interface {
	ReplyTo(messageID string) (replyToMessageID string, ok bool)
}

// ThreadIndex is the subset of ConversationInfo.Threads operations the
// handler mutates.
type ThreadIndex interface {
	EnsureThread(threadID string) (isNew bool)
	AddMessage(threadID, messageID string, at time.Time)
}

// Resolve implements the decision rule from spec.md §4.3:
//  1. a native thread id, if present, wins verbatim;
//  2. else, for a reply, walk the reply chain through the cache to its
//     earliest still-cached ancestor (or the furthest ancestor seen if
//     the chain exits the cache);
//  3. else no thread.
//
// When a thread id is assigned, idx is updated: the thread is ensured to
// exist and the message id is added to it.
func Resolve(msg Message, lookup Lookup, idx ThreadIndex, now time.Time) string {
	threadID := msg.NativeThreadID
	if threadID == "" && msg.ReplyToMessageID != "" {
		threadID = rootOfReplyChain(msg.ReplyToMessageID, lookup)
	}
	if threadID == "" {
		return ""
	}
	idx.EnsureThread(threadID)
	idx.AddMessage(threadID, msg.MessageID, now)
	return threadID
}

// rootOfReplyChain walks reply_to pointers through the cache to the
// earliest ancestor still cached. If the chain exits the cache (a
// reply-to id we don't have), the furthest ancestor actually seen is
// used instead of failing the walk.
func rootOfReplyChain(start string, lookup Lookup) string {
	current := start
	furthestSeen := start
	seen := map[string]struct{}{}
	for {
		if _, looped := seen[current]; looped {
			// defensive: a cycle in reply pointers should never happen
			// upstream, but never spin forever if it does.
			return furthestSeen
		}
		seen[current] = struct{}{}
		furthestSeen = current

		parent, ok := lookup.ReplyTo(current)
		if !ok || parent == "" {
			return furthestSeen
		}
		current = parent
	}
}
