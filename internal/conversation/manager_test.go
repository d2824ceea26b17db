package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	messages := NewMessageCache(1000, 100, time.Hour)
	attachments := NewAttachmentCache(1000, time.Hour)
	users := NewUserCache()
	return NewManager("bot-1", messages, attachments, users, nil)
}

func TestAddToConversation_FirstMessageRequestsHistory(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	delta := m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID:      "m1",
		ConversationID: "c1",
		SenderID:       "u1",
		SenderName:     "alice",
		Text:           "hello",
	}})

	assert.True(t, delta.FetchHistory)
	assert.True(t, delta.JustStarted)
	require.Len(t, delta.AddedMessages, 1)
	assert.Equal(t, "hello", delta.AddedMessages[0].Text)

	// Second message in same conversation must not re-request history
	// (testable property #3 in spec.md §8).
	delta2 := m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID:      "m2",
		ConversationID: "c1",
		SenderID:       "u1",
		Text:           "again",
	}})
	assert.False(t, delta2.FetchHistory)
	assert.False(t, delta2.JustStarted)
}

func TestAddToConversation_EmptyConversationIDReturnsEmptyDelta(t *testing.T) {
	m := newTestManager()
	delta := m.AddToConversation(context.Background(), AddInput{Message: IncomingMessage{MessageID: "m1"}})
	assert.Equal(t, ConversationDelta{}, delta)
}

func TestUpdateConversation_EditSameTextIsNotAnUpdate(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "m1", ConversationID: "c1", SenderID: "u1", Text: "same",
	}})

	delta := m.UpdateConversation(ctx, UpdateInput{
		EventType:      EventEditedMessage,
		ConversationID: "c1",
		MessageID:      "m1",
		NewText:        "same",
	})
	assert.Empty(t, delta.UpdatedMessages)
}

func TestUpdateConversation_EditChangedTextIsUpdate(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "m1", ConversationID: "c1", SenderID: "u1", Text: "old",
	}})

	delta := m.UpdateConversation(ctx, UpdateInput{
		EventType:      EventEditedMessage,
		ConversationID: "c1",
		MessageID:      "m1",
		NewText:        "new",
	})
	require.Len(t, delta.UpdatedMessages, 1)
	assert.Equal(t, "new", delta.UpdatedMessages[0].Text)
	assert.True(t, delta.UpdatedMessages[0].Edited)
}

func TestUpdateConversation_ReactionAddRemove(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "m1", ConversationID: "c1", SenderID: "u1", Text: "hi",
	}})

	added := m.UpdateConversation(ctx, UpdateInput{
		EventType: EventAddedReaction, ConversationID: "c1", MessageID: "m1", Emoji: "thumbs_up",
	})
	assert.Contains(t, added.AddedReactions, "thumbs_up")

	cached, ok := m.messages.Get("m1")
	require.True(t, ok)
	assert.Equal(t, 1, cached.Reactions["thumbs_up"])

	removed := m.UpdateConversation(ctx, UpdateInput{
		EventType: EventRemovedReaction, ConversationID: "c1", MessageID: "m1", Emoji: "thumbs_up",
	})
	assert.Contains(t, removed.RemovedReactions, "thumbs_up")

	cached, ok = m.messages.Get("m1")
	require.True(t, ok)
	assert.Equal(t, 0, cached.Reactions["thumbs_up"])
}

func TestUpdateConversation_PinUnpinOnMissingMessageStillReturnsConversationID(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "m1", ConversationID: "c1", SenderID: "u1", Text: "hi",
	}})

	delta := m.UpdateConversation(ctx, UpdateInput{
		EventType: EventPinnedMessage, ConversationID: "c1", MessageID: "does-not-exist",
	})
	assert.Equal(t, "c1", delta.ConversationID)
	assert.Empty(t, delta.PinnedMessageIDs)
}

func TestUpdateConversation_PinTracksPinnedSet(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "m1", ConversationID: "c1", SenderID: "u1", Text: "hi",
	}})

	delta := m.UpdateConversation(ctx, UpdateInput{
		EventType: EventPinnedMessage, ConversationID: "c1", MessageID: "m1",
	})
	assert.Contains(t, delta.PinnedMessageIDs, "m1")

	convo, ok := m.GetConversation("c1")
	require.True(t, ok)
	_, pinned := convo.PinnedMessages["m1"]
	assert.True(t, pinned, "pinned messages must be a subset of messages (invariant #1)")
	_, present := convo.Messages["m1"]
	assert.True(t, present)
}

func TestDeleteFromConversation_ExplicitConversationID(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "m1", ConversationID: "c1", SenderID: "u1", Text: "hi",
	}})

	delta := m.DeleteFromConversation(ctx, DeleteInput{ConversationID: "c1", DeletedIDs: []string{"m1"}})
	assert.Equal(t, []string{"m1"}, delta.DeletedMessageIDs)

	_, ok := m.messages.Get("m1")
	assert.False(t, ok)
}

func TestDeleteFromConversation_BestMatchWithoutExplicitID(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "a1", ConversationID: "convA", SenderID: "u1", Text: "hi",
	}})
	m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "a2", ConversationID: "convA", SenderID: "u1", Text: "hi2",
	}})
	m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "b1", ConversationID: "convB", SenderID: "u1", Text: "hi3",
	}})

	delta := m.DeleteFromConversation(ctx, DeleteInput{DeletedIDs: []string{"a1", "a2"}})
	assert.Equal(t, "convA", delta.ConversationID)
	assert.ElementsMatch(t, []string{"a1", "a2"}, delta.DeletedMessageIDs)
}

func TestAddToConversation_ThreadResolutionViaReplyChain(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "root", ConversationID: "c1", SenderID: "u1", Text: "root msg",
	}})
	delta := m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "reply1", ConversationID: "c1", SenderID: "u2", Text: "reply",
		ReplyToMessageID: "root",
	}})
	require.Len(t, delta.AddedMessages, 1)
	assert.Equal(t, "root", delta.AddedMessages[0].ThreadID)
}

func TestAddToConversation_MentionsOwnBotViaReplyToBotMessage(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "bot-msg", ConversationID: "c1", SenderID: "bot-1", Text: "bot says hi",
	}})
	delta := m.AddToConversation(ctx, AddInput{Message: IncomingMessage{
		MessageID: "reply-to-bot", ConversationID: "c1", SenderID: "u2", Text: "reply to bot",
		ReplyToMessageID: "bot-msg",
	}})
	require.Len(t, delta.AddedMessages, 1)
	assert.Contains(t, delta.AddedMessages[0].Mentions, "bot-1")
}
