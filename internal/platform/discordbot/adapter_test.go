package discordbot

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbridge/bridge/internal/events"
)

type fakeSession struct {
	sent       []*discordgo.MessageSend
	deleted    []string
	pinned     []string
	reactions  []string
	handlers   []interface{}
	sendResult *discordgo.Message
}

func (f *fakeSession) Open() error  { return nil }
func (f *fakeSession) Close() error { return nil }
func (f *fakeSession) Channel(channelID string) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: channelID}, nil
}
func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, data)
	if f.sendResult != nil {
		return f.sendResult, nil
	}
	return &discordgo.Message{ID: "msg-1", ChannelID: channelID}, nil
}
func (f *fakeSession) ChannelMessageEditComplex(edit *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{ID: edit.ID}, nil
}
func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}
func (f *fakeSession) MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	f.reactions = append(f.reactions, "add:"+emojiID)
	return nil
}
func (f *fakeSession) MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error {
	f.reactions = append(f.reactions, "remove:"+emojiID)
	return nil
}
func (f *fakeSession) ChannelMessagePin(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.pinned = append(f.pinned, messageID)
	return nil
}
func (f *fakeSession) ChannelMessageUnpin(channelID, messageID string, options ...discordgo.RequestOption) error {
	return nil
}
func (f *fakeSession) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	return nil, nil
}
func (f *fakeSession) AddHandler(handler interface{}) func() {
	f.handlers = append(f.handlers, handler)
	return func() {}
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeSession) {
	t.Helper()
	fs := &fakeSession{}
	a, err := New(Config{Session: fs})
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background(), ""))
	return a, fs
}

func TestAdapter_SendMessageReturnsServerID(t *testing.T) {
	a, fs := newTestAdapter(t)
	fs.sendResult = &discordgo.Message{ID: "abc123"}

	ids, err := a.SendMessage(context.Background(), events.SendMessageCommand{ConversationID: "chan-1", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"abc123"}, ids)
}

func TestAdapter_DeclaresDiscordLimits(t *testing.T) {
	a, _ := newTestAdapter(t)
	assert.Equal(t, 2000, a.MaxMessageLength())
	assert.Equal(t, 10, a.MaxAttachmentsPerMessage())
}

func TestAdapter_AddReactionCallsSession(t *testing.T) {
	a, fs := newTestAdapter(t)
	err := a.AddReaction(context.Background(), events.ReactionCommand{ConversationID: "chan-1", MessageID: "msg-9", Emoji: "👍"})
	require.NoError(t, err)
	assert.Contains(t, fs.reactions, "add:👍")
}

func TestAdapter_DeleteMessageCallsSession(t *testing.T) {
	a, fs := newTestAdapter(t)
	err := a.DeleteMessage(context.Background(), events.DeleteMessageCommand{ConversationID: "chan-1", MessageID: "msg-9"})
	require.NoError(t, err)
	assert.Contains(t, fs.deleted, "msg-9")
}
