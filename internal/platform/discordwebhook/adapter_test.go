package discordwebhook

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbridge/bridge/internal/events"
)

type fakeClient struct {
	executed []string
	edited   []string
	deleted  []string
}

func (f *fakeClient) WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams) (*discordgo.Message, error) {
	f.executed = append(f.executed, data.Content)
	return &discordgo.Message{ID: "msg-1"}, nil
}
func (f *fakeClient) WebhookMessageEdit(webhookID, token, messageID string, data *discordgo.WebhookEdit) (*discordgo.Message, error) {
	f.edited = append(f.edited, messageID)
	return &discordgo.Message{ID: messageID}, nil
}
func (f *fakeClient) WebhookMessageDelete(webhookID, token, messageID string) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeClient) {
	t.Helper()
	fc := &fakeClient{}
	a, err := New(Config{
		WebhookURL: "https://discord.com/api/webhooks/123456789/abcDEF-token",
		Client:     fc,
	})
	require.NoError(t, err)
	return a, fc
}

func TestAdapter_SendMessageReturnsMessageID(t *testing.T) {
	a, fc := newTestAdapter(t)
	ids, err := a.SendMessage(context.Background(), events.SendMessageCommand{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"msg-1"}, ids)
	assert.Contains(t, fc.executed, "hi")
}

func TestAdapter_DeclaresDiscordLimits(t *testing.T) {
	a, _ := newTestAdapter(t)
	assert.Equal(t, 2000, a.MaxMessageLength())
}

func TestAdapter_EditAndDeleteDelegateToClient(t *testing.T) {
	a, fc := newTestAdapter(t)
	require.NoError(t, a.EditMessage(context.Background(), events.EditMessageCommand{MessageID: "msg-1", Text: "edited"}))
	require.NoError(t, a.DeleteMessage(context.Background(), events.DeleteMessageCommand{MessageID: "msg-1"}))
	assert.Contains(t, fc.edited, "msg-1")
	assert.Contains(t, fc.deleted, "msg-1")
}

func TestParseWebhookURL(t *testing.T) {
	id, token, err := parseWebhookURL("https://discord.com/api/webhooks/123456789/abcDEF-token")
	require.NoError(t, err)
	assert.Equal(t, "123456789", id)
	assert.Equal(t, "abcDEF-token", token)
}

func TestParseWebhookURL_Malformed(t *testing.T) {
	_, _, err := parseWebhookURL("https://discord.com/not-a-webhook")
	assert.Error(t, err)
}
