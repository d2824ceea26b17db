package slack

import (
	"context"
	"testing"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbridge/bridge/internal/events"
)

type fakeClient struct {
	posted   []string
	pinned   []string
	reacted  []string
}

func (f *fakeClient) AuthTest() (*slackapi.AuthTestResponse, error) {
	return &slackapi.AuthTestResponse{UserID: "bot-1"}, nil
}
func (f *fakeClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	f.posted = append(f.posted, channelID)
	return channelID, "1234.5678", nil
}
func (f *fakeClient) UpdateMessage(channelID, timestamp string, options ...slackapi.MsgOption) (string, string, string, error) {
	return channelID, timestamp, "", nil
}
func (f *fakeClient) DeleteMessage(channelID, timestamp string) (string, string, error) {
	return channelID, timestamp, nil
}
func (f *fakeClient) AddReaction(name string, item slackapi.ItemRef) error {
	f.reacted = append(f.reacted, "add:"+name)
	return nil
}
func (f *fakeClient) RemoveReaction(name string, item slackapi.ItemRef) error {
	f.reacted = append(f.reacted, "remove:"+name)
	return nil
}
func (f *fakeClient) PinMessage(channelID string, timestamp string) error {
	f.pinned = append(f.pinned, timestamp)
	return nil
}
func (f *fakeClient) UnpinMessage(channelID string, timestamp string) error { return nil }
func (f *fakeClient) GetConversationHistory(params *slackapi.GetConversationHistoryParameters) (*slackapi.GetConversationHistoryResponse, error) {
	return &slackapi.GetConversationHistoryResponse{}, nil
}

type fakeSocket struct{ ch chan socketmode.Event }

func (f *fakeSocket) Run() error                       { return nil }
func (f *fakeSocket) EventsChan() chan socketmode.Event { return f.ch }
func (f *fakeSocket) Ack(req socketmode.Request, payload ...interface{}) {}

func newTestAdapter(t *testing.T) (*Adapter, *fakeClient) {
	t.Helper()
	fc := &fakeClient{}
	fs := &fakeSocket{ch: make(chan socketmode.Event, 1)}
	a, err := New(Config{Client: fc, Socket: fs})
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background(), "", ""))
	return a, fc
}

func TestAdapter_SendMessageReturnsTimestampAsID(t *testing.T) {
	a, _ := newTestAdapter(t)
	ids, err := a.SendMessage(context.Background(), events.SendMessageCommand{ConversationID: "C1", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1234.5678"}, ids)
}

func TestAdapter_DeclaresSlackLimits(t *testing.T) {
	a, _ := newTestAdapter(t)
	assert.Equal(t, 40000, a.MaxMessageLength())
}

func TestAdapter_PinMessage(t *testing.T) {
	a, fc := newTestAdapter(t)
	err := a.PinMessage(context.Background(), events.PinCommand{ConversationID: "C1", MessageID: "1234.5678"})
	require.NoError(t, err)
	assert.Contains(t, fc.pinned, "1234.5678")
}

func TestFormatSlackTS(t *testing.T) {
	assert.Equal(t, "100.000000", formatSlackTS(100))
}
