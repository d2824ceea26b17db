package telegram

import (
	"context"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbridge/bridge/internal/events"
)

type fakeClient struct {
	sent    []string
	pinned  []string
	reacted []string
}

func (f *fakeClient) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.sent = append(f.sent, params.Text)
	return &telego.Message{MessageID: 42}, nil
}
func (f *fakeClient) EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error) {
	return &telego.Message{MessageID: params.MessageID}, nil
}
func (f *fakeClient) DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error {
	return nil
}
func (f *fakeClient) SetMessageReaction(ctx context.Context, params *telego.SetMessageReactionParams) error {
	if len(params.Reaction) > 0 {
		f.reacted = append(f.reacted, "add")
	} else {
		f.reacted = append(f.reacted, "remove")
	}
	return nil
}
func (f *fakeClient) PinChatMessage(ctx context.Context, params *telego.PinChatMessageParams) error {
	f.pinned = append(f.pinned, "pinned")
	return nil
}
func (f *fakeClient) UnpinChatMessage(ctx context.Context, params *telego.UnpinChatMessageParams) error {
	return nil
}
func (f *fakeClient) GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error) {
	return &telego.File{FileID: params.FileID}, nil
}
func (f *fakeClient) FileDownloadURL(file *telego.File) string { return "https://example.invalid/" + file.FileID }
func (f *fakeClient) UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams) (<-chan telego.Update, error) {
	ch := make(chan telego.Update)
	return ch, nil
}
func (f *fakeClient) GetMe(ctx context.Context) (*telego.User, error) {
	return &telego.User{ID: 1}, nil
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeClient) {
	t.Helper()
	fc := &fakeClient{}
	a, err := New(Config{Client: fc})
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background(), ""))
	return a, fc
}

func TestAdapter_SendMessageReturnsMessageID(t *testing.T) {
	a, fc := newTestAdapter(t)
	ids, err := a.SendMessage(context.Background(), events.SendMessageCommand{ConversationID: "100", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, ids)
	assert.Contains(t, fc.sent, "hi")
}

func TestAdapter_DeclaresTelegramLimits(t *testing.T) {
	a, _ := newTestAdapter(t)
	assert.Equal(t, 4096, a.MaxMessageLength())
}

func TestAdapter_AddReactionCallsSetMessageReaction(t *testing.T) {
	a, fc := newTestAdapter(t)
	err := a.AddReaction(context.Background(), events.ReactionCommand{ConversationID: "100", MessageID: "9", Emoji: "👍"})
	require.NoError(t, err)
	assert.Contains(t, fc.reacted, "add")
}

func TestAdapter_FetchPageIsUnsupported(t *testing.T) {
	a, _ := newTestAdapter(t)
	_, err := a.FetchPage(context.Background(), "100", nil, nil, 10)
	assert.Error(t, err)
}

func TestParseChatID_NumericVersusUsername(t *testing.T) {
	id, err := parseChatID("-1001234567890")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), id.ID)

	id, err = parseChatID("my_channel")
	require.NoError(t, err)
	assert.Equal(t, "my_channel", id.Username)
}
