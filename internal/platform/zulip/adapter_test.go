package zulip

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbridge/bridge/internal/events"
)

type fakeDoer struct {
	responses map[string]string // method+" "+path -> JSON body
	requests  []string
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	key := req.Method + " " + req.URL.Path
	f.requests = append(f.requests, key)
	body, ok := f.responses[key]
	if !ok {
		body = "{}"
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}, nil
}

func newTestAdapter(t *testing.T, responses map[string]string) (*Adapter, *fakeDoer) {
	t.Helper()
	fd := &fakeDoer{responses: responses}
	a, err := New(Config{SiteURL: "https://chat.example.com", Email: "bot@example.com", APIKey: "key", Doer: fd})
	require.NoError(t, err)
	return a, fd
}

func TestAdapter_SendMessageReturnsMessageID(t *testing.T) {
	a, _ := newTestAdapter(t, map[string]string{
		"POST /api/v1/messages": `{"id": 77}`,
	})
	ids, err := a.SendMessage(context.Background(), events.SendMessageCommand{ConversationID: "general", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"77"}, ids)
}

func TestAdapter_DeclaresZulipLimits(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	assert.Equal(t, 10000, a.MaxMessageLength())
}

func TestAdapter_DeleteMessageIsUnsupported(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	err := a.DeleteMessage(context.Background(), events.DeleteMessageCommand{MessageID: "1"})
	assert.Error(t, err)
}

func TestAdapter_PinMessageIsUnsupported(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	err := a.PinMessage(context.Background(), events.PinCommand{MessageID: "1"})
	assert.Error(t, err)
}

func TestAdapter_AddReactionPostsEmojiName(t *testing.T) {
	a, fd := newTestAdapter(t, nil)
	err := a.AddReaction(context.Background(), events.ReactionCommand{MessageID: "1", Emoji: "tada"})
	require.NoError(t, err)
	assert.Contains(t, fd.requests, "POST /api/v1/messages/1/reactions")
}

func TestJoinPreservingQuery(t *testing.T) {
	assert.Equal(t, "https://chat.example.com/user_uploads/1/f.png?x=1",
		joinPreservingQuery("https://chat.example.com", "/user_uploads/1/f.png?x=1"))
}

func TestFetchPage_DecodesMessages(t *testing.T) {
	resp, _ := json.Marshal(map[string]interface{}{
		"messages": []map[string]interface{}{
			{"id": 1, "sender_id": 5, "content": "hello", "timestamp": 100, "display_recipient": "general", "type": "stream"},
		},
		"found_oldest": true,
	})
	a, _ := newTestAdapter(t, map[string]string{"GET /api/v1/messages": string(resp)})
	page, err := a.FetchPage(context.Background(), "general", nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "hello", page.Messages[0].Text)
	assert.False(t, page.HasMore)
}
