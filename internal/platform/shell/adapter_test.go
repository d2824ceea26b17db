package shell

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/incoming"
	"github.com/meshbridge/bridge/internal/shellsession"
)

func testConfig(t *testing.T) Config {
	return Config{SessionConfig: shellsession.Config{
		WorkspaceDirectory: t.TempDir(),
		SessionMaxLifetime: time.Hour,
		CommandMaxLifetime: 5 * time.Second,
		MaxOutputSize:      1 << 20,
		BeginOutputSize:    512,
		EndOutputSize:      512,
	}}
}

func TestAdapter_SendMessageRunsCommandAndEmitsOutput(t *testing.T) {
	a := New(testConfig(t))

	var seen []outputEvent
	a.OnRawEvent(func(raw incoming.RawEvent) {
		seen = append(seen, raw.(outputEvent))
	})

	ids, err := a.SendMessage(context.Background(), events.SendMessageCommand{ConversationID: "conv-1", Text: "echo hi"})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.Len(t, seen, 1)
	assert.Contains(t, seen[0].text, "hi")
	assert.Equal(t, "conv-1", seen[0].conversationID)
}

func TestAdapter_SendMessageReusesSessionForSameConversation(t *testing.T) {
	a := New(testConfig(t))
	ctx := context.Background()

	_, err := a.SendMessage(ctx, events.SendMessageCommand{ConversationID: "conv-2", Text: "export FOO=bar"})
	require.NoError(t, err)

	var seen []outputEvent
	a.OnRawEvent(func(raw incoming.RawEvent) { seen = append(seen, raw.(outputEvent)) })
	_, err = a.SendMessage(ctx, events.SendMessageCommand{ConversationID: "conv-2", Text: "echo $FOO"})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Contains(t, seen[0].text, "bar")
}

func TestAdapter_UnsupportedCapabilitiesReturnErrors(t *testing.T) {
	a := New(testConfig(t))
	assert.Error(t, a.EditMessage(context.Background(), events.EditMessageCommand{}))
	assert.Error(t, a.AddReaction(context.Background(), events.ReactionCommand{}))
	assert.Error(t, a.PinMessage(context.Background(), events.PinCommand{}))
	_, err := a.FetchAttachment(context.Background(), "x")
	assert.Error(t, err)
}
