package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbridge/bridge/internal/coreerr"
)

func TestBuild_SendMessage(t *testing.T) {
	data, _ := json.Marshal(SendMessageCommand{ConversationID: "c1", Text: "hi"})
	cmd, err := OutgoingEventBuilder{}.Build(RawOutgoingEvent{
		RequestID: "r1", EventType: "send_message", Data: data,
	})
	require.NoError(t, err)
	require.NotNil(t, cmd.SendMessage)
	assert.Equal(t, "hi", cmd.SendMessage.Text)
}

func TestBuild_UnknownEventType(t *testing.T) {
	_, err := OutgoingEventBuilder{}.Build(RawOutgoingEvent{RequestID: "r1", EventType: "frobnicate"})
	require.Error(t, err)
	assert.Equal(t, coreerr.KindInvalidRequest, coreerr.KindOf(err))
}

func TestBuild_FetchHistoryRequiresExactlyOneOfBeforeAfter(t *testing.T) {
	before := int64(100)
	after := int64(200)
	both, _ := json.Marshal(FetchHistoryCommand{ConversationID: "c1", Before: &before, After: &after})
	_, err := OutgoingEventBuilder{}.Build(RawOutgoingEvent{RequestID: "r1", EventType: "fetch_history", Data: both})
	require.Error(t, err)

	neither, _ := json.Marshal(FetchHistoryCommand{ConversationID: "c1"})
	_, err = OutgoingEventBuilder{}.Build(RawOutgoingEvent{RequestID: "r1", EventType: "fetch_history", Data: neither})
	require.Error(t, err)

	valid, _ := json.Marshal(FetchHistoryCommand{ConversationID: "c1", Before: &before})
	cmd, err := OutgoingEventBuilder{}.Build(RawOutgoingEvent{RequestID: "r1", EventType: "fetch_history", Data: valid})
	require.NoError(t, err)
	require.NotNil(t, cmd.FetchHistory)
}

func TestBuild_MissingRequiredField(t *testing.T) {
	data, _ := json.Marshal(SendMessageCommand{Text: "hi"})
	_, err := OutgoingEventBuilder{}.Build(RawOutgoingEvent{RequestID: "r1", EventType: "send_message", Data: data})
	require.Error(t, err)
	assert.Equal(t, coreerr.KindInvalidRequest, coreerr.KindOf(err))
}
