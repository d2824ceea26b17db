package outgoing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbridge/bridge/internal/coreerr"
	"github.com/meshbridge/bridge/internal/events"
)

type fakePlatform struct {
	maxLen      int
	maxAttach   int
	sentTexts   []string
	supportsPin bool
}

func (f *fakePlatform) SendMessage(ctx context.Context, cmd events.SendMessageCommand) ([]string, error) {
	f.sentTexts = append(f.sentTexts, cmd.Text)
	return []string{"m-" + cmd.Text}, nil
}
func (f *fakePlatform) EditMessage(ctx context.Context, cmd events.EditMessageCommand) error { return nil }
func (f *fakePlatform) DeleteMessage(ctx context.Context, cmd events.DeleteMessageCommand) error {
	return nil
}
func (f *fakePlatform) AddReaction(ctx context.Context, cmd events.ReactionCommand) error    { return nil }
func (f *fakePlatform) RemoveReaction(ctx context.Context, cmd events.ReactionCommand) error { return nil }
func (f *fakePlatform) PinMessage(ctx context.Context, cmd events.PinCommand) error {
	if !f.supportsPin {
		return coreerr.New(coreerr.KindUnsupported, "pin not supported")
	}
	return nil
}
func (f *fakePlatform) UnpinMessage(ctx context.Context, cmd events.PinCommand) error { return nil }
func (f *fakePlatform) FetchAttachment(ctx context.Context, id string) ([]byte, error) {
	return []byte("data"), nil
}
func (f *fakePlatform) MaxMessageLength() int      { return f.maxLen }
func (f *fakePlatform) MaxAttachmentsPerMessage() int { return f.maxAttach }

func TestHandle_SendMessageSplitsLongText(t *testing.T) {
	platform := &fakePlatform{maxLen: 5}
	p := &Processor{Platform: platform}
	result, err := p.Handle(context.Background(), events.Command{
		EventType:   events.EventSendMessage,
		SendMessage: &events.SendMessageCommand{ConversationID: "c1", Text: "hello world"},
	})
	require.NoError(t, err)
	assert.True(t, result.RequestCompleted)
	assert.Greater(t, len(result.MessageIDs), 1)
}

func TestHandle_UnsupportedOpReturnsUnsupportedKind(t *testing.T) {
	platform := &fakePlatform{maxLen: 100, supportsPin: false}
	p := &Processor{Platform: platform}
	_, err := p.Handle(context.Background(), events.Command{
		EventType: events.EventPinMessage,
		Pin:       &events.PinCommand{ConversationID: "c1", MessageID: "m1"},
	})
	require.Error(t, err)
	assert.Equal(t, coreerr.KindUnsupported, coreerr.KindOf(err))
}

func TestHandle_FetchAttachment(t *testing.T) {
	platform := &fakePlatform{maxLen: 100}
	p := &Processor{Platform: platform}
	result, err := p.Handle(context.Background(), events.Command{
		EventType:       events.EventFetchAttachment,
		FetchAttachment: &events.FetchAttachmentCommand{AttachmentID: "a1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), result.Content)
}
