package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/outgoing"
)

type fakeEmitter struct {
	queued  []string
	success []events.Envelope
	failed  []events.Envelope
}

func (f *fakeEmitter) EmitRequestQueued(requestID string) error {
	f.queued = append(f.queued, requestID)
	return nil
}
func (f *fakeEmitter) EmitRequestSuccess(e events.Envelope) error {
	f.success = append(f.success, e)
	return nil
}
func (f *fakeEmitter) EmitRequestFailed(e events.Envelope) error {
	f.failed = append(f.failed, e)
	return nil
}

type stubPlatform struct{}

func (stubPlatform) SendMessage(ctx context.Context, cmd events.SendMessageCommand) ([]string, error) {
	return []string{"m1"}, nil
}
func (stubPlatform) EditMessage(context.Context, events.EditMessageCommand) error     { return nil }
func (stubPlatform) DeleteMessage(context.Context, events.DeleteMessageCommand) error { return nil }
func (stubPlatform) AddReaction(context.Context, events.ReactionCommand) error        { return nil }
func (stubPlatform) RemoveReaction(context.Context, events.ReactionCommand) error     { return nil }
func (stubPlatform) PinMessage(context.Context, events.PinCommand) error              { return nil }
func (stubPlatform) UnpinMessage(context.Context, events.PinCommand) error            { return nil }
func (stubPlatform) FetchAttachment(context.Context, string) ([]byte, error)          { return nil, nil }
func (stubPlatform) MaxMessageLength() int                                           { return 4096 }
func (stubPlatform) MaxAttachmentsPerMessage() int                                    { return 10 }

func TestHandleBotResponse_QueuedThenExactlyOneTerminalEvent(t *testing.T) {
	emitter := &fakeEmitter{}
	d := &Dispatcher{
		Platform:  "telegram",
		Transport: emitter,
		Processor: &outgoing.Processor{Platform: stubPlatform{}},
	}

	data, _ := json.Marshal(events.SendMessageCommand{ConversationID: "c1", Text: "hi"})
	d.HandleBotResponse(context.Background(), events.RawOutgoingEvent{
		RequestID: "req-1", EventType: "send_message", Data: data,
	})

	require.Len(t, emitter.queued, 1)
	assert.Equal(t, "req-1", emitter.queued[0])
	assert.Len(t, emitter.success, 1)
	assert.Empty(t, emitter.failed)
}

func TestHandleBotResponse_InvalidRequestEmitsFailed(t *testing.T) {
	emitter := &fakeEmitter{}
	d := &Dispatcher{
		Platform:  "telegram",
		Transport: emitter,
		Processor: &outgoing.Processor{Platform: stubPlatform{}},
	}

	d.HandleBotResponse(context.Background(), events.RawOutgoingEvent{
		RequestID: "req-2", EventType: "not_a_real_event",
	})

	require.Len(t, emitter.queued, 1)
	assert.Len(t, emitter.failed, 1)
	assert.Empty(t, emitter.success)
}

func TestCircuitBreaker_OpensAfterThresholdAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(2, 0)
	cb.Timeout = 0 // reopen immediately for the test

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())

	// timeout elapsed (zero duration), Allow() transitions to half-open
	assert.True(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.RecordSuccess()
	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
}
