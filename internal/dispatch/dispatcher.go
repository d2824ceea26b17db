// Package dispatch wires C9 (internal/outgoing) to C12 (internal/transport)
// through the full request_queued -> request_success|request_failed
// lifecycle (spec.md §4.10), with an optional durable-queue + circuit
// breaker resilience layer in front of the platform SDK call — ambient
// hardening, not a new wire event.
package dispatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/meshbridge/bridge/internal/corelog"
	"github.com/meshbridge/bridge/internal/coreerr"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/outgoing"
)

// Emitter is the subset of *transport.Transport the dispatcher drives.
// Kept as an interface so the request lifecycle can be unit tested
// without a live websocket connection.
type Emitter interface {
	EmitRequestQueued(requestID string) error
	EmitRequestSuccess(envelope events.Envelope) error
	EmitRequestFailed(envelope events.Envelope) error
}

// Dispatcher is the per-adapter request-lifecycle driver.
type Dispatcher struct {
	Platform       string
	Transport      Emitter
	Processor      *outgoing.Processor
	Builder        events.OutgoingEventBuilder
	RequestBuilder events.RequestEventBuilder
	Breaker        *CircuitBreaker // nil disables the resilience layer
	Queue          *DurableQueue   // nil disables durability
	Log            *corelog.Logger
}

// HandleBotResponse is the Transport.OnBotResponse callback: it
// validates the raw wire event, emits request_queued, executes it
// (optionally through the circuit breaker + durable queue), and emits
// exactly one terminal event.
func (d *Dispatcher) HandleBotResponse(ctx context.Context, raw events.RawOutgoingEvent) {
	if raw.RequestID == "" {
		raw.RequestID = uuid.NewString()
	}

	if err := d.Transport.EmitRequestQueued(raw.RequestID); err != nil && d.Log != nil {
		d.Log.ErrEvent(ctx, "failed to emit request_queued", err)
	}

	cmd, err := d.Builder.Build(raw)
	if err != nil {
		d.fail(ctx, raw.RequestID, raw.InternalRequestID, err)
		return
	}

	if d.Queue != nil {
		if err := d.Queue.Enqueue(ctx, d.Platform, cmd); err != nil && d.Log != nil {
			d.Log.ErrEvent(ctx, "failed to persist pending command", err)
		}
	}

	result, err := d.execute(ctx, cmd)

	if d.Queue != nil {
		if ackErr := d.Queue.Ack(ctx, raw.RequestID); ackErr != nil && d.Log != nil {
			d.Log.ErrEvent(ctx, "failed to ack pending command", ackErr)
		}
	}

	if err != nil {
		d.fail(ctx, raw.RequestID, raw.InternalRequestID, err)
		return
	}
	d.succeed(ctx, raw.RequestID, raw.InternalRequestID, result)
}

func (d *Dispatcher) execute(ctx context.Context, cmd events.Command) (events.RequestResult, error) {
	if d.Breaker == nil {
		return d.Processor.Handle(ctx, cmd)
	}
	if !d.Breaker.Allow() {
		return events.RequestResult{}, coreerr.New(coreerr.KindTransientNetwork, "circuit breaker open")
	}
	result, err := d.Processor.Handle(ctx, cmd)
	if err != nil {
		if coreerr.KindOf(err) == coreerr.KindTransientNetwork || coreerr.KindOf(err) == coreerr.KindRateLimitedUpstream {
			d.Breaker.RecordFailure()
		}
		return result, err
	}
	d.Breaker.RecordSuccess()
	return result, nil
}

func (d *Dispatcher) succeed(ctx context.Context, requestID, internalRequestID string, result events.RequestResult) {
	envelope := d.RequestBuilder.Success(requestID, internalRequestID, result)
	if err := d.Transport.EmitRequestSuccess(envelope); err != nil && d.Log != nil {
		d.Log.ErrEvent(ctx, "failed to emit request_success", err)
	}
}

func (d *Dispatcher) fail(ctx context.Context, requestID, internalRequestID string, err error) {
	envelope := d.RequestBuilder.Failed(requestID, internalRequestID, err)
	if sendErr := d.Transport.EmitRequestFailed(envelope); sendErr != nil && d.Log != nil {
		d.Log.ErrEvent(ctx, "failed to emit request_failed", sendErr)
	}
}
