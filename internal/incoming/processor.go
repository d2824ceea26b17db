// Package incoming implements C8: the platform-raw callback dispatcher
// that turns SDK events into outbound Envelopes through C7 and C10.
package incoming

import (
	"context"

	"github.com/meshbridge/bridge/internal/corelog"
	"github.com/meshbridge/bridge/internal/events"
)

// RawEvent is the minimal contract a platform's native callback payload
// must satisfy to be dispatched: its own enum-valued type string (e.g.
// "new_message", "edited_message", "reaction_added", "chat_action").
// Each platform package defines a concrete type implementing this and
// registers a Handler for each Type() it emits.
type RawEvent interface {
	Type() string
}

// Handler processes one platform-raw event and reshapes it into zero or
// more outbound Envelopes. Handlers call into C7 and C10/C11 themselves;
// C8 only owns dispatch and error containment.
type Handler func(ctx context.Context, raw RawEvent) ([]events.Envelope, error)

// Processor is C8.
type Processor struct {
	handlers map[string]Handler
	log      *corelog.Logger
}

// New builds an empty processor; register handlers with Register.
func New(log *corelog.Logger) *Processor {
	return &Processor{handlers: make(map[string]Handler), log: log}
}

// Register binds a handler to a platform event-type string.
func (p *Processor) Register(eventType string, h Handler) {
	p.handlers[eventType] = h
}

// Process implements spec.md §4.6's process_event: unknown types are
// silently ignored, handler errors are logged and swallowed so one bad
// event can never take the adapter down (error kind `internal`, "for
// IncomingEvent handlers returns empty event list" per spec.md §7).
func (p *Processor) Process(ctx context.Context, raw RawEvent) []events.Envelope {
	h, ok := p.handlers[raw.Type()]
	if !ok {
		return nil
	}
	out, err := p.safeInvoke(ctx, h, raw)
	if err != nil {
		if p.log != nil {
			p.log.ErrEvent(ctx, "incoming event handler failed", err)
		}
		return nil
	}
	return out
}

// safeInvoke also recovers from a handler panic, treating it the same as
// a returned error (spec.md §7 "an uncaught handler exception").
func (p *Processor) safeInvoke(ctx context.Context, h Handler, raw RawEvent) (out []events.Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = panicError{recovered: r}
		}
	}()
	return h(ctx, raw)
}

type panicError struct{ recovered any }

func (p panicError) Error() string { return "handler panic" }
