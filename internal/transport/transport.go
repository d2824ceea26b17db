// Package transport implements C12: the socket.io-shaped event plane
// between an adapter process and its controller, carried over a
// gorilla/websocket connection with JSON-framed envelopes (there is no
// Go socket.io client in active use upstream; this package reproduces
// socket.io's named-event wire shape directly, grounded on the same
// Unix-socket JSON-RPC framing and admission discipline as the teacher's
// pkg/socket/server.go, generalized from a single rate.Limiter to C1's
// multi-window ratelimit.Limiter).
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshbridge/bridge/internal/corelog"
	"github.com/meshbridge/bridge/internal/events"
)

var ErrClosed = errors.New("transport closed")

// wireFrame is the JSON envelope exchanged over the socket, named after
// socket.io's event/data pairing.
type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ConnectionChecker reports whether the upstream platform connection is
// still alive (e.g. a Telegram get_me call, a Discord gateway probe).
type ConnectionChecker func(ctx context.Context) error

// Config parameterises the reconnect/health-check loop (spec.md §4.10).
type Config struct {
	AdapterType             string
	ConnectionCheckInterval time.Duration
	MaxReconnectAttempts    int
}

// Transport is C12.
type Transport struct {
	cfg Config
	log *corelog.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	onBotResponse func(ctx context.Context, raw events.RawOutgoingEvent)
	checker       ConnectionChecker

	connected bool
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// New wraps an already-established websocket connection.
func New(cfg Config, conn *websocket.Conn, log *corelog.Logger) *Transport {
	return &Transport{cfg: cfg, conn: conn, log: log, stopCh: make(chan struct{})}
}

// OnBotResponse registers the handler invoked for every inbound
// bot_response frame.
func (t *Transport) OnBotResponse(h func(ctx context.Context, raw events.RawOutgoingEvent)) {
	t.onBotResponse = h
}

// SetConnectionChecker installs the platform-specific liveness probe used
// by the reconnect loop.
func (t *Transport) SetConnectionChecker(c ConnectionChecker) {
	t.checker = c
}

// emit writes one frame to the socket. Safe for concurrent use.
func (t *Transport) emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame := wireFrame{Event: event, Data: payload}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrClosed
	}
	return t.conn.WriteJSON(frame)
}

// EmitConnect sends connect{adapter_type}, idempotent per spec.md §4.10.
func (t *Transport) EmitConnect() error {
	err := t.emit("connect", map[string]string{"adapter_type": t.cfg.AdapterType})
	if err == nil {
		t.mu.Lock()
		t.connected = true
		t.mu.Unlock()
	}
	return err
}

// EmitDisconnect sends disconnect{adapter_type}.
func (t *Transport) EmitDisconnect() error {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	return t.emit("disconnect", map[string]string{"adapter_type": t.cfg.AdapterType})
}

// EmitBotRequest wraps an IncomingEvent envelope as bot_request.
func (t *Transport) EmitBotRequest(envelope events.Envelope) error {
	return t.emit("bot_request", envelope)
}

// EmitRequestQueued/Success/Failed implement the request lifecycle:
// queued is always emitted before success/failed for the same id
// (spec.md §4.10, §5 ordering guarantee).
func (t *Transport) EmitRequestQueued(requestID string) error {
	return t.emit("request_queued", map[string]string{"request_id": requestID})
}

func (t *Transport) EmitRequestSuccess(envelope events.Envelope) error {
	return t.emit("request_success", envelope.Data)
}

func (t *Transport) EmitRequestFailed(envelope events.Envelope) error {
	return t.emit("request_failed", envelope.Data)
}

// ReadLoop blocks reading frames until the connection closes or ctx is
// cancelled, dispatching bot_response frames to the registered handler.
func (t *Transport) ReadLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.stopCh:
			return ErrClosed
		default:
		}

		var frame wireFrame
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return ErrClosed
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		if frame.Event != "bot_response" {
			continue
		}
		var raw events.RawOutgoingEvent
		if err := json.Unmarshal(frame.Data, &raw); err != nil {
			if t.log != nil {
				t.log.ErrEvent(ctx, "malformed bot_response frame", err)
			}
			continue
		}
		if t.onBotResponse != nil {
			t.onBotResponse(ctx, raw)
		}
	}
}

// MonitorConnection runs the background reconnect/health-check loop from
// spec.md §4.10: wake every ConnectionCheckInterval, probe the upstream
// platform, re-emit connect on success, retry with exponential backoff on
// failure, and emit disconnect after MaxReconnectAttempts are exhausted.
func (t *Transport) MonitorConnection(ctx context.Context, reconnect func(ctx context.Context) (*websocket.Conn, error)) {
	if t.checker == nil {
		return
	}
	ticker := time.NewTicker(t.cfg.ConnectionCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
		}

		if err := t.checker(ctx); err == nil {
			if err := t.EmitConnect(); err != nil && t.log != nil {
				t.log.ErrEvent(ctx, "failed to emit connect", err)
			}
			continue
		}

		if t.attemptReconnect(ctx, reconnect) {
			continue
		}
		if err := t.EmitDisconnect(); err != nil && t.log != nil {
			t.log.ErrEvent(ctx, "failed to emit disconnect", err)
		}
	}
}

func (t *Transport) attemptReconnect(ctx context.Context, reconnect func(ctx context.Context) (*websocket.Conn, error)) bool {
	backoff := time.Second
	for attempt := 0; attempt < t.cfg.MaxReconnectAttempts; attempt++ {
		if t.checker(ctx) == nil {
			return true
		}
		if reconnect != nil {
			if conn, err := reconnect(ctx); err == nil {
				t.mu.Lock()
				t.conn = conn
				t.mu.Unlock()
				return true
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return false
}

// Stop halts the read loop and connection monitor, closing the
// underlying connection.
func (t *Transport) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.conn != nil {
			_ = t.conn.Close()
			t.conn = nil
		}
	})
}
