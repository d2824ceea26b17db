// Package corelog provides structured logging for adapter processes.
package corelog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	global *Logger
	once   sync.Once
)

// Config holds logger configuration, loaded from the adapter's config file.
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // "json" or "text"
	Output    string // "stdout", "stderr", or a file path
	Component string
}

// Logger wraps slog.Logger with the fields every adapter log line carries.
type Logger struct {
	*slog.Logger
	component string
}

// New builds a logger from cfg.
func New(cfg Config) (*Logger, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	output := cfg.Output
	if output == "" {
		output = "stdout"
	}

	var writer io.Writer
	switch output {
	case "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writer = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	component := cfg.Component
	if component == "" {
		component = "adapter"
	}

	l := slog.New(handler).With("service", "meshbridge", "component", component)
	return &Logger{Logger: l, component: component}, nil
}

// Init sets up the process-wide logger exactly once.
func Init(cfg Config) error {
	var initErr error
	once.Do(func() {
		l, err := New(cfg)
		if err != nil {
			initErr = err
			return
		}
		global = l
	})
	return initErr
}

// Global returns the process logger, falling back to stdout/info if Init
// was never called (e.g. in unit tests).
func Global() *Logger {
	if global == nil {
		l, _ := New(Config{Level: "info", Format: "text", Output: "stdout", Component: "adapter"})
		return l
	}
	return global
}

// WithComponent scopes a logger to a subsystem (e.g. "conversation", "transport").
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component), component: component}
}

// WithConversation scopes a logger to one conversation_id, used by C7 to keep
// a burst of same-conversation log lines correlated.
func (l *Logger) WithConversation(conversationID string) *Logger {
	return &Logger{Logger: l.Logger.With("conversation_id", conversationID), component: l.component}
}

// WithRequest scopes a logger to one request_id, used by C9/C12.
func (l *Logger) WithRequest(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With("request_id", requestID), component: l.component}
}

// Audit emits one structured line for a security- or protocol-relevant
// action: rate-limit rejection, unsupported operation, upstream auth
// failure. Kept distinct from routine Info logging so audit lines can be
// filtered/shipped separately, mirroring the teacher's security-event split.
func (l *Logger) Audit(ctx context.Context, action string, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("action", action),
		slog.String("category", "audit"),
		slog.String("ts", time.Now().UTC().Format(time.RFC3339)),
	}
	l.LogAttrs(ctx, slog.LevelInfo, "audit", append(base, attrs...)...)
}

// ErrEvent logs an error's message under the "error" attribute, used by C7/C8 handlers
// that must log-and-swallow per spec.md §7.
func (l *Logger) ErrEvent(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("error", err.Error()),
	}
	l.LogAttrs(ctx, slog.LevelError, msg, append(base, attrs...)...)
}
