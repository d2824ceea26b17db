// Package slack implements the Slack Socket Mode adapter: a narrow
// client/socket seam satisfying outgoing.Platform for C9, dispatching
// slackevents payloads as incoming.RawEvent for C8. Grounded on
// zulandar-railyard's internal/telegraph/slack adapter (client/socket
// interface split, AuthTest self-id resolution, rate-limit retry).
package slack

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/coreerr"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/history"
	"github.com/meshbridge/bridge/internal/incoming"
)

const (
	maxRetries      = 3
	baseBackoff     = 2 * time.Second
	maxBackoff      = 2 * time.Minute
	slackMaxLength  = 40000
	slackMaxAttachments = 10
)

// client abstracts the slackapi.Client methods this adapter calls.
type client interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
	UpdateMessage(channelID, timestamp string, options ...slackapi.MsgOption) (string, string, string, error)
	DeleteMessage(channelID, timestamp string) (string, string, error)
	AddReaction(name string, item slackapi.ItemRef) error
	RemoveReaction(name string, item slackapi.ItemRef) error
	PinMessage(channelID string, timestamp string) error
	UnpinMessage(channelID string, timestamp string) error
	GetConversationHistory(params *slackapi.GetConversationHistoryParameters) (*slackapi.GetConversationHistoryResponse, error)
}

// socket abstracts the Socket Mode client this adapter drives.
type socket interface {
	Run() error
	EventsChan() chan socketmode.Event
	Ack(req socketmode.Request, payload ...interface{})
}

type realSocket struct{ c *socketmode.Client }

func (r *realSocket) Run() error                        { return r.c.Run() }
func (r *realSocket) EventsChan() chan socketmode.Event  { return r.c.Events }
func (r *realSocket) Ack(req socketmode.Request, payload ...interface{}) { r.c.Ack(req, payload...) }

// Config configures the adapter; Client/Socket let tests inject fakes.
type Config struct {
	BotToken string
	AppToken string
	Client   client
	Socket   socket
}

// Adapter implements outgoing.Platform for Slack.
type Adapter struct {
	cli       client
	sock      socket
	botUserID string

	mu        sync.Mutex
	connected bool

	onRaw func(incoming.RawEvent)
}

func New(cfg Config) (*Adapter, error) {
	if cfg.Client == nil && cfg.BotToken == "" {
		return nil, coreerr.New(coreerr.KindInvalidRequest, "slack: bot_token is required")
	}
	if cfg.Socket == nil && cfg.AppToken == "" {
		return nil, coreerr.New(coreerr.KindInvalidRequest, "slack: app_token is required for socket mode")
	}
	return &Adapter{cli: cfg.Client, sock: cfg.Socket}, nil
}

func (a *Adapter) OnRawEvent(fn func(incoming.RawEvent)) { a.onRaw = fn }

func (a *Adapter) Connect(ctx context.Context, botToken, appToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		return nil
	}
	if a.cli == nil {
		api := slackapi.New(botToken, slackapi.OptionAppLevelToken(appToken))
		a.cli = api
		a.sock = &realSocket{c: socketmode.New(api)}
	}
	auth, err := a.cli.AuthTest()
	if err != nil {
		return coreerr.Wrap(coreerr.KindTransientNetwork, "slack: auth test", err)
	}
	a.botUserID = auth.UserID
	a.connected = true

	go a.runEventLoop(ctx)
	go func() { _ = a.sock.Run() }()
	return nil
}

func (a *Adapter) runEventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.sock.EventsChan():
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			if evt.Request != nil {
				a.sock.Ack(*evt.Request)
			}
			a.handleEventsAPI(eventsAPI)
		}
	}
}

func (a *Adapter) handleEventsAPI(outer slackevents.EventsAPIEvent) {
	if a.onRaw == nil || outer.InnerEvent.Data == nil {
		return
	}
	switch inner := outer.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		if inner.User == a.botUserID || inner.BotID != "" {
			return
		}
		if inner.SubType == "message_deleted" {
			a.onRaw(deleteEvent{channelID: inner.Channel, ts: inner.PreviousMessage.TimeStamp})
			return
		}
		if inner.SubType == "message_changed" && inner.Message != nil {
			a.onRaw(editEvent{channel: inner.Channel, ts: inner.Message.Timestamp, text: inner.Message.Text})
			return
		}
		a.onRaw(messageEvent{e: inner})
	case *slackevents.ReactionAddedEvent:
		if inner.User == a.botUserID {
			return
		}
		a.onRaw(reactionEvent{channel: inner.Item.Channel, ts: inner.Item.Timestamp, emoji: inner.Reaction, added: true})
	case *slackevents.ReactionRemovedEvent:
		if inner.User == a.botUserID {
			return
		}
		a.onRaw(reactionEvent{channel: inner.Item.Channel, ts: inner.Item.Timestamp, emoji: inner.Reaction, added: false})
	}
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

// --- outgoing.Platform ---

func (a *Adapter) MaxMessageLength() int        { return slackMaxLength }
func (a *Adapter) MaxAttachmentsPerMessage() int { return slackMaxAttachments }

func (a *Adapter) SendMessage(ctx context.Context, cmd events.SendMessageCommand) ([]string, error) {
	opts := []slackapi.MsgOption{slackapi.MsgOptionText(cmd.Text, false)}
	if cmd.ThreadID != "" {
		opts = append(opts, slackapi.MsgOptionTS(cmd.ThreadID))
	}
	var ts string
	err := a.retryOnRateLimit(ctx, func() error {
		_, respTS, sendErr := a.cli.PostMessage(cmd.ConversationID, opts...)
		ts = respTS
		return sendErr
	})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindTransientNetwork, "slack: post message", err)
	}
	return []string{ts}, nil
}

func (a *Adapter) EditMessage(ctx context.Context, cmd events.EditMessageCommand) error {
	return a.retryOnRateLimit(ctx, func() error {
		_, _, _, err := a.cli.UpdateMessage(cmd.ConversationID, cmd.MessageID, slackapi.MsgOptionText(cmd.Text, false))
		return err
	})
}

func (a *Adapter) DeleteMessage(ctx context.Context, cmd events.DeleteMessageCommand) error {
	return a.retryOnRateLimit(ctx, func() error {
		_, _, err := a.cli.DeleteMessage(cmd.ConversationID, cmd.MessageID)
		return err
	})
}

func (a *Adapter) AddReaction(ctx context.Context, cmd events.ReactionCommand) error {
	item := slackapi.NewRefToMessage(cmd.ConversationID, cmd.MessageID)
	return a.retryOnRateLimit(ctx, func() error { return a.cli.AddReaction(cmd.Emoji, item) })
}

func (a *Adapter) RemoveReaction(ctx context.Context, cmd events.ReactionCommand) error {
	item := slackapi.NewRefToMessage(cmd.ConversationID, cmd.MessageID)
	return a.retryOnRateLimit(ctx, func() error { return a.cli.RemoveReaction(cmd.Emoji, item) })
}

func (a *Adapter) PinMessage(ctx context.Context, cmd events.PinCommand) error {
	return a.retryOnRateLimit(ctx, func() error { return a.cli.PinMessage(cmd.ConversationID, cmd.MessageID) })
}

func (a *Adapter) UnpinMessage(ctx context.Context, cmd events.PinCommand) error {
	return a.retryOnRateLimit(ctx, func() error { return a.cli.UnpinMessage(cmd.ConversationID, cmd.MessageID) })
}

// FetchAttachment downloads a Slack file by its private URL, which
// requires the bot token as a bearer credential (attachmentID carries the
// URL, mirroring the discordbot adapter's convention).
func (a *Adapter) FetchAttachment(ctx context.Context, attachmentID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachmentID, nil)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindInvalidRequest, "slack: build attachment request", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindTransientNetwork, "slack: fetch attachment", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindIOError, "slack: read attachment body", err)
	}
	return data, nil
}

// FetchPage implements history.Paginator, keyed by Slack's latest/oldest
// timestamp cursors (seconds.microseconds strings), built from the ms
// before/after timestamps.
func (a *Adapter) FetchPage(ctx context.Context, conversationID string, before, after *int64, limit int) (history.Page, error) {
	params := &slackapi.GetConversationHistoryParameters{ChannelID: conversationID, Limit: limit}
	if before != nil {
		params.Latest = formatSlackTS(*before / 1000)
	}
	if after != nil {
		params.Oldest = formatSlackTS(*after / 1000)
	}

	var resp *slackapi.GetConversationHistoryResponse
	err := a.retryOnRateLimit(ctx, func() error {
		var apiErr error
		resp, apiErr = a.cli.GetConversationHistory(params)
		return apiErr
	})
	if err != nil {
		return history.Page{}, coreerr.Wrap(coreerr.KindTransientNetwork, "slack: conversation history", err)
	}

	out := make([]conversation.CachedMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, toCachedMessage(conversationID, m))
	}
	return history.Page{Messages: out, HasMore: resp.HasMore}, nil
}

func formatSlackTS(unixSeconds int64) string {
	return strconv.FormatInt(unixSeconds, 10) + ".000000"
}

func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		rlErr, ok := err.(*slackapi.RateLimitedError)
		if !ok {
			return err
		}
		if attempt == maxRetries {
			return err
		}
		wait := rlErr.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * baseBackoff
		}
		if wait > maxBackoff {
			wait = maxBackoff
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}
