// Package discordbot implements the Discord bot-token adapter: a
// discordgo Gateway session satisfying outgoing.Platform for C9 and
// producing incoming.RawEvent values for C8. Grounded on
// zulandar-railyard's internal/telegraph/discord adapter (session
// interface seam, rate-limit retry, thread-as-channel resolution).
package discordbot

import (
	"bytes"
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/coreerr"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/history"
	"github.com/meshbridge/bridge/internal/incoming"
)

const (
	maxRetries        = 3
	baseBackoff       = 2 * time.Second
	maxBackoff        = 2 * time.Minute
	discordMaxLength  = 2000
	discordMaxAttachments = 10
)

// session abstracts the discordgo.Session surface this adapter needs, so
// tests can inject a mock instead of opening a real Gateway connection.
type session interface {
	Open() error
	Close() error
	Channel(channelID string) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(edit *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error
	ChannelMessagePin(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessageUnpin(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

type realSession struct{ s *discordgo.Session }

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) Channel(channelID string) (*discordgo.Channel, error) {
	return r.s.State.Channel(channelID)
}
func (r *realSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendComplex(channelID, data, options...)
}
func (r *realSession) ChannelMessageEditComplex(edit *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageEditComplex(edit, options...)
}
func (r *realSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	return r.s.ChannelMessageDelete(channelID, messageID, options...)
}
func (r *realSession) MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	return r.s.MessageReactionAdd(channelID, messageID, emojiID, options...)
}
func (r *realSession) MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error {
	return r.s.MessageReactionRemove(channelID, messageID, emojiID, userID, options...)
}
func (r *realSession) ChannelMessagePin(channelID, messageID string, options ...discordgo.RequestOption) error {
	return r.s.ChannelMessagePin(channelID, messageID, options...)
}
func (r *realSession) ChannelMessageUnpin(channelID, messageID string, options ...discordgo.RequestOption) error {
	return r.s.ChannelMessageUnpin(channelID, messageID, options...)
}
func (r *realSession) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	return r.s.ChannelMessages(channelID, limit, beforeID, afterID, aroundID, options...)
}
func (r *realSession) AddHandler(handler interface{}) func() { return r.s.AddHandler(handler) }

// Config configures the adapter.
type Config struct {
	BotToken string
	// Session lets tests inject a fake session instead of a live Gateway.
	Session session
}

// Adapter implements outgoing.Platform for Discord and produces
// incoming.RawEvent values via OnRawEvent.
type Adapter struct {
	sess      session
	botUserID string

	mu        sync.Mutex
	connected bool

	onRaw func(incoming.RawEvent)
}

// New constructs an unconnected Adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.Session == nil && cfg.BotToken == "" {
		return nil, coreerr.New(coreerr.KindInvalidRequest, "discordbot: bot_token is required")
	}
	a := &Adapter{sess: cfg.Session}
	return a, nil
}

// OnRawEvent registers the callback C8 dispatches through.
func (a *Adapter) OnRawEvent(fn func(incoming.RawEvent)) { a.onRaw = fn }

// Connect opens the Gateway connection and wires the message handler.
func (a *Adapter) Connect(ctx context.Context, botToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		return nil
	}
	if a.sess == nil {
		dg, err := discordgo.New("Bot " + botToken)
		if err != nil {
			return coreerr.Wrap(coreerr.KindTransientNetwork, "discordbot: create session", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent | discordgo.IntentsGuildMessageReactions
		a.sess = &realSession{s: dg}
	}

	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
	})
	a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) { a.dispatchMessage(m) })
	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) { a.dispatchReaction(r.MessageReaction, true) })
	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionRemove) { a.dispatchReaction(r.MessageReaction, false) })
	a.sess.AddHandler(func(_ *discordgo.Session, u *discordgo.MessageUpdate) { a.dispatchEdit(u) })
	a.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.MessageDelete) { a.dispatchDelete(d) })

	if err := a.sess.Open(); err != nil {
		return coreerr.Wrap(coreerr.KindTransientNetwork, "discordbot: open gateway", err)
	}
	a.connected = true
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	if a.sess == nil {
		return nil
	}
	return a.sess.Close()
}

func (a *Adapter) isSelf(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return userID == a.botUserID
}

func (a *Adapter) dispatchMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || a.isSelf(m.Author.ID) || a.onRaw == nil {
		return
	}
	a.onRaw(messageEvent{m: m.Message})
}

func (a *Adapter) dispatchEdit(u *discordgo.MessageUpdate) {
	if u.Author == nil || a.onRaw == nil {
		return
	}
	a.onRaw(editEvent{m: u.Message})
}

func (a *Adapter) dispatchDelete(d *discordgo.MessageDelete) {
	if a.onRaw == nil {
		return
	}
	a.onRaw(deleteEvent{channelID: d.ChannelID, messageID: d.ID})
}

func (a *Adapter) dispatchReaction(r *discordgo.MessageReaction, added bool) {
	if a.onRaw == nil || a.isSelf(r.UserID) {
		return
	}
	a.onRaw(reactionEvent{r: r, added: added})
}

// --- outgoing.Platform ---

func (a *Adapter) MaxMessageLength() int        { return discordMaxLength }
func (a *Adapter) MaxAttachmentsPerMessage() int { return discordMaxAttachments }

func (a *Adapter) SendMessage(ctx context.Context, cmd events.SendMessageCommand) ([]string, error) {
	channelID := resolveChannel(cmd.ConversationID, cmd.ThreadID)
	data := &discordgo.MessageSend{Content: cmd.Text}
	var msg *discordgo.Message
	err := a.retryOnRateLimit(ctx, func() error {
		var apiErr error
		msg, apiErr = a.sess.ChannelMessageSendComplex(channelID, data)
		return apiErr
	})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindTransientNetwork, "discordbot: send message", err)
	}
	return []string{msg.ID}, nil
}

func (a *Adapter) EditMessage(ctx context.Context, cmd events.EditMessageCommand) error {
	channelID := resolveChannel(cmd.ConversationID, "")
	edit := discordgo.NewMessageEdit(channelID, cmd.MessageID).SetContent(cmd.Text)
	return a.retryOnRateLimit(ctx, func() error {
		_, err := a.sess.ChannelMessageEditComplex(edit)
		return err
	})
}

func (a *Adapter) DeleteMessage(ctx context.Context, cmd events.DeleteMessageCommand) error {
	channelID := resolveChannel(cmd.ConversationID, "")
	return a.retryOnRateLimit(ctx, func() error {
		return a.sess.ChannelMessageDelete(channelID, cmd.MessageID)
	})
}

func (a *Adapter) AddReaction(ctx context.Context, cmd events.ReactionCommand) error {
	channelID := resolveChannel(cmd.ConversationID, "")
	return a.retryOnRateLimit(ctx, func() error {
		return a.sess.MessageReactionAdd(channelID, cmd.MessageID, cmd.Emoji)
	})
}

func (a *Adapter) RemoveReaction(ctx context.Context, cmd events.ReactionCommand) error {
	channelID := resolveChannel(cmd.ConversationID, "")
	return a.retryOnRateLimit(ctx, func() error {
		return a.sess.MessageReactionRemove(channelID, cmd.MessageID, cmd.Emoji, "@me")
	})
}

func (a *Adapter) PinMessage(ctx context.Context, cmd events.PinCommand) error {
	channelID := resolveChannel(cmd.ConversationID, "")
	return a.retryOnRateLimit(ctx, func() error {
		return a.sess.ChannelMessagePin(channelID, cmd.MessageID)
	})
}

func (a *Adapter) UnpinMessage(ctx context.Context, cmd events.PinCommand) error {
	channelID := resolveChannel(cmd.ConversationID, "")
	return a.retryOnRateLimit(ctx, func() error {
		return a.sess.ChannelMessageUnpin(channelID, cmd.MessageID)
	})
}

// FetchAttachment downloads the attachment by its Discord CDN URL
// (attachmentID here is the URL, which the dispatch layer's
// FetchAttachmentCommand carries for platforms with no attachment-id API).
func (a *Adapter) FetchAttachment(ctx context.Context, attachmentID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachmentID, nil)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindInvalidRequest, "discordbot: build attachment request", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindTransientNetwork, "discordbot: fetch attachment", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, coreerr.New(coreerr.KindTransientNetwork, "discordbot: attachment fetch status "+strconv.Itoa(resp.StatusCode))
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, coreerr.Wrap(coreerr.KindIOError, "discordbot: read attachment body", err)
	}
	return buf.Bytes(), nil
}

// FetchPage implements history.Paginator for C11, keyed by Discord's
// before/after message-ID snowflake cursors, built from the ms
// timestamps: a snowflake's high bits are ms since the Discord epoch.
func (a *Adapter) FetchPage(ctx context.Context, conversationID string, before, after *int64, limit int) (history.Page, error) {
	const discordEpochMS = 1420070400000
	channelID := resolveChannel(conversationID, "")
	beforeID, afterID := "", ""
	if before != nil {
		beforeID = strconv.FormatInt((*before-discordEpochMS)<<22, 10)
	}
	if after != nil {
		afterID = strconv.FormatInt((*after-discordEpochMS)<<22, 10)
	}

	var msgs []*discordgo.Message
	rerr := a.retryOnRateLimit(ctx, func() error {
		var apiErr error
		msgs, apiErr = a.sess.ChannelMessages(channelID, limit, beforeID, afterID, "")
		return apiErr
	})
	if rerr != nil {
		return history.Page{}, coreerr.Wrap(coreerr.KindTransientNetwork, "discordbot: channel messages", rerr)
	}

	out := make([]conversation.CachedMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toCachedMessage(m))
	}
	return history.Page{Messages: out, HasMore: len(msgs) == limit}, nil
}

func resolveChannel(conversationID, threadID string) string {
	if threadID != "" {
		return threadID
	}
	return conversationID
}

func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests {
			return err
		}
		if attempt == maxRetries {
			return err
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * baseBackoff
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
