// Package telegram implements the Telegram Bot API adapter using
// mymmrac/telego, in the same narrow-client-interface style as the
// discordbot and slack adapters in this module (session/client seam for
// testability, retry-with-backoff around transient API errors).
package telegram

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mymmrac/telego"

	"github.com/meshbridge/bridge/internal/coreerr"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/history"
	"github.com/meshbridge/bridge/internal/incoming"
)

const (
	maxRetries         = 3
	baseBackoff        = 2 * time.Second
	maxBackoff         = 1 * time.Minute
	telegramMaxLength  = 4096
	telegramMaxAttachments = 10
)

// client abstracts the telego.Bot methods this adapter calls.
type client interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error)
	DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error
	SetMessageReaction(ctx context.Context, params *telego.SetMessageReactionParams) error
	PinChatMessage(ctx context.Context, params *telego.PinChatMessageParams) error
	UnpinChatMessage(ctx context.Context, params *telego.UnpinChatMessageParams) error
	GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error)
	FileDownloadURL(file *telego.File) string
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams) (<-chan telego.Update, error)
	GetMe(ctx context.Context) (*telego.User, error)
}

// Config configures the adapter; Client lets tests inject a fake bot.
type Config struct {
	BotToken string
	Client   client
}

// Adapter implements outgoing.Platform for Telegram.
type Adapter struct {
	cli    client
	selfID int64

	mu        sync.Mutex
	connected bool

	onRaw func(incoming.RawEvent)
}

func New(cfg Config) (*Adapter, error) {
	if cfg.Client == nil && cfg.BotToken == "" {
		return nil, coreerr.New(coreerr.KindInvalidRequest, "telegram: bot_token is required")
	}
	return &Adapter{cli: cfg.Client}, nil
}

func (a *Adapter) OnRawEvent(fn func(incoming.RawEvent)) { a.onRaw = fn }

// Connect resolves the bot's own user id and starts the long-polling
// update loop. botToken is only used to construct a real client when one
// was not injected for testing.
func (a *Adapter) Connect(ctx context.Context, botToken string) error {
	a.mu.Lock()
	if a.connected {
		a.mu.Unlock()
		return nil
	}
	if a.cli == nil {
		bot, err := telego.NewBot(botToken)
		if err != nil {
			a.mu.Unlock()
			return coreerr.Wrap(coreerr.KindTransientNetwork, "telegram: create bot", err)
		}
		a.cli = botClient{bot}
	}
	a.connected = true
	a.mu.Unlock()

	me, err := a.cli.GetMe(ctx)
	if err != nil {
		return coreerr.Wrap(coreerr.KindTransientNetwork, "telegram: get_me", err)
	}
	a.selfID = me.ID

	updates, err := a.cli.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return coreerr.Wrap(coreerr.KindTransientNetwork, "telegram: start long polling", err)
	}
	go a.consume(ctx, updates)
	return nil
}

func (a *Adapter) consume(ctx context.Context, updates <-chan telego.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			a.dispatch(u)
		}
	}
}

func (a *Adapter) dispatch(u telego.Update) {
	if a.onRaw == nil {
		return
	}
	switch {
	case u.Message != nil:
		if u.Message.From != nil && u.Message.From.ID == a.selfID {
			return
		}
		a.onRaw(messageEvent{m: u.Message})
	case u.EditedMessage != nil:
		a.onRaw(editEvent{m: u.EditedMessage})
	case u.MessageReaction != nil:
		for _, ev := range reactionDiff(u.MessageReaction) {
			a.onRaw(ev)
		}
	}
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

// --- outgoing.Platform ---

func (a *Adapter) MaxMessageLength() int        { return telegramMaxLength }
func (a *Adapter) MaxAttachmentsPerMessage() int { return telegramMaxAttachments }

func (a *Adapter) SendMessage(ctx context.Context, cmd events.SendMessageCommand) ([]string, error) {
	chatID, err := parseChatID(cmd.ConversationID)
	if err != nil {
		return nil, err
	}
	params := &telego.SendMessageParams{ChatID: chatID, Text: cmd.Text}
	if cmd.ThreadID != "" {
		if tid, terr := strconv.Atoi(cmd.ThreadID); terr == nil {
			params.MessageThreadID = tid
		}
	}

	var msg *telego.Message
	rerr := a.retry(ctx, func() error {
		var apiErr error
		msg, apiErr = a.cli.SendMessage(ctx, params)
		return apiErr
	})
	if rerr != nil {
		return nil, coreerr.Wrap(coreerr.KindTransientNetwork, "telegram: send message", rerr)
	}
	return []string{strconv.Itoa(msg.MessageID)}, nil
}

func (a *Adapter) EditMessage(ctx context.Context, cmd events.EditMessageCommand) error {
	chatID, err := parseChatID(cmd.ConversationID)
	if err != nil {
		return err
	}
	messageID, err := strconv.Atoi(cmd.MessageID)
	if err != nil {
		return coreerr.Wrap(coreerr.KindInvalidRequest, "telegram: malformed message_id", err)
	}
	return a.retry(ctx, func() error {
		_, apiErr := a.cli.EditMessageText(ctx, &telego.EditMessageTextParams{ChatID: chatID, MessageID: messageID, Text: cmd.Text})
		return apiErr
	})
}

func (a *Adapter) DeleteMessage(ctx context.Context, cmd events.DeleteMessageCommand) error {
	chatID, err := parseChatID(cmd.ConversationID)
	if err != nil {
		return err
	}
	messageID, err := strconv.Atoi(cmd.MessageID)
	if err != nil {
		return coreerr.Wrap(coreerr.KindInvalidRequest, "telegram: malformed message_id", err)
	}
	return a.retry(ctx, func() error {
		return a.cli.DeleteMessage(ctx, &telego.DeleteMessageParams{ChatID: chatID, MessageID: messageID})
	})
}

func (a *Adapter) AddReaction(ctx context.Context, cmd events.ReactionCommand) error {
	return a.setReaction(ctx, cmd, true)
}

func (a *Adapter) RemoveReaction(ctx context.Context, cmd events.ReactionCommand) error {
	return a.setReaction(ctx, cmd, false)
}

func (a *Adapter) setReaction(ctx context.Context, cmd events.ReactionCommand, add bool) error {
	chatID, err := parseChatID(cmd.ConversationID)
	if err != nil {
		return err
	}
	messageID, err := strconv.Atoi(cmd.MessageID)
	if err != nil {
		return coreerr.Wrap(coreerr.KindInvalidRequest, "telegram: malformed message_id", err)
	}
	var reactions []telego.ReactionType
	if add {
		reactions = []telego.ReactionType{&telego.ReactionTypeEmoji{Type: telego.ReactionEmoji, Emoji: cmd.Emoji}}
	}
	return a.retry(ctx, func() error {
		return a.cli.SetMessageReaction(ctx, &telego.SetMessageReactionParams{ChatID: chatID, MessageID: messageID, Reaction: reactions})
	})
}

func (a *Adapter) PinMessage(ctx context.Context, cmd events.PinCommand) error {
	chatID, err := parseChatID(cmd.ConversationID)
	if err != nil {
		return err
	}
	messageID, err := strconv.Atoi(cmd.MessageID)
	if err != nil {
		return coreerr.Wrap(coreerr.KindInvalidRequest, "telegram: malformed message_id", err)
	}
	return a.retry(ctx, func() error {
		return a.cli.PinChatMessage(ctx, &telego.PinChatMessageParams{ChatID: chatID, MessageID: messageID})
	})
}

func (a *Adapter) UnpinMessage(ctx context.Context, cmd events.PinCommand) error {
	chatID, err := parseChatID(cmd.ConversationID)
	if err != nil {
		return err
	}
	messageID, err := strconv.Atoi(cmd.MessageID)
	if err != nil {
		return coreerr.Wrap(coreerr.KindInvalidRequest, "telegram: malformed message_id", err)
	}
	return a.retry(ctx, func() error {
		return a.cli.UnpinChatMessage(ctx, &telego.UnpinChatMessageParams{ChatID: chatID, MessageID: messageID})
	})
}

// FetchAttachment resolves a Telegram file_id to its download URL via
// GetFile, then downloads the file with a single GET and returns the
// whole body; no chunking is done here.
func (a *Adapter) FetchAttachment(ctx context.Context, attachmentID string) ([]byte, error) {
	file, err := a.cli.GetFile(ctx, &telego.GetFileParams{FileID: attachmentID})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindTransientNetwork, "telegram: get_file", err)
	}
	url := a.cli.FileDownloadURL(file)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindInvalidRequest, "telegram: build download request", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindTransientNetwork, "telegram: download file", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindIOError, "telegram: read file body", err)
	}
	return data, nil
}

// FetchPage is unsupported: Telegram's Bot API exposes no server-side
// history endpoint — only the update stream the bot already observed,
// which C2's cache already holds (spec.md §4.8 "a platform with no
// history API relies on C2 alone").
func (a *Adapter) FetchPage(ctx context.Context, conversationID string, before, after *int64, limit int) (history.Page, error) {
	return history.Page{}, coreerr.New(coreerr.KindUnsupported, "telegram: no server-side history endpoint")
}

func parseChatID(conversationID string) (telego.ChatID, error) {
	if n, err := strconv.ParseInt(conversationID, 10, 64); err == nil {
		return telego.ChatID{ID: n}, nil
	}
	if conversationID == "" {
		return telego.ChatID{}, coreerr.New(coreerr.KindInvalidRequest, "telegram: empty conversation_id")
	}
	return telego.ChatID{Username: conversationID}, nil
}

func (a *Adapter) retry(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		apiErr, ok := err.(*telego.Error)
		if !ok || apiErr.ErrorCode != http.StatusTooManyRequests {
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
