// Package discordwebhook implements an outbound-only Discord adapter that
// posts through an incoming webhook URL rather than a bot gateway
// connection. It carries no incoming event stream — platformreg.Default
// declares it with CapEdit/CapDelete/CapAttachments only, no reactions,
// pins, threads, or history fetch, since a webhook has no bot identity to
// react or pin as and no REST endpoint to list the channel's past
// messages. Grounded on the discordbot adapter's client-seam and
// rate-limit-retry structure in this module, adapted to discordgo's
// webhook-specific calls.
package discordwebhook

import (
	"context"
	"math"
	"net/http"
	"regexp"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/meshbridge/bridge/internal/coreerr"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/history"
)

const (
	maxRetries    = 3
	baseBackoff   = 2 * time.Second
	maxBackoff    = 2 * time.Minute
	discordMaxLen = 2000
	discordMaxAtt = 10
)

var webhookURLPattern = regexp.MustCompile(`/webhooks/(\d+)/([^/?]+)`)

// client abstracts the discordgo.Session webhook-execution calls this
// adapter uses.
type client interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams) (*discordgo.Message, error)
	WebhookMessageEdit(webhookID, token, messageID string, data *discordgo.WebhookEdit) (*discordgo.Message, error)
	WebhookMessageDelete(webhookID, token, messageID string) error
}

type realClient struct{ sess *discordgo.Session }

func (r realClient) WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams) (*discordgo.Message, error) {
	return r.sess.WebhookExecute(webhookID, token, wait, data)
}
func (r realClient) WebhookMessageEdit(webhookID, token, messageID string, data *discordgo.WebhookEdit) (*discordgo.Message, error) {
	return r.sess.WebhookMessageEdit(webhookID, token, messageID, data)
}
func (r realClient) WebhookMessageDelete(webhookID, token, messageID string) error {
	return r.sess.WebhookMessageDelete(webhookID, token, messageID)
}

// Config configures the adapter; Client lets tests inject a fake.
type Config struct {
	WebhookURL string
	Client     client
}

// Adapter implements outgoing.Platform for a single Discord webhook.
// It has no Connect/incoming side: webhooks only ever produce outbound
// traffic, so there is no Register(proc, wiring) for this package.
type Adapter struct {
	cli              client
	webhookID, token string
}

func New(cfg Config) (*Adapter, error) {
	id, token, err := parseWebhookURL(cfg.WebhookURL)
	if err != nil && cfg.Client == nil {
		return nil, err
	}
	cli := cfg.Client
	if cli == nil {
		dg, dgErr := discordgo.New("")
		if dgErr != nil {
			return nil, coreerr.Wrap(coreerr.KindInternal, "discord_webhook: create session", dgErr)
		}
		cli = realClient{sess: dg}
	}
	return &Adapter{cli: cli, webhookID: id, token: token}, nil
}

func parseWebhookURL(url string) (id, token string, err error) {
	m := webhookURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", coreerr.New(coreerr.KindInvalidRequest, "discord_webhook: malformed webhook_url")
	}
	return m[1], m[2], nil
}

func (a *Adapter) MaxMessageLength() int        { return discordMaxLen }
func (a *Adapter) MaxAttachmentsPerMessage() int { return discordMaxAtt }

func (a *Adapter) SendMessage(ctx context.Context, cmd events.SendMessageCommand) ([]string, error) {
	params := &discordgo.WebhookParams{Content: cmd.Text}
	if cmd.CustomName != "" {
		params.Username = cmd.CustomName
	}

	var msg *discordgo.Message
	err := a.retryOnRateLimit(ctx, func() error {
		var sendErr error
		msg, sendErr = a.cli.WebhookExecute(a.webhookID, a.token, true, params)
		return sendErr
	})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindTransientNetwork, "discord_webhook: execute", err)
	}
	return []string{msg.ID}, nil
}

func (a *Adapter) EditMessage(ctx context.Context, cmd events.EditMessageCommand) error {
	content := cmd.Text
	return a.retryOnRateLimit(ctx, func() error {
		_, err := a.cli.WebhookMessageEdit(a.webhookID, a.token, cmd.MessageID, &discordgo.WebhookEdit{Content: &content})
		return err
	})
}

func (a *Adapter) DeleteMessage(ctx context.Context, cmd events.DeleteMessageCommand) error {
	return a.retryOnRateLimit(ctx, func() error {
		return a.cli.WebhookMessageDelete(a.webhookID, a.token, cmd.MessageID)
	})
}

// AddReaction, RemoveReaction, PinMessage, UnpinMessage, FetchAttachment,
// and FetchPage are unsupported: a webhook has no bot identity to react
// or pin as, and no REST endpoint to read attachments or channel history
// back through.
func (a *Adapter) AddReaction(ctx context.Context, cmd events.ReactionCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "discord_webhook: reactions are not supported")
}

func (a *Adapter) RemoveReaction(ctx context.Context, cmd events.ReactionCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "discord_webhook: reactions are not supported")
}

func (a *Adapter) PinMessage(ctx context.Context, cmd events.PinCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "discord_webhook: pinning is not supported")
}

func (a *Adapter) UnpinMessage(ctx context.Context, cmd events.PinCommand) error {
	return coreerr.New(coreerr.KindUnsupported, "discord_webhook: pinning is not supported")
}

func (a *Adapter) FetchAttachment(ctx context.Context, attachmentID string) ([]byte, error) {
	return nil, coreerr.New(coreerr.KindUnsupported, "discord_webhook: attachment fetch is not supported")
}

func (a *Adapter) FetchPage(ctx context.Context, conversationID string, before, after *int64, limit int) (history.Page, error) {
	return history.Page{}, coreerr.New(coreerr.KindUnsupported, "discord_webhook: no history endpoint")
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
