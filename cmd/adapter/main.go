// Command adapter runs one bridge adapter process: it bridges a single
// upstream platform (Telegram, Discord, Slack, Zulip, a local directory,
// or a shell session) to a controller over the C12 socket transport.
// Which platform it bridges is chosen by config.Platform; exactly one
// adapter is constructed and registered per process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/meshbridge/bridge/internal/attachment"
	"github.com/meshbridge/bridge/internal/config"
	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/corelog"
	"github.com/meshbridge/bridge/internal/dispatch"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/fileevents"
	"github.com/meshbridge/bridge/internal/history"
	"github.com/meshbridge/bridge/internal/incoming"
	"github.com/meshbridge/bridge/internal/outgoing"
	"github.com/meshbridge/bridge/internal/platform/discordbot"
	"github.com/meshbridge/bridge/internal/platform/discordwebhook"
	"github.com/meshbridge/bridge/internal/platform/file"
	"github.com/meshbridge/bridge/internal/platform/shared"
	"github.com/meshbridge/bridge/internal/platform/shell"
	"github.com/meshbridge/bridge/internal/platform/slack"
	"github.com/meshbridge/bridge/internal/platform/telegram"
	"github.com/meshbridge/bridge/internal/platform/zulip"
	"github.com/meshbridge/bridge/internal/platformreg"
	"github.com/meshbridge/bridge/internal/ratelimit"
	"github.com/meshbridge/bridge/internal/shellsession"
	"github.com/meshbridge/bridge/internal/transport"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func newRootCmd() *cobra.Command {
	var configPath, platformOverride, logLevelOverride string

	cmd := &cobra.Command{
		Use:   "adapter",
		Short: "Bridge one messaging platform into the controller's event plane",
		Long:  "adapter runs a single platform connection (telegram, discord, discord_webhook, slack, zulip, file, or shell), translating its native events into the bridge wire protocol and vice versa.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdapter(cmd.Context(), configPath, platformOverride, logLevelOverride)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config.toml (defaults to the first of config.Paths() that exists)")
	cmd.Flags().StringVar(&platformOverride, "platform", "", "override platform from the config file")
	cmd.Flags().StringVar(&logLevelOverride, "log-level", "", "override logging.level from the config file")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "adapter %s (built %s)\n", version, buildTime)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}

// metrics are the optional Prometheus counters exposed on
// metrics.addr when metrics.enabled is set (spec.md non-goal "metrics
// export" excludes the controller side of this, but nothing stops the
// adapter process itself from exposing its own health signal).
type metrics struct {
	incomingEvents  *prometheus.CounterVec
	outgoingResults *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		incomingEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshbridge",
			Name:      "incoming_events_total",
			Help:      "Raw platform events processed by C8, by event type.",
		}, []string{"event_type"}),
		outgoingResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshbridge",
			Name:      "outgoing_requests_total",
			Help:      "Outgoing commands handled by C9, by outcome.",
		}, []string{"outcome"}),
	}
}

func runAdapter(ctx context.Context, configPath, platformOverride, logLevelOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if platformOverride != "" {
		cfg.Platform = config.Platform(platformOverride)
	}
	if logLevelOverride != "" {
		cfg.Logging.Level = logLevelOverride
	}

	if err := corelog.Init(corelog.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		Component: string(cfg.Platform),
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := corelog.Global()
	log.Info("starting adapter", "platform", cfg.Platform, "adapter_id", cfg.Adapter.AdapterID)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	messages := conversation.NewMessageCache(
		cfg.Caching.MaxTotalMessages,
		cfg.Caching.MaxMessagesPerConversation,
		hoursToDuration(cfg.Caching.MaxAgeHours),
	)
	attachmentsCache := conversation.NewAttachmentCache(cfg.Caching.MaxTotalMessages, hoursToDuration(cfg.Caching.MaxAgeHours))
	users := conversation.NewUserCache()
	manager := conversation.NewManager(cfg.Adapter.AdapterID, messages, attachmentsCache, users, log)

	limiter := ratelimit.New(toBuckets(cfg.RateLimit))

	store := &attachment.Store{
		RootDir:                 cfg.Attachments.StorageDir,
		LargeFileThresholdBytes: int64(cfg.Attachments.LargeFileThresholdMB) * 1024 * 1024,
	}

	registry := platformreg.Default()
	log.Info("declared capabilities", "platform", cfg.Platform, "capabilities", registry)

	incomingProc := incoming.New(log)
	builder := events.IncomingEventBuilder{
		AdapterType: string(cfg.Platform),
		AdapterName: cfg.Adapter.AdapterName,
		AdapterID:   cfg.Adapter.AdapterID,
	}

	plat, fetcher, connect, err := buildPlatform(cfg, incomingProc, manager, messages, builder, log)
	if err != nil {
		return fmt.Errorf("build platform %s: %w", cfg.Platform, err)
	}

	m := newMetrics()
	plat.adapter.OnRawEvent(func(raw incoming.RawEvent) {
		m.incomingEvents.WithLabelValues(raw.Type()).Inc()
		envelopes := incomingProc.Process(ctx, raw)
		for _, env := range envelopes {
			if err := plat.transportEmit(env); err != nil {
				log.ErrEvent(ctx, "failed to emit bot_request", err)
			}
		}
	})

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.Controller.URL, dialHeader(cfg.Controller.AuthToken))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}

	tp := transport.New(transport.Config{
		AdapterType:             string(cfg.Platform),
		ConnectionCheckInterval: time.Duration(cfg.Adapter.ConnectionCheckInterval) * time.Second,
		MaxReconnectAttempts:    cfg.Adapter.MaxReconnectAttempts,
	}, conn, log)
	plat.transportEmit = tp.EmitBotRequest

	outProc := &outgoing.Processor{
		Platform: plat.adapter,
		Limiter:  limiter,
		History:  fetcher,
		Recorder: manager,
		Store:    store,
		Metadata: manager.GetAttachment,
	}

	var breaker *dispatch.CircuitBreaker
	var queue *dispatch.DurableQueue
	if cfg.Dispatch.Enabled {
		breaker = dispatch.NewCircuitBreaker(cfg.Dispatch.CircuitBreakerThreshold, time.Duration(cfg.Dispatch.CircuitBreakerTimeoutSeconds)*time.Second)
		queue, err = dispatch.OpenDurableQueue(cfg.Dispatch.DBPath)
		if err != nil {
			return fmt.Errorf("open durable queue: %w", err)
		}
		defer queue.Close()
	}

	dispatcher := &dispatch.Dispatcher{
		Platform:       string(cfg.Platform),
		Transport:      tp,
		Processor:      outProc,
		Builder:        events.OutgoingEventBuilder{},
		RequestBuilder: events.RequestEventBuilder{AdapterType: string(cfg.Platform)},
		Breaker:        breaker,
		Queue:          queue,
		Log:            log,
	}
	tp.OnBotResponse(func(ctx context.Context, raw events.RawOutgoingEvent) {
		dispatcher.HandleBotResponse(ctx, raw)
		m.outgoingResults.WithLabelValues(raw.EventType).Inc()
	})

	maintenance := cron.New()
	if cfg.Caching.EnableMaintenance {
		interval := cfg.Caching.MaintenanceIntervalSeconds
		if interval <= 0 {
			interval = 300
		}
		spec := fmt.Sprintf("@every %ds", interval)
		if _, err := maintenance.AddFunc(spec, func() {
			messages.RunMaintenance()
			attachmentsCache.RunMaintenance()
		}); err != nil {
			return fmt.Errorf("schedule cache maintenance: %w", err)
		}
	}
	maintenance.Start()
	defer maintenance.Stop()

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, log)
	}

	if err := connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Platform, err)
	}
	if err := tp.EmitConnect(); err != nil {
		log.ErrEvent(ctx, "failed to emit initial connect", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := tp.ReadLoop(gctx); err != nil && gctx.Err() == nil {
			log.ErrEvent(gctx, "transport read loop exited", err)
			return err
		}
		return nil
	})

	<-ctx.Done()
	log.Info("shutting down adapter")
	_ = tp.EmitDisconnect()
	tp.Stop()
	_ = group.Wait()
	return nil
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

func toBuckets(cfg map[string]config.BucketConfig) map[string]ratelimit.Bucket {
	out := make(map[string]ratelimit.Bucket, len(cfg))
	for op, b := range cfg {
		out[op] = ratelimit.Bucket{
			Scope:             b.Scope,
			RequestsPerSecond: int(b.RequestsPerSecond),
			RequestsPerMinute: int(b.RequestsPerMinute),
			RequestsPerHour:   int(b.RequestsPerHour),
		}
	}
	return out
}

func dialHeader(token string) http.Header {
	if token == "" {
		return nil
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func serveMetrics(addr string, log *corelog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server exited", "error", err)
	}
}

// builtPlatform bundles everything buildPlatform produces: the
// outgoing.Platform/history.Paginator implementation, its raw-event
// source, and a late-bound emit function (the transport isn't built
// until after the platform, but OnRawEvent must be wired before
// Connect).
type builtPlatform struct {
	adapter       platformAdapter
	transportEmit func(events.Envelope) error
}

// platformAdapter is the union of capabilities every concrete adapter in
// this package satisfies: C9's Platform, C11's Paginator, and C8's
// raw-event source.
type platformAdapter interface {
	outgoing.Platform
	history.Paginator
	OnRawEvent(func(incoming.RawEvent))
}

// webhookAdapter adds a no-op OnRawEvent to discordwebhook.Adapter, which
// never produces raw events (a webhook carries no bot identity to
// receive events as), so it can still satisfy platformAdapter.
type webhookAdapter struct {
	*discordwebhook.Adapter
}

func (webhookAdapter) OnRawEvent(func(incoming.RawEvent)) {}

func buildPlatform(cfg *config.Config, proc *incoming.Processor, manager *conversation.Manager, messages *conversation.MessageCache, builder events.IncomingEventBuilder, log *corelog.Logger) (*builtPlatform, *history.Fetcher, func(context.Context) error, error) {
	bp := &builtPlatform{}
	var connect func(context.Context) error

	switch cfg.Platform {
	case config.PlatformTelegram:
		a, err := telegram.New(telegram.Config{BotToken: cfg.Telegram.BotToken})
		if err != nil {
			return nil, nil, nil, err
		}
		bp.adapter = a
		connect = func(ctx context.Context) error { return a.Connect(ctx, cfg.Telegram.BotToken) }

	case config.PlatformDiscordBot:
		a, err := discordbot.New(discordbot.Config{BotToken: cfg.Discord.BotToken})
		if err != nil {
			return nil, nil, nil, err
		}
		bp.adapter = a
		connect = func(ctx context.Context) error { return a.Connect(ctx, cfg.Discord.BotToken) }

	case config.PlatformDiscordWebhook:
		a, err := discordwebhook.New(discordwebhook.Config{WebhookURL: cfg.DiscordWebhook.WebhookURL})
		if err != nil {
			return nil, nil, nil, err
		}
		bp.adapter = webhookAdapter{a}
		connect = func(ctx context.Context) error { return nil } // webhook-only, nothing to dial

	case config.PlatformSlack:
		a, err := slack.New(slack.Config{BotToken: cfg.Slack.BotToken, AppToken: cfg.Slack.AppToken})
		if err != nil {
			return nil, nil, nil, err
		}
		bp.adapter = a
		connect = func(ctx context.Context) error { return a.Connect(ctx, cfg.Slack.BotToken, cfg.Slack.AppToken) }

	case config.PlatformZulip:
		a, err := zulip.New(zulip.Config{SiteURL: cfg.Zulip.SiteURL, Email: cfg.Zulip.Email, APIKey: cfg.Zulip.APIKey})
		if err != nil {
			return nil, nil, nil, err
		}
		bp.adapter = a
		connect = a.Connect

	case config.PlatformFile:
		fileCache := fileevents.New(cfg.File.BackupDirectory, cfg.File.MaxEventsPerFile, hoursToDuration(cfg.File.EventTTLHours))
		a, err := file.New(file.Config{WorkspaceDirectory: cfg.File.WorkspaceDirectory, Cache: fileCache})
		if err != nil {
			return nil, nil, nil, err
		}
		bp.adapter = a
		connect = a.Connect

	case config.PlatformShell:
		a := shell.New(shell.Config{SessionConfig: shellsession.Config{
			WorkspaceDirectory: cfg.Shell.WorkspaceDirectory,
			SessionMaxLifetime: time.Duration(cfg.Shell.SessionMaxLifetimeMin * float64(time.Minute)),
			CommandMaxLifetime: time.Duration(cfg.Shell.CommandMaxLifetimeSec * float64(time.Second)),
			CPUPercentLimit:    cfg.Shell.CPUPercentLimit,
			MemoryMBLimit:      int64(cfg.Shell.MemoryMBLimit),
			MaxOutputSize:      cfg.Shell.MaxOutputSize,
			BeginOutputSize:    cfg.Shell.BeginOutputSize,
			EndOutputSize:      cfg.Shell.EndOutputSize,
		}})
		bp.adapter = a
		connect = func(ctx context.Context) error {
			go a.StartMaintenance(ctx)
			return nil
		}

	default:
		return nil, nil, nil, fmt.Errorf("unknown platform %q", cfg.Platform)
	}

	fetcher := &history.Fetcher{
		Cache:                   messages,
		Paginator:               bp.adapter,
		MaxPaginationIterations: cfg.Adapter.MaxPaginationIterations,
	}
	if cfg.Adapter.CacheFetchedHistory {
		fetcher.Recorder = manager
	}

	wiring := shared.Wiring{
		Manager:      manager,
		Builder:      builder,
		Fetcher:      fetcher,
		Attachments:  manager.GetAttachment,
		HistoryLimit: cfg.Adapter.MaxHistoryLimit,
	}

	switch cfg.Platform {
	case config.PlatformTelegram:
		telegram.Register(proc, wiring)
	case config.PlatformDiscordBot:
		discordbot.Register(proc, wiring)
	case config.PlatformSlack:
		slack.Register(proc, wiring)
	case config.PlatformZulip:
		zulip.Register(proc, wiring)
	case config.PlatformFile:
		file.Register(proc, wiring, cfg.File.WorkspaceDirectory)
	case config.PlatformShell:
		shell.Register(proc, wiring)
	case config.PlatformDiscordWebhook:
		// no incoming side to register
	}

	return bp, fetcher, connect, nil
}
