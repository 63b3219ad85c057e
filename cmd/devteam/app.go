package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/devteam/internal/adapter/litellm"
	"github.com/Strob0t/devteam/internal/adapter/memory"
	cfnats "github.com/Strob0t/devteam/internal/adapter/nats"
	"github.com/Strob0t/devteam/internal/adapter/natskv"
	cfotel "github.com/Strob0t/devteam/internal/adapter/otel"
	"github.com/Strob0t/devteam/internal/adapter/postgres"
	"github.com/Strob0t/devteam/internal/adapter/ristretto"
	"github.com/Strob0t/devteam/internal/adapter/tiered"
	"github.com/Strob0t/devteam/internal/adapter/webhook"
	"github.com/Strob0t/devteam/internal/adapter/ws"
	"github.com/Strob0t/devteam/internal/config"
	"github.com/Strob0t/devteam/internal/domain/assignment"
	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/broadcast"
	"github.com/Strob0t/devteam/internal/port/cache"
	"github.com/Strob0t/devteam/internal/port/collab"
	"github.com/Strob0t/devteam/internal/port/database"
	"github.com/Strob0t/devteam/internal/port/notifier"
	"github.com/Strob0t/devteam/internal/resilience"
	"github.com/Strob0t/devteam/internal/scheduler"
	"github.com/Strob0t/devteam/internal/service"

	// Register notification senders via init()
	_ "github.com/Strob0t/devteam/internal/adapter/email"
	_ "github.com/Strob0t/devteam/internal/adapter/slack"
)

// app is the wired process: infrastructure plus services.
type app struct {
	cfg *config.Config

	store   database.Store
	pool    *pgxpool.Pool
	queue   *cfnats.Queue
	cache   cache.Cache
	hub     *ws.Hub
	sched   *scheduler.Runner
	llm     *litellm.Client
	catalog *litellm.Catalog

	notify     *service.NotificationDispatcher
	iterations *service.IterationService
	approvals  *service.ApprovalService
	escalation *service.EscalationService
	registry   *service.AssignmentRegistry
	router     *service.ChatRouter

	closers []func()
}

// newApp connects the configured infrastructure and builds the services.
// On error everything opened so far is closed again.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	// --- Storage ---
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.pool = pool
		a.onClose(pool.Close)
		a.store = postgres.NewStore(pool)
		slog.Info("postgres connected")
	default:
		a.store = memory.NewStore()
		slog.Warn("using in-memory storage, state is lost on restart")
	}

	// --- Messaging ---
	var (
		hubs     = []broadcast.Broadcaster{}
		sessions collab.Sessions
		l2       cache.Cache
	)
	if cfg.NATS.Enabled {
		q, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.queue = q
		a.onClose(func() { _ = q.Close() })

		hubs = append(hubs, cfnats.NewBroadcaster(q))
		sessions = cfnats.NewSessions(q)

		kv, err := natskv.Open(ctx, q.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			slog.Warn("nats kv cache unavailable, running L1 only", "bucket", cfg.Cache.L2Bucket, "error", err)
		} else {
			l2 = kv
		}
		slog.Info("nats connected", "url", cfg.NATS.URL)
	} else {
		sessions = memory.NewSessions()
	}

	// --- Cache ---
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("l1 cache: %w", err)
	}
	a.onClose(l1.Close)
	a.cache = tiered.New(l1, l2, cfg.Cache.ModelsTTL)

	// --- Live events ---
	a.hub = ws.NewHub(originPatterns(cfg.Server.CORSOrigin))
	a.onClose(a.hub.Close)
	hubs = append(hubs, a.hub)
	events := broadcast.Multi(hubs)

	// --- AI providers ---
	breakers := resilience.NewBreakers(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	breakers.OnStateChange(func(name string, from, to resilience.State) {
		slog.Warn("circuit breaker state changed", "breaker", name, "from", string(from), "to", string(to))
	})
	a.llm = litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey, cfg.LiteLLM.ChatTimeout)
	a.llm.SetBreakers(breakers)
	a.catalog = litellm.NewCatalog(a.llm, cfg.LiteLLM.Providers, a.cache, cfg.Cache.ModelsTTL)

	// --- Notifications ---
	senders, err := buildSenders(cfg, breakers)
	if err != nil {
		return nil, err
	}

	// --- Services ---
	a.sched = scheduler.New(context.WithoutCancel(ctx), slog.Default())
	a.onClose(a.sched.Stop)

	contacts := service.ContactsFromConfig(cfg)
	a.notify = service.NewNotificationDispatcher(a.store, senders, a.sched, events, cfg.Notification)
	a.iterations = service.NewIterationService(a.store, a.store, sessions, events, cfg.Approval.DefaultMaxIterations)
	a.approvals = service.NewApprovalService(a.store, a.iterations, a.notify, events, contacts, cfg.Approval)
	a.escalation = service.NewEscalationService(a.store, a.notify, events, a.sched, contacts, cfg.Approval, cfg.Notification.EscalationMaxAttempts)

	a.registry = service.NewAssignmentRegistry(a.catalog)
	a.registry.Initialize()
	if cfg.Assignments.File != "" {
		if _, err := a.registry.LoadFile(cfg.Assignments.File); err != nil {
			return nil, fmt.Errorf("assignments: %w", err)
		}
	}
	a.router = service.NewChatRouter(a.registry, a.catalog, assignment.Target{
		Provider: cfg.Router.DefaultProvider,
		Model:    cfg.Router.DefaultModel,
	}, cfg.Router.MaxAttempts)

	a.notify.SetMetrics(metrics)
	a.iterations.SetMetrics(metrics)
	a.approvals.SetMetrics(metrics)
	a.escalation.SetMetrics(metrics)
	a.router.SetMetrics(metrics)

	return a, nil
}

func (a *app) onClose(fn func()) { a.closers = append(a.closers, fn) }

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// buildSenders creates one sender per configured channel.
func buildSenders(cfg *config.Config, breakers *resilience.Breakers) ([]notifier.Sender, error) {
	n := cfg.Notification
	var senders []notifier.Sender

	if n.SMTP.Host != "" {
		s, err := notifier.New(notification.ChannelEmail, map[string]string{
			"host":     n.SMTP.Host,
			"port":     strconv.Itoa(n.SMTP.Port),
			"from":     n.SMTP.From,
			"password": n.SMTP.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("email sender: %w", err)
		}
		senders = append(senders, s)
	}
	if n.SlackWebhookURL != "" {
		s, err := notifier.New(notification.ChannelChat, map[string]string{
			"webhook_url": n.SlackWebhookURL,
			"timeout":     n.WebhookTimeout.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("slack sender: %w", err)
		}
		senders = append(senders, s)
	}
	// Webhook recipients carry their own URL, so the sender is always present.
	senders = append(senders, webhook.NewSender(n.WebhookTimeout, breakers))

	channels := make([]string, 0, len(senders))
	for _, s := range senders {
		channels = append(channels, string(s.Channel()))
	}
	slog.Info("notification channels", "channels", channels)
	return senders, nil
}

// originPatterns derives the WebSocket origin allowlist from the CORS origin.
func originPatterns(corsOrigin string) []string {
	u, err := url.Parse(corsOrigin)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
