package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/devteam/internal/adapter/fswatch"
	cfhttp "github.com/Strob0t/devteam/internal/adapter/http"
	cfnats "github.com/Strob0t/devteam/internal/adapter/nats"
	cfotel "github.com/Strob0t/devteam/internal/adapter/otel"
	"github.com/Strob0t/devteam/internal/adapter/postgres"
	"github.com/Strob0t/devteam/internal/config"
	"github.com/Strob0t/devteam/internal/logger"
	"github.com/Strob0t/devteam/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(g *globals) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, live event hub and escalation sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := g.setup(false)
			if err != nil {
				return err
			}
			defer log.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, config.NewHolder(cfg, g.configPath), log, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply pending database migrations on start (postgres only)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, holder *config.Holder, log *logger.Runtime, migrate bool) error {
	shutdownOTel, err := cfotel.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	if migrate && cfg.Storage.Driver == "postgres" {
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.notify.Resume(ctx); err != nil {
		slog.Warn("resume notifications", "error", err)
	}
	stopSweeps := a.escalation.Start()
	defer stopSweeps()

	if a.queue != nil {
		stopCommands, err := cfnats.NewCommands(a.approvals, a.iterations).Subscribe(ctx, a.queue)
		if err != nil {
			return fmt.Errorf("command consumers: %w", err)
		}
		defer stopCommands()
	}

	chatLimiter := middleware.NewRateLimiter(cfg.Server.ChatRPS, cfg.Server.ChatBurst, middleware.ByHeader(cfhttp.HeaderAgentType))
	chatLimiter.StartCleanup(ctx, time.Minute, 10*time.Minute)

	handlers := &cfhttp.Handlers{
		Approvals:     a.approvals,
		Iterations:    a.iterations,
		Escalation:    a.escalation,
		Notifications: a.notify,
		Assignments:   a.registry,
		Router:        a.router,
		HealthChecks:  healthChecks(a),
		Limits:        cfhttp.Limits{MaxBodyBytes: cfg.Server.MaxBodyBytes},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfotel.HTTPMiddleware(cfg.OTel.ServiceName))

	// WebSocket connections outlive the request timeout.
	r.Get("/ws", a.hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.LiteLLM.ChatTimeout + 10*time.Second))
		cfhttp.MountRoutes(r, handlers, cfhttp.RouteMiddleware{
			Idempotency:   middleware.Idempotency(a.cache, cfg.Server.IdempotencyTTL),
			ChatRateLimit: chatLimiter.Handler,
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.LiteLLM.ChatTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	watcher, err := newReloader(cfg, holder, log, a)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if watcher != nil {
		eg.Go(func() error { return watcher.Run(ctx) })
	}
	return eg.Wait()
}

// healthChecks pings the dependencies the process was wired with.
func healthChecks(a *app) []cfhttp.HealthCheck {
	checks := []cfhttp.HealthCheck{{Name: "litellm", Check: a.llm.Health}}
	if a.pool != nil {
		checks = append(checks, cfhttp.HealthCheck{Name: "postgres", Check: a.pool.Ping})
	}
	if a.queue != nil {
		checks = append(checks, cfhttp.HealthCheck{Name: "nats", Check: func(context.Context) error {
			if !a.queue.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}})
	}
	return checks
}

// newReloader watches the config file and, when enabled, the assignment
// override file. It returns nil when there is nothing to watch.
func newReloader(cfg *config.Config, holder *config.Holder, log *logger.Runtime, a *app) (*fswatch.Watcher, error) {
	if _, err := os.Stat(holder.Path()); err != nil && !(cfg.Assignments.Watch && cfg.Assignments.File != "") {
		return nil, nil
	}

	w, err := fswatch.New(fswatch.DefaultDebounce)
	if err != nil {
		return nil, err
	}

	if err := w.Add(holder.Path(), func(string) error {
		if err := holder.Reload(); err != nil {
			return err
		}
		level := holder.Get().Logging.Level
		log.SetLevel(level)
		slog.Info("config reloaded", "log_level", level)
		return nil
	}); err != nil {
		return nil, err
	}

	if cfg.Assignments.Watch && cfg.Assignments.File != "" {
		if err := w.Add(cfg.Assignments.File, func(path string) error {
			_, err := a.registry.LoadFile(path)
			return err
		}); err != nil {
			return nil, err
		}
	}
	return w, nil
}
