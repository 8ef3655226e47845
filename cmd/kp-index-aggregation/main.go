package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/kp-index-aggregation/internal/api/http"
	"github.com/i474232898/kp-index-aggregation/internal/config"
	"github.com/i474232898/kp-index-aggregation/internal/kp"
	"github.com/i474232898/kp-index-aggregation/internal/kp/providers"
	"github.com/i474232898/kp-index-aggregation/internal/logging"
	"github.com/i474232898/kp-index-aggregation/internal/notify"
	"github.com/i474232898/kp-index-aggregation/internal/scheduler"
	"github.com/i474232898/kp-index-aggregation/internal/store"
	"github.com/i474232898/kp-index-aggregation/internal/widget"
)

// settingsAndCards is what both store backends provide.
type settingsAndCards interface {
	kp.SettingsStore
	widget.CardStore
}

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	var st settingsAndCards
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rs, err := store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		st = rs
	default:
		st = store.NewMemoryStore()
	}

	// Providers with resilience (backoff + circuit breaker).
	feed := providers.NewNOAAFeed(httpClient, cfg.NOAABaseURL)
	geocoder := providers.NewNominatim(httpClient, cfg.GeocoderBaseURL, cfg.GeocoderUserAgent, cfg.DefaultLocation.TimeZoneID)

	card := widget.NewWriter(st)

	coord := kp.NewCoordinator(feed, st,
		kp.WithDayWindow(cfg.WindowDaysBack, cfg.WindowDaysForward),
		kp.WithDefaultLocation(cfg.DefaultLocation),
		kp.WithSinks(card),
	)
	if err := coord.Load(ctx); err != nil {
		slog.Error("failed to load settings", "error", err)
		os.Exit(1)
	}

	notifiers := notify.Fanout{notify.LogNotifier{}}
	if cfg.MQTTBroker != "" {
		mq, err := notify.NewMQTTNotifier(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err != nil {
			// Alerts still go to the log.
			slog.Warn("mqtt notifier disabled", "broker", cfg.MQTTBroker, "error", err)
		} else {
			defer mq.Close()
			notifiers = append(notifiers, mq)
		}
	}

	// Background jobs: periodic sync and one-shot widget refresh.
	sched := scheduler.New(cfg.SyncInterval,
		&scheduler.SyncJob{
			Feed:     feed,
			Settings: st,
			Card:     card,
			Gate:     notify.NewGate(st, cfg.NotifyCooldown, time.Now),
			Notifier: notifiers,
			Default:  cfg.DefaultLocation,
		},
		&scheduler.WidgetRefreshJob{
			Feed:     feed,
			Settings: st,
			Card:     card,
			Default:  cfg.DefaultLocation,
		},
	)
	if err := sched.Start(); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Initial load so the first request has data.
	go coord.Refresh(ctx)

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "kp-index-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 5*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(httpapi.MetricsMiddleware())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		snap := coord.Snapshot()
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "kp-index-aggregation",
			"hasData":   snap.HasData(),
			"fetchedAt": snap.FetchedAt,
		})
	})
	app.Get("/metrics", httpapi.MetricsHandler())

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Coordinator: coord,
		Search:      kp.NewLocationSearch(geocoder),
		Card:        card,
		Jobs:        sched,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("fiber server stopped", "error", err)
		}
	}()
	slog.Info("listening", "port", cfg.Port, "store", cfg.StoreBackend)

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
}
