package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"owl-widget/internal/config"
	"owl-widget/internal/database"
	"owl-widget/internal/handlers"
	"owl-widget/internal/middleware"
	"owl-widget/internal/models"
	"owl-widget/internal/repository"
	"owl-widget/internal/router"
	"owl-widget/internal/services"
	"owl-widget/internal/websocket"
	"owl-widget/internal/widget"
	"owl-widget/migrations"
)

func newLogger(cfg *config.Config) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logger := newLogger(cfg)
	defer logger.Sync()
	logger.Info("starting OWL widget host", zap.String("env", cfg.Env))

	// ──── Step 2: Send Event Store (optional) ────
	recorder := services.NewSendRecorder(nil, logger)
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("PostgreSQL connection failed", zap.Error(err))
		}
		defer pool.Close()

		if err := database.RunMigrations(pool, migrations.FS, logger); err != nil {
			logger.Fatal("database migration failed", zap.Error(err))
		}
		recorder = services.NewSendRecorder(repository.NewSendEventRepo(pool), logger)
		logger.Info("send events will be recorded in PostgreSQL")
	}

	// ──── Step 3: Redis Pub/Sub (optional) ────
	var hubRedis *redis.Client
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Redis connection failed", zap.Error(err))
		}
		defer client.Close()
		hubRedis = client
		logger.Info("widget updates fan out through Redis")
	}

	// ──── Step 4: Widgets ────
	widgetAuth := middleware.NewWidgetAuth(cfg.TokenSecret, cfg.TokenTTL)

	var registry *widget.Registry
	wsHub := websocket.NewHub(hubRedis, widgetAuth, func(id uuid.UUID) (models.WidgetSnapshot, bool) {
		w, ok := registry.Get(id)
		if !ok {
			return models.WidgetSnapshot{}, false
		}
		return w.Snapshot().Model(), true
	}, logger)

	selfOrigin := fmt.Sprintf("http://localhost:%s", cfg.Port)
	httpClient := &http.Client{}
	askerFor := func(wc widget.Config) widget.Asker {
		return services.NewChatClient(wc.BaseURL, httpClient)
	}
	if cfg.ChatBaseURL == "" {
		logger.Info("no default chat base URL; widgets ask their host page origin",
			zap.Strings("allowed_base_urls", cfg.AllowedBaseURLs))
	}

	registry = widget.NewRegistry(askerFor, widget.Hooks{
		OnChange: func(s widget.Snapshot) { wsHub.Publish(s.Model()) },
		OnResult: recorder.Record,
	}, cfg.WidgetIdleTTL, logger)
	registry.SetKeepAlive(func(id uuid.UUID) bool { return wsHub.Connections(id) > 0 })

	widgetHandler := handlers.NewWidgetHandler(registry, widgetAuth, handlers.WidgetDefaults{
		BaseURL:  cfg.ChatBaseURL,
		TenantID: cfg.TenantID,
		Title:    cfg.WidgetTitle,
	}, cfg.AllowedBaseURLs, logger)

	mountLimiter := middleware.NewRateLimiter(cfg.MountRateLimitPerMin, time.Minute)

	// ──── Step 5: Start HTTP Server ────
	r := router.New(widgetAuth, widgetHandler, mountLimiter, wsHub, cfg.AllowedOrigins, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)

		mountLimiter.Stop()
		registry.Close()
	}()

	logger.Info("OWL widget host ready",
		zap.String("addr", server.Addr),
		zap.String("loader", selfOrigin+"/widget.js"),
		zap.String("chat_base_url", cfg.ChatBaseURL))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
	<-shutdownDone
}
