package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"freelance/internal/analytics"
	"freelance/internal/backend"
	"freelance/internal/cache"
	"freelance/internal/cli"
	apphttp "freelance/internal/http"
	"freelance/internal/log"
	"freelance/internal/middleware/ratelimit"
	"freelance/internal/ports"
	"freelance/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentApp, cfg.LogLevel)

	b := cli.OpenBackend(context.Background(), logger, cfg)

	cacheManager := cache.NewManager(logger)
	if c, ok := b.StatsCache.(cache.Cleaner); ok {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(10 * time.Minute)

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var events services.EventPublisher
	if b.Events != nil {
		events = b.Events
	}

	var memo *analytics.Memo
	if b.StatsCache != nil && cfg.StatsCacheTTL > 0 {
		memo = analytics.NewMemo(b.StatsCache)
	}

	svc := apphttp.Services{
		Auth:      services.NewAuthService(b.Store, cfg.JWTSecret, cfg.TokenTTL, logger),
		Clients:   services.NewClientService(b.Store, logger),
		Projects:  services.NewProjectService(b.Store),
		Invoices:  services.NewInvoiceService(b.Store, backend.NewPaymentRegistry(cfg), events, logger),
		Dashboard: services.NewDashboardService(ports.SnapshotFromStore(b.Store), memo, logger),
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:      ":" + cfg.Port,
		RateLimit: ratelimit.DefaultConfig(),
	}, svc, b.Store, logger)
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := b.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting freelance server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"cache", cfg.CacheBackend,
		"events_enabled", events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
