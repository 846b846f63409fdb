package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/casavisita/platform/internal/api/router"
	"github.com/casavisita/platform/internal/appointments"
	"github.com/casavisita/platform/internal/availability"
	appconfig "github.com/casavisita/platform/internal/config"
	"github.com/casavisita/platform/internal/directory"
	"github.com/casavisita/platform/internal/http/handlers"
	"github.com/casavisita/platform/internal/notify"
	"github.com/casavisita/platform/internal/observability/metrics"
	"github.com/casavisita/platform/internal/reminders"
	"github.com/casavisita/platform/internal/schedule"
	"github.com/casavisita/platform/internal/token"
	"github.com/casavisita/platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting casavisita API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.TokenSecret == "" {
		logger.Error("TOKEN_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	redisClient := newRedisClient(ctx, cfg, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)

	// Stores
	dirStore := directory.NewStore(pool, cfg.MinScheduleDays, cfg.MaxScheduleDays)
	hoursStore := schedule.NewWorkingHoursStore(pool)
	apptRepo := appointments.NewRepository(pool)
	reminderStore := reminders.NewStore(pool)

	// Services
	signer := token.NewSigner(cfg.TokenSecret, cfg.TokenTTL)
	cache := availability.NewCache(redisClient, cfg.AvailabilityCacheTTL, logger)
	availSvc := availability.NewService(dirStore, hoursStore, apptRepo, cache, logger)
	notifier := notify.NewNotifier(newEmailSender(ctx, cfg, logger), cfg.PublicBaseURL, logger)
	reminderScheduler := reminders.NewScheduler(reminderStore, signer, logger)
	lifecycle := appointments.NewService(apptRepo, dirStore, availSvc, signer, notifier, reminderScheduler, bookingMetrics, logger)
	sweeper := appointments.NewSweeper(apptRepo, lifecycle, bookingMetrics, logger)
	reminderWorker := reminders.NewWorker(reminderStore, dirStore, notifier, bookingMetrics, logger)

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		Booking:            handlers.NewBookingHandler(lifecycle, availSvc, logger),
		WorkingDays:        handlers.NewWorkingDaysHandler(hoursStore, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// Background sweeps: day-before reminders and stale appointments.
	sweepCtx, stopSweeps := context.WithCancel(ctx)
	go runSweeps(sweepCtx, cfg.SweepInterval, logger, sweeper, reminderWorker)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopSweeps()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// sweepProcessor is one background pass over due work.
type sweepProcessor interface {
	ProcessDue(ctx context.Context) (int, error)
}

func runSweeps(ctx context.Context, interval time.Duration, logger *logging.Logger, sweeper, reminderWorker sweepProcessor) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dispatched, err := reminderWorker.ProcessDue(ctx); err != nil {
				logger.Error("reminder sweep failed", "error", err)
			} else if dispatched > 0 {
				logger.Info("reminders dispatched", "count", dispatched)
			}
			if swept, err := sweeper.ProcessDue(ctx); err != nil {
				logger.Error("stale appointment sweep failed", "error", err)
			} else if swept > 0 {
				logger.Info("stale appointments canceled", "count", swept)
			}
		}
	}
}

func newRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		logger.Info("redis not configured, availability cache disabled")
		return nil
	}
	options := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, availability cache disabled", "error", err)
		return nil
	}
	return client
}

func newEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			return sender
		}
		logger.Warn("sendgrid not configured, falling back to stub email sender")
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Warn("failed to load AWS config, falling back to stub email sender", "error", err)
			break
		}
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
		if sender != nil {
			return sender
		}
	}
	return notify.NewStubEmailSender(logger)
}
