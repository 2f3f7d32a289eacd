package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"getitdone/internal/config"
	"getitdone/internal/db"
	"getitdone/internal/push"
	"getitdone/internal/reminder"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("GETITDONE_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Push provider. A missing service account degrades to a disabled
	// dispatcher instead of refusing to start: token registration and task
	// storage still work, /status reports the state.
	serviceAccount := cfg.Firebase.ServiceAccountJSON
	if serviceAccount == "" {
		serviceAccount = os.Getenv("FIREBASE_SERVICE_ACCOUNT")
	}
	var pusher reminder.Pusher
	pushStatus := "initialized"
	if fcm, err := push.NewClient(ctx, []byte(serviceAccount), cfg.Firebase.ProjectID); err != nil {
		logger.Error().Err(err).Msg("push provider init failed, continuing without push")
		pusher = push.Disabled{}
		pushStatus = "unavailable"
	} else {
		pusher = fcm
	}

	// Dedup ledger: process-local by default, Redis-backed when configured
	// so multiple instances share suppression state.
	var ledger reminder.Ledger
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ledger = reminder.NewRedisLedger(rdb, cfg.SuppressHorizon(), cfg.RetentionHorizon(), nil)
		logger.Info().Str("address", cfg.Redis.Address).Msg("using redis dedup ledger")
	} else {
		ledger = reminder.NewCache(cfg.SuppressHorizon(), cfg.RetentionHorizon(), nil)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.SendRate()), cfg.SendBurst())
	sender := reminder.NewSender(database, pusher, limiter, reminder.RetryConfig{
		MaxAttempts: cfg.MaxSendAttempts(),
		BaseBackoff: cfg.BaseBackoff(),
	}, &logger)

	scanner := reminder.NewScanner(reminder.ScannerConfig{
		WindowStartOffset: cfg.WindowStartOffset(),
		WindowEndOffset:   cfg.WindowEndOffset(),
	}, database, database, sender, ledger, &logger, nil)

	scheduler := reminder.NewScheduler(reminder.SchedulerConfig{
		Period:       cfg.ScanPeriod(),
		WarmupDelay:  cfg.WarmupDelay(),
		MisfireGrace: cfg.MisfireGrace(),
	}, scanner, &logger)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, scheduler, ledger, pushStatus, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	scheduler.Start(ctx)
	logger.Info().Msg("getitdone reminder backend started")

	<-ctx.Done()
	scheduler.Stop()
}

func startHealthServer(
	ctx context.Context,
	port int,
	scheduler *reminder.Scheduler,
	ledger reminder.Ledger,
	pushStatus string,
	logger *zerolog.Logger,
) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		schedulerStatus := "stopped"
		if scheduler.IsRunning() {
			schedulerStatus = "running"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"services": map[string]any{
				"scheduler":          schedulerStatus,
				"push_provider":      pushStatus,
				"notification_cache": ledger.Size(r.Context()),
			},
		})
	})
	mux.HandleFunc("/admin/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		stats, err := scheduler.RunNow(r.Context())
		if err != nil {
			writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
