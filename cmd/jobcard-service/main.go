package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muzukuru/jobcard-service/internal/config"
	"github.com/muzukuru/jobcard-service/internal/httpapi"
	"github.com/muzukuru/jobcard-service/internal/store"
	"github.com/muzukuru/jobcard-service/internal/store/file"
	"github.com/muzukuru/jobcard-service/internal/store/postgres"
	"github.com/muzukuru/jobcard-service/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "jobcard-service").Logger()

	shutdownTelemetry := telemetry.Setup("jobcard-service", log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	var st store.Store
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("db connect failed")
		}
		defer pool.Close()

		pgStore := postgres.NewStore(pool, cfg.SessionTTL)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = pgStore.Migrate(ctx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("migrate failed")
		}
		st = pgStore
	case "file":
		st = file.NewStore(cfg.DataFile, cfg.SessionTTL)
	default:
		log.Fatal().Str("driver", cfg.StoreDriver).Msg("unknown store driver")
	}

	handler := httpapi.NewHandler(st, log, httpapi.Options{
		EnforceRoles: cfg.EnforceRoles,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		PerMinute: cfg.RateLimitPerMinute,
		Burst:     cfg.RateLimitBurst,
	})

	routes := httpapi.LoggingMiddleware(log, limiter.Middleware(handler.Routes()))
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(routes, "jobcard-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("store", cfg.StoreDriver).Msg("jobcard-service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
