package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vet-scheduling/internal/adapters/auth/jwtauth"
	pg "vet-scheduling/internal/adapters/storage/postgres"
	"vet-scheduling/internal/config"
	"vet-scheduling/internal/domain/appointments"
	"vet-scheduling/internal/middleware"
	"vet-scheduling/internal/platform/logger"
	"vet-scheduling/internal/ports/auth"
	"vet-scheduling/internal/router"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// @title Vet Scheduling API
// @version 1.0
// @description Disponibilidad de veterinarios y reserva de turnos.
// @BasePath /
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewFromEnv().Error("invalid config", map[string]any{"error": err})
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.App.Name,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.DB.DSN != "" {
		db, err = pg.Open(cfg.DB.DSN, pg.PoolOptions{
			MaxOpenConns: cfg.DB.MaxOpenConns,
			MaxIdleConns: cfg.DB.MaxIdleConns,
		})
		if err != nil {
			log.Error("postgres unavailable", map[string]any{"error": err})
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		log.Info("storage: postgres", nil)
	} else {
		log.Warn("storage: in-memory (DB_DSN vacío)", nil)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Error("redis unavailable", map[string]any{"error": err})
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()
		log.Info("slot cache: redis", map[string]any{"addr": cfg.Redis.Addr})
	}

	var verifier auth.AuthVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = jwtauth.NewVerifier(cfg.Auth.JWTSecret)
	} else if cfg.IsLocal() {
		log.Warn("auth: modo dev con headers X-Debug-*", nil)
	} else {
		log.Error("JWT_SECRET is required outside local", map[string]any{"env": cfg.App.Env})
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if db != nil {
		reg.MustRegister(collectors.NewDBStatsCollector(db, "vetsched"))
	}

	limiter := middleware.NewRateLimiter(cfg.Booking.RateLimitRPS, cfg.Booking.RateLimitBurst)
	go limiter.Run(ctx)

	opts := router.Options{
		AuthVerifier:   verifier,
		DB:             db,
		Logger:         log,
		Registry:       reg,
		BookingLimiter: limiter,
		SlotCacheTTL:   cfg.SlotCache.TTL,
		SlotCacheSize:  cfg.SlotCache.Size,
		Booking: appointments.Config{
			ClaimTimeout: cfg.Booking.ClaimTimeout,
			MaxAttempts:  cfg.Booking.ClaimMaxAttempts,
		},
	}
	if rdb != nil {
		opts.Redis = rdb
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.NewRouter(opts),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr, "env": cfg.App.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", map[string]any{"error": err})
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", map[string]any{"error": err})
	}
	log.Info("server stopped", nil)
}
