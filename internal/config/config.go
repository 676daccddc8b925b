package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type Environment string

const (
	EnvLocal      Environment = "local"
	EnvDev        Environment = "dev"
	EnvProduction Environment = "production"
)

// Config se arma solo desde env. main carga .env (godotenv) antes de Load.
type Config struct {
	App struct {
		Name string      `env:"APP_NAME" envDefault:"vet-scheduling"`
		Env  Environment `env:"APP_ENV" envDefault:"local"`
	}

	HTTP struct {
		Port            string        `env:"PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	}

	Log struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"text"`
	}

	// DB vacío => storage in-memory (modo dev).
	DB struct {
		DSN          string `env:"DB_DSN"`
		MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	}

	// Redis vacío => cache LRU en proceso.
	Redis struct {
		Addr     string `env:"REDIS_ADDR"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	SlotCache struct {
		TTL  time.Duration `env:"SLOT_CACHE_TTL" envDefault:"30s"`
		Size int           `env:"SLOT_CACHE_SIZE" envDefault:"1024"`
	}

	// Sin secret => headers X-Debug-*.
	Auth struct {
		JWTSecret string `env:"JWT_SECRET"`
	}

	Booking struct {
		ClaimTimeout     time.Duration `env:"CLAIM_TIMEOUT" envDefault:"3s"`
		ClaimMaxAttempts int           `env:"CLAIM_MAX_ATTEMPTS" envDefault:"3"`
		RateLimitRPS     float64       `env:"BOOKING_RATE_LIMIT_RPS" envDefault:"5"`
		RateLimitBurst   int           `env:"BOOKING_RATE_LIMIT_BURST" envDefault:"10"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.App.Env = Environment(strings.ToLower(strings.TrimSpace(string(cfg.App.Env))))
	cfg.DB.DSN = strings.TrimSpace(cfg.DB.DSN)
	cfg.Redis.Addr = strings.TrimSpace(cfg.Redis.Addr)
	cfg.Auth.JWTSecret = strings.TrimSpace(cfg.Auth.JWTSecret)

	if cfg.Booking.ClaimMaxAttempts < 1 {
		cfg.Booking.ClaimMaxAttempts = 1
	}
	if cfg.SlotCache.Size < 1 {
		cfg.SlotCache.Size = 1
	}

	return cfg, nil
}

func (c *Config) IsLocal() bool {
	return c.App.Env == EnvLocal
}

func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.HTTP.Port, ":")
}
