package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"vet-scheduling/internal/config"
	"vet-scheduling/internal/platform/logger"
	appmigrations "vet-scheduling/migrations"
)

// Uso:
//
//	migrate            aplica todas las pendientes
//	migrate down       revierte todo
//	migrate force <v>  marca la versión sin ejecutar
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	log := logger.NewFromEnv()
	if err != nil {
		log.Error("invalid config", map[string]any{"error": err})
		os.Exit(1)
	}
	log = logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.App.Name + "-migrate",
	})

	if cfg.DB.DSN == "" {
		log.Error("DB_DSN is required", nil)
		os.Exit(1)
	}

	db, err := sql.Open("pgx", cfg.DB.DSN)
	if err != nil {
		log.Error("open db", map[string]any{"error": err})
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		log.Error("ping db", map[string]any{"error": err})
		os.Exit(1)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Error("db driver", map[string]any{"error": err})
		os.Exit(1)
	}
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		log.Error("source driver", map[string]any{"error": err})
		os.Exit(1)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		log.Error("create migrator", map[string]any{"error": err})
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "force":
		if len(os.Args) < 3 {
			log.Error("force requires a version", nil)
			os.Exit(2)
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Error("invalid version", map[string]any{"error": err})
			os.Exit(2)
		}
		if err := m.Force(version); err != nil {
			log.Error("force version", map[string]any{"error": err})
			os.Exit(1)
		}
		log.Info("forced version", map[string]any{"version": version})
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Error("migrate down", map[string]any{"error": err})
			os.Exit(1)
		}
		log.Info("migrations reverted", nil)
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Error("migrate up", map[string]any{"error": err})
			os.Exit(1)
		}
		log.Info("migrations complete", nil)
	default:
		log.Error("unknown command", map[string]any{"command": cmd})
		os.Exit(2)
	}
}
