// cmd/tools/dbmigrate/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/folio/internal/config"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		configPath     = flag.String("config", "config/app.yaml", "Path to app config; supplies the database file when -db is empty")
		dbPath         = flag.String("db", "", "Path to SQLite database")
		migrationsPath = flag.String("migrations", "internal/db/migrations", "Path to migrations directory")
		command        = flag.String("command", "", "Command to run (up, down, version)")
	)
	flag.Parse()

	if *command == "" {
		flag.Usage()
		os.Exit(1)
	}

	if *dbPath == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		if cfg.Database.Driver != "sqlite" {
			log.Fatal().Str("driver", cfg.Database.Driver).Msg("Migrations only apply to the sqlite driver")
		}
		*dbPath = cfg.Database.Filename
	}

	absDB, err := filepath.Abs(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid database path")
	}
	absMigrations, err := filepath.Abs(*migrationsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid migrations path")
	}
	if _, err := os.Stat(absMigrations); os.IsNotExist(err) {
		log.Fatal().Str("path", absMigrations).Msg("Migrations directory does not exist")
	}
	if err := os.MkdirAll(filepath.Dir(absDB), 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create database directory")
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", absMigrations), fmt.Sprintf("sqlite3://%s", absDB))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrate instance")
	}
	defer m.Close()

	logger := log.With().Str("db", absDB).Str("command", *command).Logger()
	switch *command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		logger.Info().Msg("Migrations applied")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal().Err(err).Msg("Failed to roll back migrations")
		}
		logger.Info().Msg("Migrations rolled back")
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to get version")
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("Current schema version")
	default:
		logger.Fatal().Msg("Unknown command")
	}
}
