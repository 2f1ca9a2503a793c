package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/commonprotocol/vault/internal/config"
	"github.com/commonprotocol/vault/internal/logger"
	"github.com/commonprotocol/vault/internal/state"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Initialize(config.LogLevel, config.LogFormat)
	log.Info().Msg("Starting journal reset script...")

	if config.DBDriver == "none" {
		log.Fatal().Msg("DB_DRIVER is none; nothing to reset.")
	}

	dbCfg := state.DBConfig{
		Driver:     config.DBDriver,
		Host:       config.DBHost,
		Port:       config.DBPort,
		User:       config.DBUser,
		Password:   config.DBPassword,
		DBName:     config.DBName,
		SSLMode:    config.DBSSLMode,
		SQLitePath: config.SQLitePath,
	}

	log.Info().
		Str("driver", dbCfg.Driver).
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("dbname", dbCfg.DBName).
		Str("sqlite_path", dbCfg.SQLitePath).
		Msg("Connecting to database")

	store, err := state.Open(dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	log.Info().Msg("Connected to database. Attempting to drop all tables...")
	if err := store.DropSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to drop tables")
	}
	log.Info().Msg("Successfully dropped all tables")

	log.Info().Msg("Recreating database schema...")
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate database schema")
	}
	if err := store.ResetRunNumber(ctx, 0); err != nil {
		log.Fatal().Err(err).Msg("Failed to reset run counter")
	}
	log.Info().Msg("Database schema successfully recreated")

	log.Info().Msg("Journal reset complete!")
}
