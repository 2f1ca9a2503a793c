package config

import (
	"errors"

	"github.com/rs/zerolog/log"
)

// Storage and web endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// DBDriver selects the event journal backend: "postgres", "sqlite3" or "none".
	DBDriver string
	// DBHost, DBPort, DBUser, DBPassword, DBName and DBSSLMode configure postgres.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	// SQLitePath is the database file used when DBDriver is "sqlite3".
	SQLitePath string

	// WebPort is the port of the read-only dashboard API.
	WebPort string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	DBDriver = getEnvOrDefault("DB_DRIVER", "none")
	switch DBDriver {
	case "postgres", "sqlite3", "none":
	default:
		return errors.New("environment variable DB_DRIVER must be one of postgres, sqlite3, none, got: " + DBDriver)
	}

	DBHost = getEnvOrDefault("DB_HOST", "localhost")
	DBPort, err = getEnvAsIntOrDefault("DB_PORT", 5432)
	if err != nil {
		return err
	}
	DBUser = getEnvOrDefault("DB_USER", "")
	DBPassword = getEnvOrDefault("DB_PASSWORD", "")
	DBName = getEnvOrDefault("DB_NAME", "")
	DBSSLMode = getEnvOrDefault("DB_SSLMODE", "disable")
	SQLitePath = getEnvOrDefault("SQLITE_PATH", "vault.db")

	if DBDriver == "postgres" {
		if DBUser == "" {
			return errors.New("environment variable DB_USER is required when DB_DRIVER=postgres")
		}
		if DBName == "" {
			return errors.New("environment variable DB_NAME is required when DB_DRIVER=postgres")
		}
	}

	WebPort = getEnvOrDefault("WEB_PORT", "8080")

	log.Debug().
		Str("DBDriver", DBDriver).
		Str("DBHost", DBHost).
		Str("SQLitePath", SQLitePath).
		Str("WebPort", WebPort).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
