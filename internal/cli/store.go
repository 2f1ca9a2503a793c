package cli

import (
	"context"

	"github.com/commonprotocol/vault/internal/config"
	"github.com/commonprotocol/vault/internal/state"
)

// openStore opens the configured journal and ensures its schema. It returns nil when
// DB_DRIVER is "none".
func openStore(ctx context.Context) (*state.Store, error) {
	if config.DBDriver == "none" {
		return nil, nil
	}

	store, err := state.Open(state.DBConfig{
		Driver:     config.DBDriver,
		Host:       config.DBHost,
		Port:       config.DBPort,
		User:       config.DBUser,
		Password:   config.DBPassword,
		DBName:     config.DBName,
		SSLMode:    config.DBSSLMode,
		SQLitePath: config.SQLitePath,
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
