package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/commonprotocol/vault/internal/logger"
)

// Supported journal backends.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

var (
	ErrDatabaseNotInitialized = errors.New("database not initialized")
	ErrUnsupportedDriver      = errors.New("unsupported database driver")
	ErrNotFound               = errors.New("record not found")
)

// DBConfig holds database connection parameters.
type DBConfig struct {
	Driver     string // DriverPostgres or DriverSQLite
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string // "disable", "require", "verify-full", etc.
	SQLitePath string // File path, or ":memory:"
}

// Store is the SQL event journal and snapshot store shared by every vault run.
type Store struct {
	db     *sql.DB
	driver string
	logger zerolog.Logger
}

// Open connects to the configured database and verifies the connection.
// The schema is not touched; call EnsureSchema.
func Open(cfg DBConfig) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case DriverPostgres:
		psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		db, err = sql.Open(DriverPostgres, psqlInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("%w: sqlite path cannot be empty", ErrUnsupportedDriver)
		}
		db, err = sql.Open(DriverSQLite, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		// SQLite allows one writer at a time.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &Store{db: db, driver: cfg.Driver, logger: logger.GetForComponent("state")}
	s.logger.Info().Str("driver", cfg.Driver).Msg("Successfully connected to the journal database")
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.logger.Info().Msg("Closing database connection...")
	return s.db.Close()
}

// Driver returns the backend name the store was opened with.
func (s *Store) Driver() string { return s.driver }

// Ping tests if the database connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrDatabaseNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// EnsureSchema applies the DDL for the journal tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrDatabaseNotInitialized
	}

	schemaSQL := postgresSchema
	if s.driver == DriverSQLite {
		schemaSQL = sqliteSchema
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}

	s.logger.Info().Str("driver", s.driver).Msg("Database schema ensured")
	return nil
}

// DropSchema removes every journal table. Used by the reset script.
func (s *Store) DropSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrDatabaseNotInitialized
	}

	dropSQL := `
		DROP TABLE IF EXISTS vault_events;
		DROP TABLE IF EXISTS vault_snapshots;
		DROP TABLE IF EXISTS scenario_runs;
		DROP TABLE IF EXISTS run_counter;
	`
	if _, err := s.db.ExecContext(ctx, dropSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}

	s.logger.Warn().Msg("Dropped all journal tables")
	return nil
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS vault_events (
		event_id VARCHAR(36) PRIMARY KEY,
		run_id VARCHAR(36) NOT NULL,
		sequence BIGINT NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		event_timestamp TIMESTAMPTZ NOT NULL,
		caller TEXT NOT NULL,
		account TEXT NOT NULL DEFAULT '',
		strategy TEXT NOT NULL DEFAULT '',
		rationale TEXT NOT NULL DEFAULT '',
		assets NUMERIC(78, 0) NOT NULL,
		shares NUMERIC(78, 0) NOT NULL,
		total_shares NUMERIC(78, 0) NOT NULL,
		total_assets NUMERIC(78, 0) NOT NULL,
		CONSTRAINT uq_vault_events_run_sequence UNIQUE (run_id, sequence)
	);
	CREATE INDEX IF NOT EXISTS idx_vault_events_timestamp ON vault_events(event_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_vault_events_type ON vault_events(event_type);

	CREATE TABLE IF NOT EXISTS vault_snapshots (
		snapshot_id SERIAL PRIMARY KEY,
		run_id VARCHAR(36) NOT NULL DEFAULT '',
		snapshot_timestamp TIMESTAMPTZ NOT NULL,
		vault_name TEXT NOT NULL,
		vault_symbol TEXT NOT NULL,
		total_shares NUMERIC(78, 0) NOT NULL,
		total_assets NUMERIC(78, 0) NOT NULL,
		idle_assets NUMERIC(78, 0) NOT NULL,
		allocated_assets NUMERIC(78, 0) NOT NULL,
		exchange_rate NUMERIC(96, 18) NOT NULL,
		holders INTEGER NOT NULL,
		strategy_names TEXT[], -- PostgreSQL array of strategy names for ANY() lookups
		strategies JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_vault_snapshots_timestamp ON vault_snapshots(snapshot_timestamp DESC);

	CREATE TABLE IF NOT EXISTS scenario_runs (
		run_id VARCHAR(36) PRIMARY KEY,
		run_number INTEGER NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		asset_address TEXT NOT NULL,
		gate_address TEXT NOT NULL,
		vault_address TEXT NOT NULL,
		user_address TEXT NOT NULL,
		parameters JSONB
	);

	-- Single-row counter for persistent run numbering
	CREATE TABLE IF NOT EXISTS run_counter (
		id INTEGER PRIMARY KEY DEFAULT 1,
		current_run INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT single_row_check CHECK (id = 1)
	);
	INSERT INTO run_counter (id, current_run) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
`

// SQLite keeps amounts as TEXT and arrays as JSON text. TIMESTAMP columns are decoded
// into time.Time by the driver.
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS vault_events (
		event_id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		event_timestamp TIMESTAMP NOT NULL,
		caller TEXT NOT NULL,
		account TEXT NOT NULL DEFAULT '',
		strategy TEXT NOT NULL DEFAULT '',
		rationale TEXT NOT NULL DEFAULT '',
		assets TEXT NOT NULL,
		shares TEXT NOT NULL,
		total_shares TEXT NOT NULL,
		total_assets TEXT NOT NULL,
		UNIQUE (run_id, sequence)
	);
	CREATE INDEX IF NOT EXISTS idx_vault_events_timestamp ON vault_events(event_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_vault_events_type ON vault_events(event_type);

	CREATE TABLE IF NOT EXISTS vault_snapshots (
		snapshot_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL DEFAULT '',
		snapshot_timestamp TIMESTAMP NOT NULL,
		vault_name TEXT NOT NULL,
		vault_symbol TEXT NOT NULL,
		total_shares TEXT NOT NULL,
		total_assets TEXT NOT NULL,
		idle_assets TEXT NOT NULL,
		allocated_assets TEXT NOT NULL,
		exchange_rate TEXT NOT NULL,
		holders INTEGER NOT NULL,
		strategy_names TEXT,
		strategies TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_vault_snapshots_timestamp ON vault_snapshots(snapshot_timestamp DESC);

	CREATE TABLE IF NOT EXISTS scenario_runs (
		run_id TEXT PRIMARY KEY,
		run_number INTEGER NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		asset_address TEXT NOT NULL,
		gate_address TEXT NOT NULL,
		vault_address TEXT NOT NULL,
		user_address TEXT NOT NULL,
		parameters TEXT
	);

	CREATE TABLE IF NOT EXISTS run_counter (
		id INTEGER PRIMARY KEY DEFAULT 1,
		current_run INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (id = 1)
	);
	INSERT INTO run_counter (id, current_run) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
`
