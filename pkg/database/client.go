// Package database provides the Postgres connection pool, schema migrations,
// and health checks backing the transactional, row-level-multi-tenant store.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver for database/sql
	"github.com/jmoiron/sqlx"

	appconfig "github.com/revloop/orchestrator/pkg/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps a connection pool to the transactional store. All queries in
// this module go through hand-written SQL via sqlx rather than an ORM, since
// code-generated clients cannot be regenerated as part of a normal build.
type Client struct {
	DB *sqlx.DB
}

// NewConfigFromAppConfig resolves a database.Config from the application's
// configuration, reading the actual DSN out of the referenced env var.
func NewConfigFromAppConfig(cfg *appconfig.DatabaseConfig) (Config, error) {
	dsn := os.Getenv(cfg.DSNEnv)
	if dsn == "" {
		return Config{}, fmt.Errorf("environment variable %s is not set", cfg.DSNEnv)
	}
	return Config{
		DSN:             dsn,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, nil
}

// NewClient opens the connection pool, verifies connectivity, and applies
// any pending migrations before returning.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createSupplementalIndexes(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create supplemental indexes: %w", err)
	}

	return &Client{DB: db}, nil
}

// NewClientFromDB wraps an already-open *sqlx.DB, useful in tests that bring
// their own connection (e.g. against sqlmock or a locally running Postgres).
func NewClientFromDB(db *sqlx.DB) *Client {
	return &Client{DB: db}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.DB.Close()
}

// runMigrations applies every pending embedded migration using golang-migrate.
//
// Migration workflow:
//  1. Add a new pair of files under pkg/database/migrations/NNNN_name.{up,down}.sql
//  2. Files are embedded into the binary at compile time via go:embed
//  3. On startup, NewClient applies any migration newer than the schema_migrations
//     version recorded in the target database
func runMigrations(db *sql.DB) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("failed to check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found — binary built incorrectly")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "orchestrator", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the migration source; m.Close() would also close db, which
	// is shared with the returned Client.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}

	return nil
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && len(entry.Name()) > 4 && entry.Name()[len(entry.Name())-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}

// createSupplementalIndexes creates indexes not expressible in a portable
// migration ordering constraint (GIN on jsonb payload for ad-hoc inspection).
func createSupplementalIndexes(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_webhook_events_payload_gin
		ON webhook_events USING gin(payload)`)
	if err != nil {
		return fmt.Errorf("failed to create webhook_events payload GIN index: %w", err)
	}
	return nil
}
