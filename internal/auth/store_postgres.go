package auth

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// scheme
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PostgresStore keeps the token record in the kv_store table
type PostgresStore struct {
	pool *pgxpool.Pool

	// Now returns the current time; overridden in tests
	Now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store on an existing pool. Run MigratePostgres first.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, Now: time.Now}
}

func (s *PostgresStore) Load(ctx context.Context) (*Token, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, TokenKey).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return decodeToken(data, s.Now()), nil
}

func (s *PostgresStore) Save(ctx context.Context, t Token) error {
	data, err := encodeToken(t)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		TokenKey, data)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// MigratePostgres applies the embedded kv_store migrations to databaseURL.
func MigratePostgres(databaseURL string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("migration: failed to open embedded source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, toPgx5URL(databaseURL))
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Error().Err(srcErr).Msg("migration source close failed")
		}
		if dbErr != nil {
			log.Error().Err(dbErr).Msg("migration db close failed")
		}
	}()
	m.Log = migrateLogger{}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug().Msg("token store schema already up to date")
			return nil
		}
		return fmt.Errorf("migration: up failed: %w", err)
	}

	version, _, _ := m.Version()
	log.Info().Uint("version", version).Msg("token store schema migrated")
	return nil
}

// toPgx5URL rewrites postgres:// URLs to the scheme golang-migrate's pgx driver expects
func toPgx5URL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// migrateLogger routes golang-migrate output to zerolog
type migrateLogger struct{}

func (migrateLogger) Printf(format string, args ...any) {
	log.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (migrateLogger) Verbose() bool { return false }
