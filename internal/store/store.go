// Package store persists settings, ammo state, monthly snapshots and the
// append-only recommendation and market state logs. It runs on SQLite by
// default and on PostgreSQL when configured.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// Config selects the database.
type Config struct {
	Driver string // sqlite or postgres
	DSN    string
}

// Store is the relational persistence layer.
type Store struct {
	db  *sqlx.DB
	q   sqlx.ExtContext
	log zerolog.Logger
	now func() time.Time
}

// Open connects, applies pragmas and runs migrations.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Store, error) {
	if cfg.Driver == "sqlite" {
		if path := sqliteFile(cfg.DSN); path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		// modernc serializes writes per connection; one connection also keeps
		// an in-memory database alive and shared.
		db.SetMaxOpenConns(1)
		pragmas := []string{"PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"}
		if sqliteFile(cfg.DSN) != "" {
			pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
		}
		for _, p := range pragmas {
			if _, err := db.ExecContext(ctx, p); err != nil {
				db.Close()
				return nil, fmt.Errorf("%s: %w", p, err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	s := &Store{
		db:  db,
		q:   db,
		log: log.With().Str("component", "store").Logger(),
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.log.Info().Str("driver", cfg.Driver).Msg("store opened")
	return s, nil
}

// sqliteFile returns the on-disk path of a sqlite DSN, or "" for in-memory databases.
func sqliteFile(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		if strings.Contains(path[i:], "mode=memory") {
			return ""
		}
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn against a Store bound to a single transaction. The transaction
// commits when fn returns nil and rolls back otherwise. fn must only use the
// Store it is given.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, log: s.log, now: s.now}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error().Err(rbErr).Msg("rollback")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := s.q.ExecContext(ctx, s.q.Rebind(query), args...)
	return err
}

func (s *Store) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, s.q, dest, s.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

func newID() string {
	return uuid.NewString()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id                           TEXT PRIMARY KEY,
			stocks_target_percent             DOUBLE PRECISION NOT NULL,
			cash_target_percent               DOUBLE PRECISION NOT NULL,
			cash_min_pct                      DOUBLE PRECISION NOT NULL,
			cash_max_pct                      DOUBLE PRECISION NOT NULL,
			snp_target_percent                DOUBLE PRECISION NOT NULL DEFAULT 0,
			ta125_target_percent              DOUBLE PRECISION NOT NULL DEFAULT 0,
			tranche_1_trigger                 DOUBLE PRECISION NOT NULL,
			tranche_2_trigger                 DOUBLE PRECISION NOT NULL,
			tranche_3_trigger                 DOUBLE PRECISION NOT NULL,
			rebuild_threshold                 DOUBLE PRECISION NOT NULL,
			contribution_split_cash_percent   DOUBLE PRECISION NOT NULL,
			contribution_split_stocks_percent DOUBLE PRECISION NOT NULL,
			monthly_contribution_total        DOUBLE PRECISION NOT NULL,
			currency                          TEXT NOT NULL,
			updated_at                        TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ammo_state (
			user_id        TEXT PRIMARY KEY,
			tranche_1_used BOOLEAN NOT NULL DEFAULT FALSE,
			tranche_2_used BOOLEAN NOT NULL DEFAULT FALSE,
			tranche_3_used BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at     TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL,
			snapshot_month TEXT NOT NULL,
			value_sp       DOUBLE PRECISION NOT NULL,
			value_ta       DOUBLE PRECISION NOT NULL,
			cash_value     DOUBLE PRECISION NOT NULL,
			stocks_value   DOUBLE PRECISION NOT NULL,
			total_value    DOUBLE PRECISION NOT NULL,
			cash_percent   DOUBLE PRECISION NOT NULL,
			stocks_percent DOUBLE PRECISION NOT NULL,
			percent_sp     DOUBLE PRECISION NOT NULL,
			percent_ta     DOUBLE PRECISION NOT NULL,
			created_at     TIMESTAMP NOT NULL,
			updated_at     TIMESTAMP NOT NULL,
			UNIQUE (user_id, snapshot_month)
		)`,

		`CREATE TABLE IF NOT EXISTS contributions (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			snapshot_id       TEXT NOT NULL UNIQUE REFERENCES portfolio_snapshots(id) ON DELETE CASCADE,
			amount            DOUBLE PRECISION NOT NULL,
			currency          TEXT NOT NULL,
			contribution_type TEXT NOT NULL,
			created_at        TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS market_state (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			ticker           TEXT NOT NULL,
			last_price       DOUBLE PRECISION NOT NULL,
			high_52w         DOUBLE PRECISION NOT NULL,
			drawdown_percent DOUBLE PRECISION,
			as_of_date       TEXT NOT NULL,
			created_at       TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_market_state_user ON market_state(user_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS recommendations_log (
			id                  TEXT PRIMARY KEY,
			user_id             TEXT NOT NULL,
			snapshot_id         TEXT,
			recommendation_type TEXT NOT NULL,
			recommendation_text TEXT NOT NULL,
			transfer_amount     DOUBLE PRECISION,
			drawdown_percent    DOUBLE PRECISION,
			market_status       TEXT,
			priority            INTEGER NOT NULL,
			created_at          TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_user ON recommendations_log(user_id, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
