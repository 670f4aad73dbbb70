// Package sqlite is the persistence layer: signals, backtest
// recommendations, approved strategy parameters, and job bookkeeping in a
// single SQLite database.
//
// The store enforces the two write invariants the rest of the pipeline
// relies on: at-most-once signal creation (primary key + INSERT OR IGNORE)
// and one-way outcome transitions (resolve UPDATEs are constrained to rows
// still PENDING).
package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/signals.db"
}

// Store wraps the SQLite database. Safe for concurrent use; writes funnel
// through a single connection.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database with WAL mode and initializes the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer pool: SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signals (
			id            TEXT    PRIMARY KEY,
			symbol        TEXT    NOT NULL,
			direction     TEXT    NOT NULL,
			entry         REAL    NOT NULL,
			current_price REAL    NOT NULL,
			stop          REAL    NOT NULL,
			tp1           REAL    NOT NULL,
			tp2           REAL    NOT NULL,
			tp3           REAL    NOT NULL,
			risk_reward   REAL    NOT NULL,
			confidence    INTEGER NOT NULL,
			tier          TEXT    NOT NULL,
			trade_live    INTEGER NOT NULL,
			position_pct  REAL    NOT NULL,
			snapshot      TEXT    NOT NULL,
			rationale     TEXT    NOT NULL,
			created_at    INTEGER NOT NULL,
			expires_at    INTEGER NOT NULL,
			outcome       TEXT    NOT NULL DEFAULT 'PENDING',
			outcome_price REAL,
			outcome_time  INTEGER,
			pips          REAL
		);
		CREATE INDEX IF NOT EXISTS idx_signals_outcome ON signals (outcome);
		CREATE INDEX IF NOT EXISTS idx_signals_symbol  ON signals (symbol, outcome);

		CREATE TABLE IF NOT EXISTS recommendations (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol        TEXT    NOT NULL,
			cur_fast      INTEGER NOT NULL,
			cur_slow      INTEGER NOT NULL,
			cur_atr       REAL    NOT NULL,
			prop_fast     INTEGER NOT NULL,
			prop_slow     INTEGER NOT NULL,
			prop_atr      REAL    NOT NULL,
			sample_size   INTEGER NOT NULL,
			baseline      REAL    NOT NULL,
			projected     REAL    NOT NULL,
			improvement   REAL    NOT NULL,
			status        TEXT    NOT NULL DEFAULT 'pending',
			created_at    INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS strategy_parameters (
			symbol      TEXT    PRIMARY KEY,
			fast_period INTEGER NOT NULL,
			slow_period INTEGER NOT NULL,
			atr_mult    REAL    NOT NULL,
			version     INTEGER NOT NULL,
			approved_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS job_runs (
			job      TEXT    PRIMARY KEY,
			last_run INTEGER NOT NULL
		);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
