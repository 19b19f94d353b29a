// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

// Package database provides the DuckDB-backed store for events, visits,
// rollups, manual entries, cycling weeks, and Strava tokens.
//
// All state lives here; request handlers and background jobs are stateless.
// Two invariants are enforced at this layer rather than assumed from
// single-threaded request handling:
//
//   - At most one open visit per location: OpenVisit uses an atomic
//     INSERT ... SELECT ... WHERE NOT EXISTS so two concurrent enters
//     cannot both create an open visit.
//   - A visit closes exactly once: CloseVisit and AutoCloseVisit are
//     conditional updates guarded by "exit_time IS NULL", so a genuine
//     exit racing the reaper cannot be overwritten. Whichever closes
//     first wins; the loser becomes a no-op.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/gymtrack/gymtrackd/internal/config"
	"github.com/gymtrack/gymtrackd/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New creates a new database connection and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure parent directory exists for the database file.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}

	// DuckDB is an in-process engine; a small pool avoids write contention.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// NewInMemory opens an in-memory database for tests.
func NewInMemory() (*DB, error) {
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	db := &DB{conn: conn, cfg: &config.DatabaseConfig{Path: ":memory:"}}
	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// Conn returns the underlying SQL database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// closeQuietly closes a connection, logging rather than returning errors.
func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database connection")
	}
}

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// createTables creates the core tables and indexes.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		// Append-only raw event log, deduplicated by content hash.
		`CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			event_hash TEXT NOT NULL UNIQUE,
			event_time TIMESTAMP NOT NULL,
			action TEXT NOT NULL,
			location_name TEXT NOT NULL,
			raw_payload TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// One row per sessionized visit. Exit columns stay NULL while the
		// visit is open; "the most recent row with a NULL exit" is the
		// per-location session state.
		`CREATE TABLE IF NOT EXISTS visits (
			id UUID PRIMARY KEY,
			enter_event_id UUID NOT NULL,
			location_name TEXT NOT NULL,
			enter_time TIMESTAMP NOT NULL,
			visit_date TEXT NOT NULL,
			exit_event_id UUID,
			exit_time TIMESTAMP,
			duration_minutes INTEGER,
			is_qualified BOOLEAN NOT NULL DEFAULT false,
			auto_closed BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_location ON visits (location_name, enter_time)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_date ON visits (visit_date)`,

		// Derived daily attendance, one row per date, idempotent upsert.
		`CREATE TABLE IF NOT EXISTS daily_rollups (
			roll_date TEXT PRIMARY KEY,
			day_of_week INTEGER NOT NULL,
			is_workday BOOLEAN NOT NULL,
			status TEXT NOT NULL,
			qualified_visits INTEGER NOT NULL DEFAULT 0,
			total_minutes INTEGER NOT NULL DEFAULT 0,
			computed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Manual status overrides, kept apart from daily_rollups so they
		// survive automatic recomputation.
		`CREATE TABLE IF NOT EXISTS manual_entries (
			entry_date TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Cycling overlay, one row per ISO week (Monday date).
		`CREATE TABLE IF NOT EXISTS cycling_weekly (
			week_start TEXT PRIMARY KEY,
			has_ride BOOLEAN NOT NULL DEFAULT false,
			total_rides INTEGER NOT NULL DEFAULT 0,
			total_distance_meters DOUBLE NOT NULL DEFAULT 0,
			total_moving_time_seconds INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP
		)`,

		// Single-row Strava OAuth token store (id = 1).
		`CREATE TABLE IF NOT EXISTS strava_tokens (
			id INTEGER PRIMARY KEY,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at BIGINT NOT NULL,
			athlete_id BIGINT,
			updated_at TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}
