// Package database is the SQLite-backed document store for
// reservations and fleet records.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the database connection.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by TryReserve when the in-transaction
	// re-validation finds a blocking overlap.
	ErrConflict = errors.New("reservation conflicts with an existing reservation")
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can
// run inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewDB opens the database, creating the file and schema if needed.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode, busy timeout and immediate write transactions: the
	// check-then-write in TryReserve relies on a single writer.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT '',
			window_mode TEXT NOT NULL DEFAULT '',
			window_date TEXT,
			window_start TEXT,
			window_end TEXT,
			window_dates TEXT,
			title TEXT,
			client TEXT,
			maint_type TEXT,
			vehicle_id TEXT,
			provider TEXT,
			booking_ref TEXT,
			location TEXT,
			cost TEXT,
			notes TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// Day-set and resource membership, normalized for overlap
		// queries inside TryReserve.
		`CREATE TABLE IF NOT EXISTS reservation_days (
			reservation_id TEXT NOT NULL,
			day TEXT NOT NULL,
			PRIMARY KEY (reservation_id, day),
			FOREIGN KEY (reservation_id) REFERENCES reservations(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS reservation_resources (
			reservation_id TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			resource_key TEXT NOT NULL,
			PRIMARY KEY (reservation_id, resource_type, resource_key),
			FOREIGN KEY (reservation_id) REFERENCES reservations(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS vehicles (
			id TEXT PRIMARY KEY,
			registration TEXT UNIQUE NOT NULL,
			registration_key TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			name_key TEXT NOT NULL DEFAULT '',
			mot_freq_weeks INTEGER NOT NULL DEFAULT 0,
			service_freq_weeks INTEGER NOT NULL DEFAULT 0,
			last_mot TEXT,
			next_mot TEXT,
			last_service TEXT,
			next_service TEXT,
			mot_summary TEXT NOT NULL DEFAULT '{}',
			service_summary TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS employees (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_key TEXT UNIQUE NOT NULL,
			role TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS equipment (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_key TEXT UNIQUE NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_reservations_kind ON reservations(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_vehicle ON reservations(vehicle_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_days_day ON reservation_days(day)`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_resources_key ON reservation_resources(resource_type, resource_key)`,
		`CREATE INDEX IF NOT EXISTS idx_vehicles_name_key ON vehicles(name_key)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.DB.Close()
}

// Backup copies the database file to dest.
func (db *DB) Backup(dbPath, dest string) error {
	source, err := os.Open(dbPath)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer destination.Close()

	_, err = io.Copy(destination, source)
	return err
}

// CleanupBackups removes backup files older than the retention period.
// Returns the number of files deleted.
func (db *DB) CleanupBackups(dir string, retention time.Duration) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-retention)
	deleted := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, file.Name())); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}
