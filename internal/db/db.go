package db

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/themobileprof/moaflow/internal/interfaces"
	"github.com/themobileprof/moaflow/pkg/models"
)

//go:embed migration.sql
var migrationSQL string

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}

	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return db, nil
}

// Ensure DB implements RunJournal interface
var _ interfaces.RunJournal = (*DB)(nil)

// Migrate runs database migrations
func (db *DB) Migrate() error {
	_, err := db.conn.Exec(migrationSQL)
	if err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying database connection for advanced operations
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// LogStart records the beginning of a run
func (db *DB) LogStart(runID, useCase string) (int64, error) {
	result, err := db.conn.Exec(`
		INSERT INTO runs (run_id, use_case, status)
		VALUES (?, ?, 'started')
	`, runID, useCase)
	if err != nil {
		return 0, fmt.Errorf("failed to log run start: %w", err)
	}
	return result.LastInsertId()
}

// LogComplete records the outcome of a run
func (db *DB) LogComplete(logID int64, status, errorMsg string, durationMs int64, finalParams models.Params) error {
	paramsJSON, err := json.Marshal(finalParams)
	if err != nil {
		return fmt.Errorf("failed to marshal final params: %w", err)
	}

	_, err = db.conn.Exec(`
		UPDATE runs SET status = ?, error_message = ?, duration_ms = ?, final_params = ?
		WHERE id = ?
	`, status, errorMsg, durationMs, string(paramsJSON), logID)
	if err != nil {
		return fmt.Errorf("failed to update run %d: %w", logID, err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first
func (db *DB) RecentRuns(limit int) ([]models.RunRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, run_id, use_case, status, COALESCE(error_message, ''),
			COALESCE(duration_ms, 0), COALESCE(final_params, ''), started_at
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var r models.RunRecord
		var params string
		var started int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.UseCase, &r.Status, &r.ErrorMessage, &r.DurationMs, &params, &started); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if params != "" && params != "null" {
			if err := json.Unmarshal([]byte(params), &r.FinalParams); err != nil {
				return nil, fmt.Errorf("failed to unmarshal final params: %w", err)
			}
		}
		r.StartedAt = time.Unix(started, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
