// Package store persists settings and the active model of each slot in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements settings.Store and the supervisor's model recorder.
type SQLiteStore struct {
	db       *sql.DB
	dbPath   string
	defaults map[string]string
	mu       sync.RWMutex
}

// ActiveModel is the persisted "current model" record of a slot.
type ActiveModel struct {
	Slot      string
	Model     string
	UpdatedAt time.Time
}

// Open creates (if needed) and opens the database under dataDir. defaults are
// returned for keys that were never written.
func Open(dataDir string, defaults map[string]string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "buddyd.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Writers serialize anyway; one connection avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	d := make(map[string]string, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	s := &SQLiteStore{db: db, dbPath: dbPath, defaults: d}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}
	queries := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS slot_models (
			slot TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to execute init query: %w", err)
		}
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.dbPath }

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return s.defaults[key], nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, nil
}

// GetSettings reads all requested keys in one read transaction.
func (s *SQLiteStore) GetSettings(ctx context.Context, keys ...string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	stored := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		stored[k] = v
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := map[string]string{}
	if len(keys) == 0 {
		for k, v := range s.defaults {
			out[k] = v
		}
		for k, v := range stored {
			out[k] = v
		}
		return out, nil
	}
	for _, k := range keys {
		if v, ok := stored[k]; ok {
			out[k] = v
			continue
		}
		out[k] = s.defaults[k]
	}
	return out, nil
}

func (s *SQLiteStore) Set(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	now := time.Now().UnixMilli()
	for k, v := range values {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, k, v, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// UpdateModel records model as the active model of slot ("" when stopped).
func (s *SQLiteStore) UpdateModel(ctx context.Context, slot, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slot_models (slot, model, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET model = excluded.model, updated_at = excluded.updated_at
	`, slot, model, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("update model for %s: %w", slot, err)
	}
	return nil
}

// ActiveModels returns the persisted active model per slot.
func (s *SQLiteStore) ActiveModels(ctx context.Context) ([]ActiveModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT slot, model, updated_at FROM slot_models ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("query slot models: %w", err)
	}
	defer rows.Close()
	var out []ActiveModel
	for rows.Next() {
		var am ActiveModel
		var ms int64
		if err := rows.Scan(&am.Slot, &am.Model, &ms); err != nil {
			return nil, err
		}
		am.UpdatedAt = time.UnixMilli(ms)
		out = append(out, am)
	}
	return out, rows.Err()
}

// ActiveModelsBySlot returns ActiveModels keyed by slot.
func (s *SQLiteStore) ActiveModelsBySlot(ctx context.Context) (map[string]string, error) {
	models, err := s.ActiveModels(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(models))
	for _, am := range models {
		out[am.Slot] = am.Model
	}
	return out, nil
}
