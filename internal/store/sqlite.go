package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nicholasgriffintn/threatjam.com/internal/models"
)

// SQLiteStore persists room records in a local SQLite database. This is the
// default backend in development.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/threatjam.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/threatjam.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		room_id TEXT PRIMARY KEY,
		record TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetRoom retrieves the record stored under roomID.
func (s *SQLiteStore) GetRoom(ctx context.Context, roomID string) (*models.RoomRecord, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT record FROM rooms WHERE room_id = ?
	`, roomID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	record := &models.RoomRecord{}
	if err := json.Unmarshal([]byte(raw), record); err != nil {
		return nil, err
	}
	return record, nil
}

// PutRoom upserts the record stored under roomID. The whole record is written
// in one statement, so readers always observe a complete value.
func (s *SQLiteStore) PutRoom(ctx context.Context, roomID string, record *models.RoomRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rooms (room_id, record, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id) DO UPDATE SET
			record = excluded.record,
			updated_at = CURRENT_TIMESTAMP
	`, roomID, string(raw))
	return err
}
