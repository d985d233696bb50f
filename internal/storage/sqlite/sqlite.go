package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"herowatch/internal/hero"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements storage.Storage using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteStorage{db: db}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

// migrate creates the database schema
func (s *SQLiteStorage) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS hero_credentials (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			refresh_token TEXT NOT NULL,
			account_id TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetCredentials retrieves the stored Hero credentials
// Implements hero.CredentialStore interface
func (s *SQLiteStorage) GetCredentials(ctx context.Context) (*hero.Credentials, error) {
	var creds hero.Credentials
	var accountID sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT refresh_token, account_id, created_at, updated_at
		FROM hero_credentials WHERE id = 1
	`).Scan(&creds.RefreshToken, &accountID, &creds.CreatedAt, &creds.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil // No credentials stored yet
	}
	if err != nil {
		return nil, err
	}

	if accountID.Valid {
		creds.AccountID = accountID.String
	}

	return &creds, nil
}

// SaveCredentials saves or updates the Hero credentials
// Implements hero.CredentialStore interface
func (s *SQLiteStorage) SaveCredentials(ctx context.Context, creds *hero.Credentials) error {
	now := time.Now()
	creds.UpdatedAt = now

	// Check if credentials exist
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM hero_credentials WHERE id = 1)").Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		// Update existing credentials
		_, err = s.db.ExecContext(ctx, `
			UPDATE hero_credentials
			SET refresh_token = ?, account_id = ?, updated_at = ?
			WHERE id = 1
		`, creds.RefreshToken, creds.AccountID, creds.UpdatedAt)
	} else {
		// Insert new credentials
		creds.CreatedAt = now
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO hero_credentials (id, refresh_token, account_id, created_at, updated_at)
			VALUES (1, ?, ?, ?, ?)
		`, creds.RefreshToken, creds.AccountID, creds.CreatedAt, creds.UpdatedAt)
	}

	return err
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
