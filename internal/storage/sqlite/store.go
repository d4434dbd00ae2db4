// Package sqlite persists audit interactions in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relaygate/relaygate/internal/storage"
)

// Store is a SQLite implementation of InteractionStore.
type Store struct {
	db *sql.DB
}

var _ storage.InteractionStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			client TEXT,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			streaming INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			duration_ns INTEGER,
			request TEXT,
			response TEXT,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_client ON interactions(client)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_provider ON interactions(provider)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_status ON interactions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) SaveInteraction(ctx context.Context, it *storage.Interaction) error {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}

	query := `INSERT INTO interactions (id, client, provider, model, streaming, status, duration_ns, request, response, error_message, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		it.ID, it.Client, it.Provider, it.Model, it.Streaming, it.Status,
		it.Duration.Nanoseconds(), string(it.Request), string(it.Response),
		it.Error, it.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}

	return nil
}

func (s *Store) GetInteraction(ctx context.Context, id string) (*storage.Interaction, error) {
	query := `SELECT id, client, provider, model, streaming, status, duration_ns, request, response, error_message, created_at
	          FROM interactions WHERE id = ?`

	var it storage.Interaction
	var durationNS int64
	var requestStr, responseStr, errorStr sql.NullString

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&it.ID, &it.Client, &it.Provider, &it.Model, &it.Streaming, &it.Status,
		&durationNS, &requestStr, &responseStr, &errorStr, &it.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("interaction %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}

	it.Duration = time.Duration(durationNS)
	if requestStr.Valid {
		it.Request = json.RawMessage(requestStr.String)
	}
	if responseStr.Valid {
		it.Response = json.RawMessage(responseStr.String)
	}
	if errorStr.Valid {
		it.Error = errorStr.String
	}

	return &it, nil
}

// ListInteractions returns the most recent interactions, newest first.
func (s *Store) ListInteractions(ctx context.Context, limit int) ([]*storage.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, client, provider, model, streaming, status, duration_ns, request, response, error_message, created_at
	          FROM interactions ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []*storage.Interaction
	for rows.Next() {
		var it storage.Interaction
		var durationNS int64
		var requestStr, responseStr, errorStr sql.NullString

		if err := rows.Scan(&it.ID, &it.Client, &it.Provider, &it.Model, &it.Streaming, &it.Status,
			&durationNS, &requestStr, &responseStr, &errorStr, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}

		it.Duration = time.Duration(durationNS)
		if requestStr.Valid {
			it.Request = json.RawMessage(requestStr.String)
		}
		if responseStr.Valid {
			it.Response = json.RawMessage(responseStr.String)
		}
		if errorStr.Valid {
			it.Error = errorStr.String
		}

		interactions = append(interactions, &it)
	}

	return interactions, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
