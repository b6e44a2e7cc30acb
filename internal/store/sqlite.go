package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/imdanibytes/nexus-agent-sub000/pkg/models"
)

// SQLite persists conversations in a local database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database and ensures the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			last_input_tokens INTEGER NOT NULL DEFAULT 0,
			last_output_tokens INTEGER NOT NULL DEFAULT 0,
			total_input_tokens INTEGER NOT NULL DEFAULT 0,
			total_output_tokens INTEGER NOT NULL DEFAULT 0,
			total_cost_usd REAL NOT NULL DEFAULT 0
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create conversations schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// Get loads the conversation, or nil when absent.
func (s *SQLite) Get(ctx context.Context, id string) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at,
		       last_input_tokens, last_output_tokens,
		       total_input_tokens, total_output_tokens, total_cost_usd
		FROM conversations WHERE id = ?
	`, id)

	var conv models.Conversation
	var createdAt, updatedAt int64
	err := row.Scan(&conv.ID, &conv.Title, &createdAt, &updatedAt,
		&conv.LastUsage.InputTokens, &conv.LastUsage.OutputTokens,
		&conv.CumulativeUsage.InputTokens, &conv.CumulativeUsage.OutputTokens,
		&conv.CumulativeCost)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	conv.CreatedAt = time.Unix(createdAt, 0)
	conv.UpdatedAt = time.Unix(updatedAt, 0)
	return &conv, nil
}

// Save upserts the conversation.
func (s *SQLite) Save(ctx context.Context, conv *models.Conversation) error {
	createdAt := conv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := conv.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, title, created_at, updated_at,
			last_input_tokens, last_output_tokens,
			total_input_tokens, total_output_tokens, total_cost_usd
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at,
			last_input_tokens = excluded.last_input_tokens,
			last_output_tokens = excluded.last_output_tokens,
			total_input_tokens = excluded.total_input_tokens,
			total_output_tokens = excluded.total_output_tokens,
			total_cost_usd = excluded.total_cost_usd
	`, conv.ID, conv.Title, createdAt.Unix(), updatedAt.Unix(),
		conv.LastUsage.InputTokens, conv.LastUsage.OutputTokens,
		conv.CumulativeUsage.InputTokens, conv.CumulativeUsage.OutputTokens,
		conv.CumulativeCost)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.ID, err)
	}
	return nil
}
