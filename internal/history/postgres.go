package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the edit audit trail in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS edit_history (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			version_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			instruction TEXT NOT NULL DEFAULT '',
			original_text TEXT NOT NULL,
			edited_text TEXT NOT NULL,
			start_token INTEGER NOT NULL,
			end_token INTEGER NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_edit_history_session_created ON edit_history (session_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, rec EditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO edit_history (id, session_id, version_id, kind, instruction, original_text, edited_text, start_token, end_token, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID,
		rec.SessionID,
		rec.VersionID,
		rec.Kind,
		rec.Instruction,
		rec.OriginalText,
		rec.EditedText,
		rec.StartToken,
		rec.EndToken,
		rec.Confidence,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record edit: %w", err)
	}
	return nil
}

func (s *PostgresStore) BySession(ctx context.Context, sessionID string, limit int) ([]EditRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, version_id, kind, instruction, original_text, edited_text, start_token, end_token, confidence, created_at
		 FROM edit_history WHERE session_id=$1 ORDER BY created_at DESC LIMIT $2`,
		sessionID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query edit history: %w", err)
	}
	defer rows.Close()

	items := make([]EditRecord, 0, limit)
	for rows.Next() {
		var r EditRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.VersionID, &r.Kind, &r.Instruction, &r.OriginalText, &r.EditedText, &r.StartToken, &r.EndToken, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
