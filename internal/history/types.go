// Package history persists an audit trail of edit operations per
// session, independent of the in-memory version stack.
package history

import (
	"context"
	"time"
)

// EditRecord stores one applied edit, undo, redo, or restore.
type EditRecord struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	VersionID    string    `json:"version_id"`
	Kind         string    `json:"kind"`
	Instruction  string    `json:"instruction,omitempty"`
	OriginalText string    `json:"original_text"`
	EditedText   string    `json:"edited_text"`
	StartToken   int       `json:"start_token"`
	EndToken     int       `json:"end_token"`
	Confidence   float64   `json:"confidence"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists and retrieves the edit audit trail.
type Store interface {
	Record(ctx context.Context, rec EditRecord) error
	BySession(ctx context.Context, sessionID string, limit int) ([]EditRecord, error)
	Close() error
}
