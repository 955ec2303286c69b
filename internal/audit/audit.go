package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const (
	ActionDraftSaved = "import.draft_saved"
	ActionAccepted   = "import.accepted"
	ActionRejected   = "import.rejected"
)

type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

type Entry struct {
	ImportID  int64
	Action    string
	Actor     string
	RequestID string
	Metadata  map[string]any
}

func (l *Logger) Log(ctx context.Context, entry Entry) error {
	metadata := []byte("{}")
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = encoded
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO import_audit_log (import_id, action, actor, request_id, metadata)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)`,
		entry.ImportID, entry.Action, entry.Actor, entry.RequestID, string(metadata),
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
