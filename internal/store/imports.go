package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ticketops/reconcile-api/internal/reconcile"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

const importColumns = `id, status, src, src_email, confidence, parsed, meta, ocr_text, attached_files, created_at, updated_at`

// editableGuard limits lifecycle writes to imports that are not yet terminal.
// Accept, reject and draft saves all share it so the status check and the
// write happen in one statement.
const editableGuard = `status IN ('pending', 'needs_review')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImport(row rowScanner) (reconcile.ImportRecord, error) {
	var (
		rec        reconcile.ImportRecord
		status     string
		src        sql.NullString
		srcEmail   sql.NullString
		confidence sql.NullFloat64
		parsed     []byte
		meta       []byte
		ocrText    sql.NullString
		files      []byte
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(&rec.ID, &status, &src, &srcEmail, &confidence, &parsed, &meta, &ocrText, &files, &createdAt, &updatedAt); err != nil {
		return reconcile.ImportRecord{}, err
	}
	rec.Status = reconcile.Status(status)
	rec.Src = src.String
	rec.SrcEmail = srcEmail.String
	rec.Confidence = confidence.Float64
	rec.OCRText = ocrText.String
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt

	if len(parsed) > 0 {
		if err := json.Unmarshal(parsed, &rec.Parsed); err != nil {
			return reconcile.ImportRecord{}, fmt.Errorf("decode parsed for import %d: %w", rec.ID, err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Meta); err != nil {
			return reconcile.ImportRecord{}, fmt.Errorf("decode meta for import %d: %w", rec.ID, err)
		}
	}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &rec.AttachedFiles); err != nil {
			return reconcile.ImportRecord{}, fmt.Errorf("decode attached_files for import %d: %w", rec.ID, err)
		}
	}
	return rec, nil
}

func (s *Store) GetImport(ctx context.Context, id int64) (reconcile.ImportRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+importColumns+` FROM imports WHERE id = $1`, id)
	rec, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reconcile.ImportRecord{}, reconcile.ErrImportNotFound
	}
	if err != nil {
		return reconcile.ImportRecord{}, fmt.Errorf("get import %d: %w", id, err)
	}
	return rec, nil
}

func (s *Store) ListImports(ctx context.Context, filter reconcile.ListFilter) ([]reconcile.ImportRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+importColumns+` FROM imports
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		string(filter.Status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	out := make([]reconcile.ImportRecord, 0, limit)
	for rows.Next() {
		rec, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	return out, nil
}

func (s *Store) SaveDraft(ctx context.Context, id int64, parsed reconcile.Parsed, meta reconcile.Meta) (reconcile.ImportRecord, error) {
	parsedJSON, metaJSON, err := encodeState(parsed, meta)
	if err != nil {
		return reconcile.ImportRecord{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE imports SET parsed = $2, meta = $3, updated_at = now()
		WHERE id = $1 AND `+editableGuard+`
		RETURNING `+importColumns,
		id, parsedJSON, metaJSON,
	)
	rec, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reconcile.ImportRecord{}, terminalError(ctx, s.db, id)
	}
	if err != nil {
		return reconcile.ImportRecord{}, fmt.Errorf("save draft for import %d: %w", id, err)
	}
	return rec, nil
}

func (s *Store) Reject(ctx context.Context, id int64, meta reconcile.Meta) (reconcile.ImportRecord, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return reconcile.ImportRecord{}, fmt.Errorf("encode meta: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE imports SET status = 'rejected', meta = $2, updated_at = now()
		WHERE id = $1 AND `+editableGuard+`
		RETURNING `+importColumns,
		id, string(metaJSON),
	)
	rec, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reconcile.ImportRecord{}, terminalError(ctx, s.db, id)
	}
	if err != nil {
		return reconcile.ImportRecord{}, fmt.Errorf("reject import %d: %w", id, err)
	}
	return rec, nil
}

// CommitAccept flips the import to accepted and inserts its records in one
// transaction. Concurrent callers serialize on the import row; the loser
// sees zero affected rows and gets ErrAlreadyAccepted.
func (s *Store) CommitAccept(ctx context.Context, batch reconcile.AcceptBatch) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin accept: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE imports SET status = 'accepted', updated_at = now() WHERE id = $1 AND `+editableGuard,
		batch.ImportID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark import %d accepted: %w", batch.ImportID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mark import %d accepted: %w", batch.ImportID, err)
	}
	if affected == 0 {
		return nil, terminalError(ctx, tx, batch.ImportID)
	}

	ids := []int64{}
	if len(batch.Records) > 0 {
		ids, err = WriteBatch(ctx, tx, s.qualify(batch.Schema.Table()), batch.Schema, batch.Records)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit accept: %w", err)
	}
	return ids, nil
}

// RecordAcceptance stores acceptedIds, failedRows and the accept stamps after
// the records are committed.
func (s *Store) RecordAcceptance(ctx context.Context, id int64, parsed reconcile.Parsed, meta reconcile.Meta) error {
	parsedJSON, metaJSON, err := encodeState(parsed, meta)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE imports SET parsed = $2, meta = $3, updated_at = now() WHERE id = $1`,
		id, parsedJSON, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("record acceptance for import %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return reconcile.ErrImportNotFound
	}
	return nil
}

// terminalError explains why a guarded update matched no row.
func terminalError(ctx context.Context, q Querier, id int64) error {
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM imports WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return reconcile.ErrImportNotFound
	}
	if err != nil {
		return fmt.Errorf("load import %d status: %w", id, err)
	}
	switch reconcile.Status(status) {
	case reconcile.StatusAccepted:
		return reconcile.ErrAlreadyAccepted
	case reconcile.StatusRejected:
		return reconcile.ErrAlreadyRejected
	}
	return fmt.Errorf("%w: import %d is %q", reconcile.ErrInvalidTransition, id, status)
}

func encodeState(parsed reconcile.Parsed, meta reconcile.Meta) (string, string, error) {
	parsedJSON, err := json.Marshal(parsed)
	if err != nil {
		return "", "", fmt.Errorf("encode parsed: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", "", fmt.Errorf("encode meta: %w", err)
	}
	return string(parsedJSON), string(metaJSON), nil
}
