package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticketops/reconcile-api/internal/reconcile"
)

var importRowColumns = []string{"id", "status", "src", "src_email", "confidence", "parsed", "meta", "ocr_text", "attached_files", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, "", slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func TestGetImportDecodesJSONColumns(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, status, src`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(importRowColumns).AddRow(
			int64(3), "needs_review", "email", "ops@example.com", 0.82,
			`{"rows":[{"gallons":5,"truck":"T-1"}],"summary":{"rowCount":1,"totalQty":5,"totalRevenue":0,"truckCount":1,"driverCount":0}}`,
			`{"importType":"delivery","ocrEngine":"textract"}`,
			"raw text", `["scans/3.pdf"]`, created, created,
		))

	rec, err := s.GetImport(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, reconcile.StatusNeedsReview, rec.Status)
	assert.Equal(t, "ops@example.com", rec.SrcEmail)
	require.Len(t, rec.Parsed.Rows, 1)
	assert.Equal(t, 5.0, rec.Parsed.Rows[0]["gallons"])
	assert.Equal(t, 1, rec.Parsed.Summary.RowCount)
	assert.Equal(t, reconcile.KindDelivery, rec.Meta.ImportType)
	assert.Contains(t, rec.Meta.Extra, "ocrEngine")
	assert.Equal(t, []reconcile.AttachedFile{{Path: "scans/3.pdf"}}, rec.AttachedFiles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetImportNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id, status, src`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(importRowColumns))

	_, err := s.GetImport(context.Background(), 404)
	assert.ErrorIs(t, err, reconcile.ErrImportNotFound)
}

func TestListImportsClampsLimit(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM imports`).
		WithArgs("pending", maxListLimit).
		WillReturnRows(sqlmock.NewRows(importRowColumns))

	recs, err := s.ListImports(context.Background(), reconcile.ListFilter{Status: reconcile.StatusPending, Limit: 5000})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitAcceptWritesStatusAndRecordsTogether(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE imports SET status = 'accepted'`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "public"."delivery_tickets" ("truck")`)).
		WithArgs("T-1", "T-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11).AddRow(12))
	mock.ExpectCommit()

	ids, err := s.CommitAccept(context.Background(), reconcile.AcceptBatch{
		ImportID: 7,
		Schema:   deliverySchema(),
		Records:  []reconcile.Record{{"truck": "T-1"}, {"truck": "T-2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitAcceptWithoutRecordsSkipsInsert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE imports SET status = 'accepted'`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ids, err := s.CommitAccept(context.Background(), reconcile.AcceptBatch{ImportID: 7, Schema: deliverySchema()})
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitAcceptLosesGuard(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE imports SET status = 'accepted'`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM imports WHERE id = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("accepted"))
	mock.ExpectRollback()

	_, err := s.CommitAccept(context.Background(), reconcile.AcceptBatch{
		ImportID: 7,
		Schema:   deliverySchema(),
		Records:  []reconcile.Record{{"truck": "T-1"}},
	})
	assert.ErrorIs(t, err, reconcile.ErrAlreadyAccepted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitAcceptRollsBackOnWriteFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE imports SET status = 'accepted'`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO`).
		WillReturnError(errors.New("permission denied for table delivery_tickets"))
	mock.ExpectRollback()

	_, err := s.CommitAccept(context.Background(), reconcile.AcceptBatch{
		ImportID: 7,
		Schema:   deliverySchema(),
		Records:  []reconcile.Record{{"truck": "T-1"}},
	})
	assert.ErrorContains(t, err, "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectOnTerminalImport(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE imports SET status = 'rejected'`)).
		WithArgs(int64(9), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(importRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM imports WHERE id = $1`)).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("rejected"))

	_, err := s.Reject(context.Background(), 9, reconcile.Meta{RejectReason: "dup"})
	assert.ErrorIs(t, err, reconcile.ErrAlreadyRejected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAcceptance(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE imports SET parsed = $2, meta = $3`)).
		WithArgs(int64(7), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.RecordAcceptance(context.Background(), 7, reconcile.Parsed{AcceptedIDs: []int64{11}}, reconcile.Meta{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
