package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestLogInsertsEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO import_audit_log`).
		WithArgs(int64(12), ActionAccepted, "key:ab12", "req-1", `{"inserted":3}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewLogger(db).Log(context.Background(), Entry{
		ImportID:  12,
		Action:    ActionAccepted,
		Actor:     "key:ab12",
		RequestID: "req-1",
		Metadata:  map[string]any{"inserted": 3},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unfulfilled expectations: %v", err)
	}
}

func TestLogWrapsInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO import_audit_log`).WillReturnError(errors.New("relation does not exist"))

	err = NewLogger(db).Log(context.Background(), Entry{ImportID: 1, Action: ActionRejected})
	if err == nil || err.Error() != "insert audit log: relation does not exist" {
		t.Fatalf("unexpected error: %v", err)
	}
}
