package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrImportNotFound    = errors.New("import not found")
	ErrAlreadyAccepted   = errors.New("import already accepted")
	ErrAlreadyRejected   = errors.New("import already rejected")
	ErrNotProcessed      = errors.New("import has no parsed rows")
	ErrNoRowsSelected    = errors.New("no rows selected")
	ErrInvalidSelection  = errors.New("selected row index out of range")
	ErrInvalidTransition = errors.New("invalid import status transition")
	ErrImmutable         = errors.New("accepted import can no longer be edited")
	ErrEmptyDraft        = errors.New("draft has no rows")
	ErrInvalidImportType = errors.New("import type must be delivery or service")
)

// SchemaNotFoundError is fatal for an accept call: the target table exposed
// no columns, so nothing could be written.
type SchemaNotFoundError struct {
	Table    string
	Expected []string
	Err      error
}

func (e *SchemaNotFoundError) Error() string {
	msg := fmt.Sprintf("table schema not found for %q (expected columns: %s)", e.Table, strings.Join(e.Expected, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaNotFoundError) Unwrap() error { return e.Err }

// WriteError wraps a failed bulk insert. Nothing from the batch was persisted
// and the import keeps its previous status.
type WriteError struct {
	Table string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
