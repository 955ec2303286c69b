package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

type Event string

const (
	EventSaveDraft Event = "save_draft"
	EventAccept    Event = "accept"
	EventReject    Event = "reject"
)

var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventSaveDraft: StatusPending,
		EventAccept:    StatusAccepted,
		EventReject:    StatusRejected,
	},
	StatusNeedsReview: {
		EventSaveDraft: StatusNeedsReview,
		EventAccept:    StatusAccepted,
		EventReject:    StatusRejected,
	},
}

// Transition returns the state an import moves to when ev is applied, or an
// error naming why the move is not in the table.
func Transition(from Status, ev Event) (Status, error) {
	switch from {
	case StatusAccepted:
		if ev == EventAccept {
			return from, ErrAlreadyAccepted
		}
		return from, ErrImmutable
	case StatusRejected:
		return from, ErrAlreadyRejected
	}
	next, ok := transitions[from][ev]
	if !ok {
		return from, fmt.Errorf("%w: %s on %q", ErrInvalidTransition, ev, from)
	}
	return next, nil
}

// AcceptBatch is everything the store needs to flip an import to accepted
// and insert its canonical records in one transaction.
type AcceptBatch struct {
	ImportID int64
	Schema   Schema
	Records  []Record
}

type Store interface {
	GetImport(ctx context.Context, id int64) (ImportRecord, error)
	ListImports(ctx context.Context, filter ListFilter) ([]ImportRecord, error)
	SaveDraft(ctx context.Context, id int64, parsed Parsed, meta Meta) (ImportRecord, error)
	Reject(ctx context.Context, id int64, meta Meta) (ImportRecord, error)
	// CommitAccept must write the accepted status and the records atomically,
	// returning ids in record order. An import no longer editable yields
	// ErrAlreadyAccepted, ErrAlreadyRejected or ErrImportNotFound.
	CommitAccept(ctx context.Context, batch AcceptBatch) ([]int64, error)
	RecordAcceptance(ctx context.Context, id int64, parsed Parsed, meta Meta) error
}

type SchemaIntrospector interface {
	Columns(ctx context.Context, table string) ([]Column, error)
}

// Tables names the canonical target tables.
type Tables struct {
	Delivery string
	Service  string
}

func (t Tables) For(kind TargetKind) string {
	if kind == KindService {
		return t.Service
	}
	return t.Delivery
}

type Controller struct {
	store        Store
	introspector SchemaIntrospector
	tables       Tables
	logger       *slog.Logger
	now          func() time.Time
}

func NewController(store Store, introspector SchemaIntrospector, tables Tables, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:        store,
		introspector: introspector,
		tables:       tables,
		logger:       logger,
		now:          time.Now,
	}
}

type AcceptRequest struct {
	ImportID int64
	// SelectedRows holds indexes into parsed.rows. Nil selects every row; an
	// empty, non-nil slice is rejected.
	SelectedRows []int
}

type AcceptResult struct {
	ImportID   int64
	Kind       TargetKind
	Detection  Detection
	IDs        []int64
	FailedRows []FailedRow
	Message    string
}

func (r AcceptResult) Inserted() int { return len(r.IDs) }

func (r AcceptResult) Failed() int { return len(r.FailedRows) }

// Accept runs classify, introspect, validate or dedupe, map and write for the
// selected rows of one import. Per-row failures are collected, never fatal.
func (c *Controller) Accept(ctx context.Context, req AcceptRequest) (AcceptResult, error) {
	if req.SelectedRows != nil && len(req.SelectedRows) == 0 {
		return AcceptResult{}, ErrNoRowsSelected
	}

	rec, err := c.store.GetImport(ctx, req.ImportID)
	if err != nil {
		return AcceptResult{}, err
	}
	if _, err := Transition(rec.Status, EventAccept); err != nil {
		return AcceptResult{}, err
	}
	if len(rec.Parsed.Rows) == 0 {
		return AcceptResult{}, ErrNotProcessed
	}

	selected, err := selectRows(rec.Parsed.Rows, req.SelectedRows)
	if err != nil {
		return AcceptResult{}, err
	}

	detection := Classify(rec)
	table := c.tables.For(detection.Type)
	schema, err := c.loadSchema(ctx, detection.Type, table)
	if err != nil {
		c.logger.Error("import_accept_failed", "import_id", rec.ID, "table", table, "error", err)
		return AcceptResult{}, err
	}

	now := c.now().UTC()
	overrides := ResolveColumnMap(rec.Parsed.ColumnMap, rec.Parsed.Headers)
	mapper := NewMapper(schema, rec.ID, now, overrides)

	var (
		records []Record
		failed  []FailedRow
	)
	switch detection.Type {
	case KindService:
		kept, dropped := DedupeServiceRows(selected, overrides)
		failed = append(failed, dropped...)
		records, failed = mapRows(kept, mapper.MapService, records, failed)
	default:
		valid, rejected := PartitionDeliveryRows(selected, overrides)
		failed = append(failed, rejected...)
		records, failed = mapRows(valid, mapper.MapDelivery, records, failed)
	}
	sort.SliceStable(failed, func(i, j int) bool { return failed[i].Index < failed[j].Index })

	ids, err := c.store.CommitAccept(ctx, AcceptBatch{ImportID: rec.ID, Schema: schema, Records: records})
	if err != nil {
		if !isLifecycleError(err) {
			err = &WriteError{Table: table, Err: err}
		}
		c.logger.Error("import_accept_failed", "import_id", rec.ID, "table", table, "error", err)
		return AcceptResult{}, err
	}
	if ids == nil {
		ids = []int64{}
	}

	parsed := rec.Parsed
	parsed.AcceptedIDs = ids
	parsed.FailedRows = failed
	meta := rec.Meta
	meta.AcceptedAt = &now
	meta.ImportType = detection.Type
	meta.Detection = &detection
	meta.Created = createdCounts(detection.Type, len(ids))
	if err := c.store.RecordAcceptance(ctx, rec.ID, parsed, meta); err != nil {
		c.logger.Warn("import_accept_writeback_failed", "import_id", rec.ID, "error", err)
	}

	result := AcceptResult{
		ImportID:   rec.ID,
		Kind:       detection.Type,
		Detection:  detection,
		IDs:        ids,
		FailedRows: failed,
	}
	if result.FailedRows == nil {
		result.FailedRows = []FailedRow{}
	}
	result.Message = acceptMessage(detection.Type, result.Inserted(), result.Failed())

	attrs := []any{
		"import_id", rec.ID,
		"kind", detection.Type,
		"confidence", detection.Confidence,
		"inserted", result.Inserted(),
		"failed", result.Failed(),
	}
	if detection.Type == KindService {
		attrs = append(attrs, "dedup_policy", DedupLastWins)
	}
	c.logger.Info("import_accepted", attrs...)
	return result, nil
}

func mapRows(rows []IndexedRow, mapFn func(int, Row) MapResult, records []Record, failed []FailedRow) ([]Record, []FailedRow) {
	for _, r := range rows {
		rec, ok := mapFn(r.Index, r.Row).Record()
		if !ok {
			failed = append(failed, FailedRow{Index: r.Index, Row: r.Row, Reason: ReasonUnmappable})
			continue
		}
		records = append(records, rec)
	}
	return records, failed
}

func (c *Controller) loadSchema(ctx context.Context, kind TargetKind, table string) (Schema, error) {
	cols, err := c.introspector.Columns(ctx, table)
	if err != nil || len(cols) == 0 {
		return Schema{}, &SchemaNotFoundError{Table: table, Expected: ExpectedColumns(kind), Err: err}
	}
	return NewSchema(table, cols), nil
}

// selectRows resolves selection indexes against rows in ascending order,
// ignoring repeats.
func selectRows(rows []Row, selection []int) ([]IndexedRow, error) {
	if selection == nil {
		out := make([]IndexedRow, len(rows))
		for i, row := range rows {
			out[i] = IndexedRow{Index: i, Row: row}
		}
		return out, nil
	}
	seen := make(map[int]struct{}, len(selection))
	indexes := make([]int, 0, len(selection))
	for _, idx := range selection {
		if idx < 0 || idx >= len(rows) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidSelection, idx)
		}
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	out := make([]IndexedRow, len(indexes))
	for i, idx := range indexes {
		out[i] = IndexedRow{Index: idx, Row: rows[idx]}
	}
	return out, nil
}

func isLifecycleError(err error) bool {
	return errors.Is(err, ErrAlreadyAccepted) ||
		errors.Is(err, ErrAlreadyRejected) ||
		errors.Is(err, ErrImportNotFound) ||
		errors.Is(err, ErrInvalidTransition)
}

func createdCounts(kind TargetKind, n int) *Created {
	if kind == KindService {
		return &Created{ServiceJobs: n}
	}
	return &Created{DeliveryTickets: n}
}

func acceptMessage(kind TargetKind, inserted, failed int) string {
	noun := "delivery tickets"
	if kind == KindService {
		noun = "service jobs"
	}
	return fmt.Sprintf("Created %d %s, %d rows failed", inserted, noun, failed)
}

type DraftInput struct {
	Rows       []Row
	Headers    []string
	ColumnMap  map[string]string
	ImportType string
}

// SaveDraft replaces the reviewer-edited rows and recomputes the summary and
// detection. Status is left as is.
func (c *Controller) SaveDraft(ctx context.Context, id int64, in DraftInput) (ImportRecord, error) {
	if len(in.Rows) == 0 {
		return ImportRecord{}, ErrEmptyDraft
	}
	var importType TargetKind
	if in.ImportType != "" {
		kind, ok := ParseTargetKind(in.ImportType)
		if !ok {
			return ImportRecord{}, ErrInvalidImportType
		}
		importType = kind
	}

	rec, err := c.store.GetImport(ctx, id)
	if err != nil {
		return ImportRecord{}, err
	}
	if _, err := Transition(rec.Status, EventSaveDraft); err != nil {
		return ImportRecord{}, err
	}
	if len(rec.Parsed.Rows) == 0 {
		return ImportRecord{}, ErrNotProcessed
	}

	parsed := rec.Parsed
	parsed.Rows = in.Rows
	if in.Headers != nil {
		parsed.Headers = in.Headers
	}
	if in.ColumnMap != nil {
		parsed.ColumnMap = in.ColumnMap
	}
	parsed.Summary = Summarize(parsed.Rows, ResolveColumnMap(parsed.ColumnMap, parsed.Headers))

	now := c.now().UTC()
	meta := rec.Meta
	meta.DraftSavedAt = &now
	if importType != "" {
		meta.ImportType = importType
	}
	rec.Parsed = parsed
	rec.Meta = meta
	detection := Classify(rec)
	meta.Detection = &detection

	updated, err := c.store.SaveDraft(ctx, id, parsed, meta)
	if err != nil {
		return ImportRecord{}, err
	}
	c.logger.Info("import_draft_saved", "import_id", id, "rows", len(parsed.Rows), "detected", detection.Type)
	return updated, nil
}

func (c *Controller) Reject(ctx context.Context, id int64, reason string) (ImportRecord, error) {
	rec, err := c.store.GetImport(ctx, id)
	if err != nil {
		return ImportRecord{}, err
	}
	if _, err := Transition(rec.Status, EventReject); err != nil {
		return ImportRecord{}, err
	}
	now := c.now().UTC()
	meta := rec.Meta
	meta.RejectedAt = &now
	meta.RejectReason = reason

	updated, err := c.store.Reject(ctx, id, meta)
	if err != nil {
		return ImportRecord{}, err
	}
	c.logger.Info("import_rejected", "import_id", id)
	return updated, nil
}

// Detect previews the classifier result without changing the import.
func (c *Controller) Detect(ctx context.Context, id int64) (Detection, error) {
	rec, err := c.store.GetImport(ctx, id)
	if err != nil {
		return Detection{}, err
	}
	return Classify(rec), nil
}

func (c *Controller) Get(ctx context.Context, id int64) (ImportRecord, error) {
	return c.store.GetImport(ctx, id)
}

func (c *Controller) List(ctx context.Context, filter ListFilter) ([]ImportRecord, error) {
	return c.store.ListImports(ctx, filter)
}
