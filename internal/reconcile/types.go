// Package reconcile turns parsed ticket rows into canonical delivery tickets
// and service jobs. It owns the import lifecycle (pending, needs_review,
// accepted, rejected) and the classify, map, validate and dedupe steps that
// run when a reviewer accepts an import.
package reconcile

import (
	"encoding/json"
	"strings"
	"time"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusNeedsReview Status = "needs_review"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusNeedsReview, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further lifecycle transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// EditableStatuses lists the states in which drafts, accepts and rejects are allowed.
var EditableStatuses = []Status{StatusPending, StatusNeedsReview}

type TargetKind string

const (
	KindDelivery TargetKind = "delivery"
	KindService  TargetKind = "service"
)

func ParseTargetKind(raw string) (TargetKind, bool) {
	switch TargetKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindDelivery:
		return KindDelivery, true
	case KindService:
		return KindService, true
	}
	return "", false
}

// Row is one parsed OCR row. Keys vary per source template.
type Row map[string]any

type ImportRecord struct {
	ID            int64          `json:"id"`
	Status        Status         `json:"status"`
	Src           string         `json:"src"`
	SrcEmail      string         `json:"src_email"`
	Confidence    float64        `json:"confidence"`
	Parsed        Parsed         `json:"parsed"`
	Meta          Meta           `json:"meta"`
	OCRText       string         `json:"ocr_text"`
	AttachedFiles []AttachedFile `json:"attached_files"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type Parsed struct {
	Rows        []Row             `json:"rows"`
	Headers     []string          `json:"headers,omitempty"`
	ColumnMap   map[string]string `json:"columnMap,omitempty"`
	Summary     Summary           `json:"summary"`
	AcceptedIDs []int64           `json:"acceptedIds,omitempty"`
	FailedRows  []FailedRow       `json:"failedRows,omitempty"`
}

type Summary struct {
	RowCount     int     `json:"rowCount"`
	TotalQty     float64 `json:"totalQty"`
	TotalRevenue float64 `json:"totalRevenue"`
	TruckCount   int     `json:"truckCount"`
	DriverCount  int     `json:"driverCount"`
}

type FailedRow struct {
	Index  int    `json:"index"`
	Row    Row    `json:"row"`
	Reason string `json:"reason"`
}

type Detection struct {
	Type       TargetKind `json:"type"`
	Confidence float64    `json:"confidence"`
	Hits       []string   `json:"hits"`
}

type Created struct {
	DeliveryTickets int `json:"deliveryTickets,omitempty"`
	ServiceJobs     int `json:"serviceJobs,omitempty"`
}

// Meta is the import's free-form metadata object. Keys this package does not
// know about are carried through untouched in Extra.
type Meta struct {
	ImportType   TargetKind `json:"importType,omitempty"`
	Detection    *Detection `json:"detection,omitempty"`
	DraftSavedAt *time.Time `json:"draftSavedAt,omitempty"`
	AcceptedAt   *time.Time `json:"acceptedAt,omitempty"`
	Created      *Created   `json:"created,omitempty"`
	RejectedAt   *time.Time `json:"rejectedAt,omitempty"`
	RejectReason string     `json:"rejectReason,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var metaKnownKeys = []string{"importType", "detection", "draftSavedAt", "acceptedAt", "created", "rejectedAt", "rejectReason"}

type metaAlias Meta

func (m Meta) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(metaAlias(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(m.Extra)+len(metaKnownKeys))
	for k, v := range m.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	var alias metaAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, key := range metaKnownKeys {
		delete(all, key)
	}
	*m = Meta(alias)
	if len(all) > 0 {
		m.Extra = all
	}
	return nil
}

// AttachedFile references a scanned original in object storage. Older
// imports store bare object keys, so a JSON string decodes as Path.
type AttachedFile struct {
	Path        string `json:"path"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

func (f *AttachedFile) UnmarshalJSON(data []byte) error {
	var path string
	if err := json.Unmarshal(data, &path); err == nil {
		*f = AttachedFile{Path: path}
		return nil
	}
	type plain AttachedFile
	var p struct {
		plain
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = AttachedFile(p.plain)
	if f.Path == "" {
		f.Path = p.Key
	}
	return nil
}

// IndexedRow keeps a row's position in parsed.rows through the pipeline.
type IndexedRow struct {
	Index int
	Row   Row
}

type ListFilter struct {
	Status Status
	Limit  int
}
