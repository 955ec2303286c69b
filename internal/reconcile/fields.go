package reconcile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TargetField is a canonical column and the source spellings accepted for
// it, in priority order.
type TargetField struct {
	Name    string
	Aliases []string
}

var (
	FieldDate         = TargetField{Name: "date", Aliases: []string{"date", "delivery_date", "ticket_date", "day"}}
	FieldTicketNumber = TargetField{Name: "ticket_number", Aliases: []string{"ticket", "ticket_number", "ticket_no", "ticketid", "ticket_id", "ticket#"}}
	FieldTruck        = TargetField{Name: "truck", Aliases: []string{"truck", "truck_number", "truck_no", "unit", "vehicle"}}
	FieldDriver       = TargetField{Name: "driver", Aliases: []string{"driver", "driver_name", "operator"}}
	FieldCustomerName = TargetField{Name: "customerName", Aliases: []string{"customer", "customername", "customer_name", "account"}}
	FieldAddress      = TargetField{Name: "address", Aliases: []string{"address", "delivery_address", "location", "site"}}
	FieldProduct      = TargetField{Name: "product", Aliases: []string{"product", "fuel", "fuel_type", "grade"}}
	FieldQty          = TargetField{Name: "qty", Aliases: []string{"qty", "gallons", "quantity", "gal"}}
	FieldRate         = TargetField{Name: "rate", Aliases: []string{"rate", "price_per_gallon", "ppg", "unit_price"}}
	FieldAmount       = TargetField{Name: "amount", Aliases: []string{"amount", "total", "price", "revenue"}}
	FieldNotes        = TargetField{Name: "notes", Aliases: []string{"notes", "note", "memo", "comments"}}
)

// DeliveryFields is the alias table used for schema-driven delivery mapping.
var DeliveryFields = []TargetField{
	FieldDate,
	FieldTicketNumber,
	FieldTruck,
	FieldDriver,
	FieldCustomerName,
	FieldAddress,
	FieldProduct,
	FieldQty,
	FieldRate,
	FieldAmount,
	FieldNotes,
}

var (
	FieldJobNumber   = TargetField{Name: "job_number", Aliases: []string{"job_number", "jobnumber", "job_no", "job", "job_id", "work_order", "wo"}}
	FieldDescription = TargetField{Name: "description", Aliases: []string{"description", "work", "service", "work_performed", "notes"}}
	FieldTechnician  = TargetField{Name: "technician", Aliases: []string{"technician", "tech", "employee", "driver"}}
	FieldJobAmount   = TargetField{Name: "amount", Aliases: []string{"amount", "total", "price", "invoice_total"}}
	FieldJobStatus   = TargetField{Name: "status", Aliases: []string{"status", "job_status"}}
	FieldJobDate     = TargetField{Name: "job_date", Aliases: []string{"job_date", "date", "service_date"}}
)

var (
	provenancePage    = []string{"page", "page_no", "pageno"}
	provenanceY       = []string{"y", "y_pos", "ypos"}
	provenanceColumns = []string{"columns", "raw", "raw_columns", "source_columns"}
)

const (
	MetaColumn = "meta"

	DefaultServiceStatus = "pending"
	DefaultServiceAmount = 0

	ReasonValidationFailed = "Missing required fields or validation failed"
	ReasonUnmappable       = "Row did not map to any column of the target table"
	ReasonMissingJobNumber = "Missing job number"
	ReasonSupersededJob    = "Duplicate job number superseded by a later row"
)

// DefaultJobDate is the job_date written for service rows that carry none.
func DefaultJobDate(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// ExpectedColumns lists the columns a healthy target table exposes; used in
// schema-not-found diagnostics.
func ExpectedColumns(kind TargetKind) []string {
	if kind == KindService {
		return []string{"job_number", "customer_name", "address", "description", "technician", "amount", "status", "job_date", MetaColumn}
	}
	return []string{"date", "ticket_number", "truck", "driver", "customer_name", "address", "product", "qty", "rate", "amount", "notes", MetaColumn}
}

// normalizeKey folds case and separators so "Customer Name", "customer_name"
// and "customerName" compare equal.
func normalizeKey(raw string) string {
	replacer := strings.NewReplacer(" ", "", "_", "", "-", "", ".", "", "/", "")
	return strings.ToLower(replacer.Replace(strings.TrimSpace(raw)))
}

// rowKeys indexes a row's keys by their normalized form. Keys that fold to
// the same form are all kept, in lexical order, so lookups are deterministic.
func rowKeys(row Row) map[string][]string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	index := make(map[string][]string, len(keys))
	for _, k := range keys {
		norm := normalizeKey(k)
		index[norm] = append(index[norm], k)
	}
	return index
}

// lookup returns the first alias that has a present, non-empty value under
// any of the row keys folding to it.
func lookup(row Row, index map[string][]string, aliases []string) (string, any, bool) {
	for _, alias := range aliases {
		for _, key := range index[normalizeKey(alias)] {
			if value := row[key]; isPresent(value) {
				return key, value, true
			}
		}
	}
	return "", nil, false
}

// fieldResolver reads target fields from one source row. Reviewer overrides
// (normalized target field -> source key, from ResolveColumnMap) are tried
// before the alias table.
type fieldResolver struct {
	row       Row
	index     map[string][]string
	overrides map[string]string
}

func newFieldResolver(row Row, overrides map[string]string) fieldResolver {
	return fieldResolver{row: row, index: rowKeys(row), overrides: overrides}
}

func (r fieldResolver) get(field TargetField) (string, any, bool) {
	if source, ok := r.overrides[normalizeKey(field.Name)]; ok {
		if key, value, ok := lookup(r.row, r.index, []string{source}); ok {
			return key, value, true
		}
	}
	return lookup(r.row, r.index, field.Aliases)
}

func (r fieldResolver) has(field TargetField) bool {
	_, _, ok := r.get(field)
	return ok
}

// values returns every present value of field: the override source first,
// then each alias spelling in priority order.
func (r fieldResolver) values(field TargetField) []any {
	var out []any
	sources := field.Aliases
	if source, ok := r.overrides[normalizeKey(field.Name)]; ok {
		sources = append([]string{source}, field.Aliases...)
	}
	for _, alias := range sources {
		for _, key := range r.index[normalizeKey(alias)] {
			if value := r.row[key]; isPresent(value) {
				out = append(out, value)
			}
		}
	}
	return out
}

func isPresent(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	default:
		return true
	}
}

// parseDecimal accepts JSON numbers and human-entered strings like "$1,500.00".
func parseDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case int32:
		return decimal.NewFromInt32(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case decimal.Decimal:
		return v, true
	case string:
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(v))
		if cleaned == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(cleaned)
		return d, err == nil
	}
	return decimal.Zero, false
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return decimal.NewFromFloat(v).String()
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"01-02-2006",
	"1-2-2006",
	"01/02/06",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
}

func parseFlexibleDate(value any) (time.Time, bool) {
	if t, ok := value.(time.Time); ok {
		return t, true
	}
	raw := stringValue(value)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}
