package reconcile

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is a canonical payload keyed by real column names of the target
// table. The mapper only ever emits names taken from the Schema snapshot.
type Record map[string]any

// MapResult is either Mapped(record) or Unmappable.
type MapResult struct {
	record Record
}

func Mapped(r Record) MapResult { return MapResult{record: r} }

func Unmappable() MapResult { return MapResult{} }

func (m MapResult) Record() (Record, bool) {
	return m.record, m.record != nil
}

// ResolveColumnMap turns a reviewer's columnMap into target field -> source
// key. Keys may be source field names or indexes into headers; entries that
// resolve to nothing are ignored. When several sources name the same target,
// the lexically smallest source key wins.
func ResolveColumnMap(columnMap map[string]string, headers []string) map[string]string {
	keys := make([]string, 0, len(columnMap))
	for k := range columnMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	resolved := make(map[string]string, len(columnMap))
	for _, key := range keys {
		source := strings.TrimSpace(key)
		target := strings.TrimSpace(columnMap[key])
		if source == "" || target == "" {
			continue
		}
		if idx, err := strconv.Atoi(source); err == nil {
			if idx < 0 || idx >= len(headers) {
				continue
			}
			source = headers[idx]
		}
		if _, taken := resolved[normalizeKey(target)]; taken {
			continue
		}
		resolved[normalizeKey(target)] = source
	}
	return resolved
}

type Mapper struct {
	schema    Schema
	importID  int64
	now       time.Time
	overrides map[string]string
}

func NewMapper(schema Schema, importID int64, now time.Time, overrides map[string]string) *Mapper {
	if overrides == nil {
		overrides = map[string]string{}
	}
	return &Mapper{schema: schema, importID: importID, now: now, overrides: overrides}
}

func (m *Mapper) valueFor(field TargetField, r fieldResolver) (any, bool) {
	_, value, ok := r.get(field)
	return value, ok
}

// MapDelivery maps a validated delivery row onto the introspected schema.
// Target fields without a matching column are skipped. If the table has a
// meta column, provenance is always attached.
func (m *Mapper) MapDelivery(rowIndex int, row Row) MapResult {
	r := newFieldResolver(row, m.overrides)
	rec := Record{}
	unparsed := map[string]any{}

	for _, field := range DeliveryFields {
		col, ok := m.schema.Lookup(field.Name)
		if !ok || normalizeKey(col.Name) == MetaColumn {
			continue
		}
		value, ok := m.valueFor(field, r)
		if !ok {
			continue
		}
		coerced, ok := coerce(col, value)
		if !ok {
			unparsed[col.Name] = value
			continue
		}
		rec[col.Name] = coerced
	}

	if col, ok := m.schema.Lookup(MetaColumn); ok {
		rec[col.Name] = m.provenance(rowIndex, r, unparsed)
	}
	if len(rec) == 0 {
		return Unmappable()
	}
	return Mapped(rec)
}

// MapService builds the fixed service-job shape. Every field has a default,
// so a service row is never rejected here; columns the table lacks are left out.
func (m *Mapper) MapService(rowIndex int, row Row) MapResult {
	r := newFieldResolver(row, m.overrides)
	str := func(field TargetField) string {
		value, ok := m.valueFor(field, r)
		if !ok {
			return ""
		}
		return stringValue(value)
	}

	amount := decimal.NewFromInt(DefaultServiceAmount)
	if value, ok := m.valueFor(FieldJobAmount, r); ok {
		if d, ok := parseDecimal(value); ok {
			amount = d
		}
	}

	status := strings.ToLower(str(FieldJobStatus))
	if status == "" {
		status = DefaultServiceStatus
	}

	jobDate := DefaultJobDate(m.now)
	if value, ok := m.valueFor(FieldJobDate, r); ok {
		if t, ok := parseFlexibleDate(value); ok {
			jobDate = t.Format("2006-01-02")
		}
	}

	fixed := []struct {
		column string
		value  any
	}{
		{"job_number", str(FieldJobNumber)},
		{"customer_name", str(FieldCustomerName)},
		{"address", str(FieldAddress)},
		{"description", str(FieldDescription)},
		{"technician", str(FieldTechnician)},
		{"amount", amount},
		{"status", status},
		{"job_date", jobDate},
		{MetaColumn, m.provenance(rowIndex, r, nil)},
	}

	rec := Record{}
	for _, f := range fixed {
		col, ok := m.schema.Lookup(f.column)
		if !ok {
			continue
		}
		rec[col.Name] = f.value
	}
	if len(rec) == 0 {
		return Unmappable()
	}
	return Mapped(rec)
}

func (m *Mapper) provenance(rowIndex int, r fieldResolver, unparsed map[string]any) map[string]any {
	meta := map[string]any{
		"importId":   m.importID,
		"importedAt": m.now.UTC().Format(time.RFC3339),
		"rowIndex":   rowIndex,
		"page":       nil,
		"y":          nil,
	}
	if _, v, ok := lookup(r.row, r.index, provenancePage); ok {
		meta["page"] = v
	}
	if _, v, ok := lookup(r.row, r.index, provenanceY); ok {
		meta["y"] = v
	}
	if _, v, ok := lookup(r.row, r.index, provenanceColumns); ok {
		meta["source"] = v
	}
	if len(unparsed) > 0 {
		meta["unparsed"] = unparsed
	}
	return meta
}

// coerce converts a source value to what the column's type accepts. A false
// result means the value cannot be stored in that column.
func coerce(col Column, value any) (any, bool) {
	switch kindOf(col.DataType) {
	case columnNumeric:
		d, ok := parseDecimal(value)
		return d, ok
	case columnInteger:
		d, ok := parseDecimal(value)
		if !ok {
			return nil, false
		}
		return d.Round(0).IntPart(), true
	case columnDate:
		t, ok := parseFlexibleDate(value)
		if !ok {
			return nil, false
		}
		return t, true
	case columnJSON:
		return value, true
	}
	return stringValue(value), true
}
