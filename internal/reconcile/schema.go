package reconcile

import "strings"

// Column is one introspected column of a target table.
type Column struct {
	Name     string `json:"column_name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"is_nullable"`
}

type columnKind int

const (
	columnText columnKind = iota
	columnNumeric
	columnInteger
	columnDate
	columnJSON
)

func kindOf(dataType string) columnKind {
	dt := strings.ToLower(strings.TrimSpace(dataType))
	switch {
	case strings.HasPrefix(dt, "json"):
		return columnJSON
	case strings.HasPrefix(dt, "date"), strings.HasPrefix(dt, "timestamp"):
		return columnDate
	case dt == "integer", dt == "bigint", dt == "smallint", strings.HasPrefix(dt, "int"), strings.HasSuffix(dt, "serial"):
		if dt == "interval" {
			return columnText
		}
		return columnInteger
	case strings.HasPrefix(dt, "numeric"), strings.HasPrefix(dt, "decimal"),
		strings.HasPrefix(dt, "real"), strings.HasPrefix(dt, "double"), strings.HasPrefix(dt, "money"):
		return columnNumeric
	}
	return columnText
}

// IsJSON reports whether values for the column must be sent as encoded JSON.
func (c Column) IsJSON() bool { return kindOf(c.DataType) == columnJSON }

// Schema is an immutable snapshot of a target table's columns, fetched once
// per accept call. It is the only source of column names the mapper may emit.
type Schema struct {
	table   string
	columns []Column
	byKey   map[string]int
}

func NewSchema(table string, columns []Column) Schema {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	byKey := make(map[string]int, len(cols))
	for i, col := range cols {
		norm := normalizeKey(col.Name)
		if _, ok := byKey[norm]; !ok {
			byKey[norm] = i
		}
	}
	return Schema{table: table, columns: cols, byKey: byKey}
}

func (s Schema) Table() string { return s.table }

func (s Schema) Len() int { return len(s.columns) }

func (s Schema) Columns() []Column {
	cols := make([]Column, len(s.columns))
	copy(cols, s.columns)
	return cols
}

// Lookup resolves a target field name to the table's column, ignoring case
// and separators. The returned column carries the schema's own spelling.
func (s Schema) Lookup(field string) (Column, bool) {
	i, ok := s.byKey[normalizeKey(field)]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

// Has reports whether name is exactly one of the table's column names.
func (s Schema) Has(name string) bool {
	for _, col := range s.columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

func (s Schema) Names() []string {
	names := make([]string, 0, len(s.columns))
	for _, col := range s.columns {
		names = append(names, col.Name)
	}
	return names
}
