package reconcile

import "sort"

// DedupLastWins names the duplicate policy for service job numbers: the
// later page is treated as authoritative.
const DedupLastWins = "last_wins"

// DedupeServiceRows collapses rows sharing a trimmed job number so that the
// last occurrence in input order wins. Rows without a job number cannot be
// addressed later and are dropped. Dropped and superseded rows are returned
// as failures so callers can still account for every input row. overrides
// comes from ResolveColumnMap and may be nil.
func DedupeServiceRows(rows []IndexedRow, overrides map[string]string) (kept []IndexedRow, dropped []FailedRow) {
	winners := make(map[string]IndexedRow, len(rows))
	for _, r := range rows {
		_, value, ok := newFieldResolver(r.Row, overrides).get(FieldJobNumber)
		jobNumber := stringValue(value)
		if !ok || jobNumber == "" {
			dropped = append(dropped, FailedRow{Index: r.Index, Row: r.Row, Reason: ReasonMissingJobNumber})
			continue
		}
		if prev, exists := winners[jobNumber]; exists {
			dropped = append(dropped, FailedRow{Index: prev.Index, Row: prev.Row, Reason: ReasonSupersededJob})
		}
		winners[jobNumber] = r
	}

	kept = make([]IndexedRow, 0, len(winners))
	for _, r := range winners {
		kept = append(kept, r)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Index < kept[j].Index })
	sort.Slice(dropped, func(i, j int) bool { return dropped[i].Index < dropped[j].Index })
	return kept, dropped
}
