package reconcile

import "sort"

const (
	serviceDefaultConfidence = 0.5
	overrideConfidence       = 1.0
)

// Classify decides whether an import holds delivery or service data. An
// explicit meta.importType always wins. Otherwise any row with a non-empty
// quantity field makes it a delivery import; everything else, including an
// import with no rows, defaults to service. The reviewer's columnMap is
// honoured when looking for the quantity field.
func Classify(rec ImportRecord) Detection {
	if kind, ok := ParseTargetKind(string(rec.Meta.ImportType)); ok {
		return Detection{Type: kind, Confidence: overrideConfidence, Hits: []string{}}
	}
	return detectFromRows(rec.Parsed.Rows, ResolveColumnMap(rec.Parsed.ColumnMap, rec.Parsed.Headers))
}

func detectFromRows(rows []Row, overrides map[string]string) Detection {
	if len(rows) == 0 {
		return Detection{Type: KindService, Confidence: 0, Hits: []string{}}
	}

	matchedRows := 0
	seen := map[string]struct{}{}
	for _, row := range rows {
		key, _, ok := newFieldResolver(row, overrides).get(FieldQty)
		if !ok {
			continue
		}
		matchedRows++
		seen[key] = struct{}{}
	}

	hits := make([]string, 0, len(seen))
	for key := range seen {
		hits = append(hits, key)
	}
	sort.Strings(hits)

	if matchedRows == 0 {
		return Detection{Type: KindService, Confidence: serviceDefaultConfidence, Hits: hits}
	}
	return Detection{
		Type:       KindDelivery,
		Confidence: float64(matchedRows) / float64(len(rows)),
		Hits:       hits,
	}
}
