package reconcile

import "github.com/shopspring/decimal"

// Summarize recomputes the derived counts shown on the review screen. It must
// be called whenever parsed.rows changes. overrides comes from
// ResolveColumnMap and may be nil.
func Summarize(rows []Row, overrides map[string]string) Summary {
	qty := decimal.Zero
	revenue := decimal.Zero
	trucks := map[string]struct{}{}
	drivers := map[string]struct{}{}

	for _, row := range rows {
		r := newFieldResolver(row, overrides)
		if _, v, ok := r.get(FieldQty); ok {
			if d, ok := parseDecimal(v); ok {
				qty = qty.Add(d)
			}
		}
		if _, v, ok := r.get(FieldAmount); ok {
			if d, ok := parseDecimal(v); ok {
				revenue = revenue.Add(d)
			}
		}
		if _, v, ok := r.get(FieldTruck); ok {
			trucks[stringValue(v)] = struct{}{}
		}
		if _, v, ok := r.get(FieldDriver); ok {
			drivers[stringValue(v)] = struct{}{}
		}
	}

	return Summary{
		RowCount:     len(rows),
		TotalQty:     qty.InexactFloat64(),
		TotalRevenue: revenue.Round(2).InexactFloat64(),
		TruckCount:   len(trucks),
		DriverCount:  len(drivers),
	}
}
