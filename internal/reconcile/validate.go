package reconcile

func hasTicketOrTruck(r fieldResolver) bool {
	return r.has(FieldTicketNumber) || r.has(FieldTruck) || r.has(FieldDriver)
}

// hasAmount requires a positive amount, gallons or qty. Every present
// spelling counts, so a zero "qty" next to a positive "gallons" passes.
func hasAmount(r fieldResolver) bool {
	for _, field := range []TargetField{FieldAmount, FieldQty} {
		for _, value := range r.values(field) {
			if d, ok := parseDecimal(value); ok && d.IsPositive() {
				return true
			}
		}
	}
	return false
}

func acceptable(r fieldResolver) bool {
	return r.has(FieldDate) && hasTicketOrTruck(r) && hasAmount(r)
}

// IsRowAcceptable applies the minimal completeness rules for a delivery row:
// a date, something identifying the ticket (ticket, truck or driver) and a
// positive amount or quantity.
func IsRowAcceptable(row Row) bool {
	return acceptable(newFieldResolver(row, nil))
}

// PartitionDeliveryRows splits rows into those that may be mapped and those
// rejected by validation. overrides comes from ResolveColumnMap and may be
// nil. Input order is preserved on both sides.
func PartitionDeliveryRows(rows []IndexedRow, overrides map[string]string) (accepted []IndexedRow, rejected []FailedRow) {
	accepted = make([]IndexedRow, 0, len(rows))
	for _, r := range rows {
		if acceptable(newFieldResolver(r.Row, overrides)) {
			accepted = append(accepted, r)
			continue
		}
		rejected = append(rejected, FailedRow{Index: r.Index, Row: r.Row, Reason: ReasonValidationFailed})
	}
	return accepted, rejected
}
