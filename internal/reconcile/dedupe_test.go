package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeServiceRowsLastWins(t *testing.T) {
	rows := []IndexedRow{
		{Index: 0, Row: Row{"job_number": "J-100", "amount": 200}},
		{Index: 1, Row: Row{"job_number": "J-200", "amount": 90}},
		{Index: 2, Row: Row{"job_number": " J-100 ", "amount": 350}},
	}

	kept, dropped := DedupeServiceRows(rows, nil)

	require.Len(t, kept, 2)
	assert.Equal(t, 1, kept[0].Index)
	assert.Equal(t, 2, kept[1].Index)
	assert.Equal(t, 350, kept[1].Row["amount"])

	require.Len(t, dropped, 1)
	assert.Equal(t, 0, dropped[0].Index)
	assert.Equal(t, ReasonSupersededJob, dropped[0].Reason)
}

func TestDedupeServiceRowsDropsMissingJobNumber(t *testing.T) {
	rows := []IndexedRow{
		{Index: 0, Row: Row{"description": "no number"}},
		{Index: 1, Row: Row{"job_number": "", "amount": 10}},
		{Index: 2, Row: Row{"Job #": "x", "wo": "WO-7"}},
	}

	kept, dropped := DedupeServiceRows(rows, nil)

	require.Len(t, kept, 1)
	assert.Equal(t, 2, kept[0].Index)
	require.Len(t, dropped, 2)
	for _, d := range dropped {
		assert.Equal(t, ReasonMissingJobNumber, d.Reason)
	}
	assert.Equal(t, len(rows), len(kept)+len(dropped))
}
