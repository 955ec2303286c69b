package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaKeepsUnknownKeys(t *testing.T) {
	raw := `{"importType":"delivery","ocrEngine":"textract","pages":3}`

	var meta Meta
	require.NoError(t, json.Unmarshal([]byte(raw), &meta))
	assert.Equal(t, KindDelivery, meta.ImportType)
	assert.JSONEq(t, `"textract"`, string(meta.Extra["ocrEngine"]))

	meta.RejectReason = "blurry"
	out, err := json.Marshal(meta)
	require.NoError(t, err)
	assert.JSONEq(t, `{"importType":"delivery","ocrEngine":"textract","pages":3,"rejectReason":"blurry"}`, string(out))
}

func TestAttachedFileAcceptsLegacyShapes(t *testing.T) {
	var files []AttachedFile
	require.NoError(t, json.Unmarshal([]byte(`["scans/a.pdf",{"key":"scans/b.pdf","name":"b.pdf"},{"path":"scans/c.png"}]`), &files))

	require.Len(t, files, 3)
	assert.Equal(t, AttachedFile{Path: "scans/a.pdf"}, files[0])
	assert.Equal(t, AttachedFile{Path: "scans/b.pdf", Name: "b.pdf"}, files[1])
	assert.Equal(t, "scans/c.png", files[2].Path)
}

func TestSummarize(t *testing.T) {
	got := Summarize([]Row{
		{"truck": "T-1", "driver": "Al", "gallons": "1,200", "total": "$3,000.005"},
		{"truck": "T-1", "driver": "Bo", "qty": 50.5, "amount": 99.99},
		{"notes": "blank"},
	}, nil)

	assert.Equal(t, 3, got.RowCount)
	assert.InDelta(t, 1250.5, got.TotalQty, 0.0001)
	assert.InDelta(t, 3100.0, got.TotalRevenue, 0.0001)
	assert.Equal(t, 1, got.TruckCount)
	assert.Equal(t, 2, got.DriverCount)
}

func TestSummarizeHonoursColumnMap(t *testing.T) {
	got := Summarize([]Row{
		{"Rig": "T-1", "Gal Out": "200"},
		{"Rig": "T-2", "Gal Out": "300"},
	}, ResolveColumnMap(map[string]string{"Rig": "truck", "Gal Out": "qty"}, nil))

	assert.InDelta(t, 500.0, got.TotalQty, 0.0001)
	assert.Equal(t, 2, got.TruckCount)
}
