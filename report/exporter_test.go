package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"progressreport/analysis"
	"progressreport/normalization"
	"progressreport/reconciliation"
	"progressreport/rules"
)

func sampleResult() *analysis.Result {
	rows := []reconciliation.Row{
		{TowerKey: "T5", Category: normalization.CivilWorks, Activity: "Concreting", CompletedCount: 7, ClosedChecklistCount: 3, OpenMissingCount: 4},
		{TowerKey: "T5", Category: normalization.MEPWorks, Activity: "Wall Conduting", CompletedCount: 3, ClosedChecklistCount: 1, OpenMissingCount: 2},
	}
	return &analysis.Result{
		RunID:       "run-1",
		Variant:     "standard",
		Towers:      []string{"T5"},
		Rows:        rows,
		TowerTotals: reconciliation.Totals(rows),
		Unmapped: []analysis.UnmappedLabel{
			{Source: rules.SourceTracker, Label: "Floor Tiles", Count: 2, Suggestion: "Floor Tiling"},
		},
		Anomalies: []reconciliation.Anomaly{},
		CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatExcel, false},
		{"XLSX", FormatExcel, false},
		{"excel", FormatExcel, false},
		{"csv", FormatCSV, false},
		{" json ", FormatJSON, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, "pending_checklists_run-1.xlsx", FormatExcel.FileName("run-1"))
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
	assert.Equal(t, "application/json", FormatJSON.ContentType())
}

func TestExportToCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter().Export(&buf, FormatCSV, sampleResult()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, pendingHeaders, records[0])
	assert.Equal(t, []string{"T5", "Civil Works", "Concreting", "7", "0", "3", "4"}, records[1])
}

func TestExportToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter().Export(&buf, FormatJSON, sampleResult()))

	var doc struct {
		ExportedAt string          `json:"exported_at"`
		Result     analysis.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.NotEmpty(t, doc.ExportedAt)
	assert.Equal(t, "run-1", doc.Result.RunID)
	assert.Len(t, doc.Result.Rows, 2)
}

func TestExportToExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter().Export(&buf, FormatExcel, sampleResult()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetPending, SheetTotals, SheetUnmapped}, f.GetSheetList())

	rows, err := f.GetRows(SheetPending)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, pendingHeaders, rows[0])
	assert.Equal(t, []string{"T5", "MEP Works", "Wall Conduting", "3", "0", "1", "2"}, rows[2])

	totals, err := f.GetRows(SheetTotals)
	require.NoError(t, err)
	assert.Len(t, totals, 3)

	unmapped, err := f.GetRows(SheetUnmapped)
	require.NoError(t, err)
	require.Len(t, unmapped, 2)
	assert.Equal(t, []string{"tracker", "Floor Tiles", "2", "Floor Tiling"}, unmapped[1])
}

func TestExportFile(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter()

	path := filepath.Join(dir, "report.csv")
	require.NoError(t, e.ExportFile(path, sampleResult()))

	assert.ErrorIs(t, e.ExportFile(filepath.Join(dir, "report.pdf"), sampleResult()), ErrUnsupportedFormat)
	assert.ErrorIs(t, e.ExportFile(filepath.Join(dir, "report"), sampleResult()), ErrUnsupportedFormat)
}

func TestExportUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, NewExporter().Export(&buf, Format("pdf"), sampleResult()), ErrUnsupportedFormat)
}
