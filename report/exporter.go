// Package report выгружает результат анализа в Excel, CSV и JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"progressreport/analysis"
)

// Format формат экспорта
type Format string

const (
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatExcel Format = "xlsx"
)

// Листы книги отчета
const (
	SheetPending  = "Pending Checklists"
	SheetTotals   = "Tower Totals"
	SheetUnmapped = "Unmapped"
)

var (
	pendingHeaders = []string{
		"Tower", "Category", "Activity", "Completed", "In Progress", "Closed Checklists", "Open/Missing",
	}
	totalsHeaders = []string{
		"Tower", "Category", "Completed", "Closed Checklists", "Open/Missing",
	}
	unmappedHeaders = []string{
		"Source", "Label", "Count", "Suggestion",
	}
)

// ParseFormat разбирает название формата. Пустая строка означает Excel.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xlsx", "excel":
		return FormatExcel, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType MIME-тип формата
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// FileName имя файла отчета для прогона
func (f Format) FileName(runID string) string {
	return fmt.Sprintf("pending_checklists_%s.%s", runID, string(f))
}

// Exporter экспортер результатов анализа
type Exporter struct {
	logger *slog.Logger
}

// NewExporter создает новый экспортер
func NewExporter() *Exporter {
	return &Exporter{logger: slog.Default().With("component", "report_exporter")}
}

// Export пишет результат в w в заданном формате
func (e *Exporter) Export(w io.Writer, format Format, r *analysis.Result) error {
	var err error
	switch format {
	case FormatJSON:
		err = e.ExportToJSON(w, r)
	case FormatCSV:
		err = e.ExportToCSV(w, r)
	case FormatExcel:
		err = e.ExportToExcel(w, r)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return err
	}

	e.logger.Debug("Report exported", "run_id", r.RunID, "format", format, "rows", len(r.Rows))
	return nil
}

// ExportFile пишет результат в файл, формат определяется расширением
func (e *Exporter) ExportFile(filename string, r *analysis.Result) error {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		return fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, filename)
	}
	format, err := ParseFormat(ext)
	if err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := e.Export(file, format, r); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// ExportToJSON экспортирует результат в JSON
func (e *Exporter) ExportToJSON(w io.Writer, r *analysis.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	doc := struct {
		ExportedAt string           `json:"exported_at"`
		Result     *analysis.Result `json:"result"`
	}{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Result:     r,
	}
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportToCSV экспортирует строки сверки в CSV
func (e *Exporter) ExportToCSV(w io.Writer, r *analysis.Result) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(pendingHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for _, values := range pendingRecords(r) {
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = fmt.Sprint(v)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// ExportToExcel экспортирует результат в книгу из трех листов
func (e *Exporter) ExportToExcel(w io.Writer, r *analysis.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sheets := []struct {
		name    string
		headers []string
		rows    [][]any
	}{
		{SheetPending, pendingHeaders, pendingRecords(r)},
		{SheetTotals, totalsHeaders, totalsRecords(r)},
		{SheetUnmapped, unmappedHeaders, unmappedRecords(r)},
	}

	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s.name, s.headers, s.rows, headerStyle); err != nil {
			return err
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(SheetPending)
	if err != nil {
		return fmt.Errorf("failed to locate sheet %s: %w", SheetPending, err)
	}
	f.SetActiveSheet(index)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any, headerStyle int) error {
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header %s: %w", header, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style headers of %s: %w", sheet, err)
	}

	for rowIdx, values := range rows {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", rowIdx+2, sheet, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("failed to set column width of %s: %w", sheet, err)
	}
	return nil
}

func pendingRecords(r *analysis.Result) [][]any {
	out := make([][]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, []any{
			row.TowerKey,
			string(row.Category),
			row.Activity,
			row.CompletedCount,
			row.InProgressCount,
			row.ClosedChecklistCount,
			row.OpenMissingCount,
		})
	}
	return out
}

func totalsRecords(r *analysis.Result) [][]any {
	out := make([][]any, 0, len(r.TowerTotals))
	for _, t := range r.TowerTotals {
		out = append(out, []any{
			t.TowerKey,
			string(t.Category),
			t.CompletedCount,
			t.ClosedChecklistCount,
			t.OpenMissingCount,
		})
	}
	return out
}

func unmappedRecords(r *analysis.Result) [][]any {
	out := make([][]any, 0, len(r.Unmapped))
	for _, u := range r.Unmapped {
		out = append(out, []any{string(u.Source), u.Label, u.Count, u.Suggestion})
	}
	return out
}
