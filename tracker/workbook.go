package tracker

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"progressreport/dataset"
)

// headerSearchRows сколько верхних строк листа просматривается в поисках заголовка
const headerSearchRows = 10

// LoadWorkbook читает трекер из файла Excel: один лист на башню
func LoadWorkbook(path string) ([]Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracker workbook: %w", err)
	}
	defer f.Close()

	return readWorkbook(f)
}

// ReadWorkbook читает трекер из потока (например, загруженного файла)
func ReadWorkbook(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracker workbook: %w", err)
	}
	defer f.Close()

	return readWorkbook(f)
}

func readWorkbook(f *excelize.File) ([]Record, error) {
	logger := slog.Default().With("component", "tracker")

	var (
		records []Record
		usable  int
	)
	for _, sheet := range f.GetSheetList() {
		// Серийные номера дат нужны без форматирования ячеек
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}

		table, ok := tableFromRows(sheet, rows)
		if !ok {
			logger.Debug("Sheet without tracker header skipped", "sheet", sheet)
			continue
		}

		sheetRecords, err := FromTable(strings.TrimSpace(sheet), table)
		if err != nil {
			return nil, err
		}
		usable++
		records = append(records, sheetRecords...)
	}

	if usable == 0 {
		return nil, ErrNoTrackerData
	}

	logger.Info("Tracker workbook loaded", "sheets", usable, "completed", len(records))
	return records, nil
}

// tableFromRows находит строку заголовка и собирает таблицу из строк под ней
func tableFromRows(name string, rows [][]string) (*dataset.Table, bool) {
	header := -1
	for i := 0; i < len(rows) && i < headerSearchRows; i++ {
		if hasColumns(rows[i], ColumnActivityName, ColumnActualFinish) {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, false
	}

	columns := make([]string, len(rows[header]))
	for i, c := range rows[header] {
		columns[i] = strings.TrimSpace(c)
	}

	table := dataset.NewTable(name, columns...)
	for _, row := range rows[header+1:] {
		table.Append(row...)
	}
	return table, true
}

func hasColumns(row []string, columns ...string) bool {
	for _, want := range columns {
		found := false
		for _, cell := range row {
			if strings.EqualFold(strings.TrimSpace(cell), want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// LoadCSV читает выгрузку листа трекера одной башни в CSV.
// Файлы не в UTF-8 считаются выгрузками Windows-1252.
func LoadCSV(path, tower string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracker csv: %w", err)
	}
	return ParseCSV(data, tower)
}

// ParseCSV разбирает CSV данные листа башни
func ParseCSV(data []byte, tower string) ([]Record, error) {
	var reader io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		reader = transform.NewReader(reader, charmap.Windows1252.NewDecoder())
	}

	r := csv.NewReader(reader)
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse tracker csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}

	table, ok := tableFromRows(tower, rows)
	if !ok {
		return nil, ErrNoTrackerData
	}
	return FromTable(tower, table)
}
