// Package tracker адаптер таблицы-трекера: фактические даты окончания работ по башням.
package tracker

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"progressreport/dataset"
	"progressreport/location"
	"progressreport/normalization"
	"progressreport/reconciliation"
	"progressreport/rules"
)

// Колонки листа трекера
const (
	ColumnActivityName = "Activity Name"
	ColumnActualFinish = "Actual Finish"
)

// Record выполненная работа трекера
type Record struct {
	Tower        string    `json:"tower"`
	ActivityName string    `json:"activity_name"`
	ActualFinish time.Time `json:"actual_finish"`
}

// dateLayouts форматы дат, встречающиеся в трекерах
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"2-Jan-2006",
	"02-Jan-2006",
	"2-Jan-06",
	"02-Jan-06",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseFinishDate разбирает дату окончания: текстовые форматы и серийные номера Excel
func ParseFinishDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrUnreadableDate
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		// Разумный диапазон серийных дат Excel: 1950-2149
		if serial < 18264 || serial > 91311 {
			return time.Time{}, fmt.Errorf("%w: serial %s out of range", ErrUnreadableDate, value)
		}
		return excelize.ExcelDateToTime(serial, false)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnreadableDate, value)
}

// FromTable отбирает строки листа башни с распознанной датой окончания.
// Отсутствие обязательной колонки возвращает *dataset.MissingColumnError.
func FromTable(tower string, t *dataset.Table) ([]Record, error) {
	if err := t.RequireColumns(ColumnActivityName, ColumnActualFinish); err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "tracker")
	records := make([]Record, 0, t.Len())
	skipped := 0
	for _, row := range t.Rows {
		name := t.Value(row, ColumnActivityName)
		if name == "" {
			continue
		}
		finish, err := ParseFinishDate(t.Value(row, ColumnActualFinish))
		if err != nil {
			skipped++
			continue
		}
		records = append(records, Record{Tower: tower, ActivityName: name, ActualFinish: finish})
	}

	logger.Debug("Tracker sheet parsed",
		"tower", tower,
		"rows", t.Len(),
		"completed", len(records),
		"without_finish", skipped)
	return records, nil
}

// CountCompleted группирует выполненные работы по канонической башне и исходному названию
func CountCompleted(records []Record) reconciliation.Tally {
	return reconciliation.Fold(records, reconciliation.Tally{}, func(acc reconciliation.Tally, r Record) reconciliation.Tally {
		tower := location.CanonicalKey(r.Tower)
		counts, ok := acc[tower]
		if !ok {
			counts = normalization.Counts{}
			acc[tower] = counts
		}
		counts[normalization.CleanLabel(r.ActivityName)]++
		return acc
	})
}

// CompletedCounts количества трекера после нормализации и составных правил
type CompletedCounts struct {
	Completed reconciliation.Tally
	Unmapped  map[string]int
	Results   map[string]normalization.Result
	Excluded  int
}

// NormalizeCounts переводит исходные названия в канонические, суммирует совпавшие
// и применяет составные правила к каждой башне
func NormalizeCounts(raw reconciliation.Tally, normalizer *normalization.ActivityNormalizer, composites *normalization.CompositeRules) *CompletedCounts {
	out := &CompletedCounts{
		Completed: make(reconciliation.Tally, len(raw)),
		Unmapped:  make(map[string]int),
		Results:   make(map[string]normalization.Result),
	}

	for tower, counts := range raw {
		normalized := normalization.Counts{}
		for label, n := range counts {
			res, ok := out.Results[label]
			if !ok {
				res = normalizer.Normalize(rules.SourceTracker, label)
				out.Results[label] = res
			}
			switch {
			case res.Excluded:
				out.Excluded += n
			case !res.Mapped || res.Category == "":
				out.Unmapped[res.Canonical] += n
			default:
				normalized[res.Canonical] += n
			}
		}
		out.Completed[tower] = composites.Apply(normalized)
	}
	return out
}
