// Package dataset описывает табличные наборы записей, которые внешние слои
// (выгрузка из QA-системы, разбор трекера) передают в ядро сверки.
package dataset

import (
	"strings"
)

// Table табличный набор записей с именованными колонками
type Table struct {
	Name    string
	Columns []string
	Rows    []map[string]string
}

// NewTable создает таблицу с заданными колонками
func NewTable(name string, columns ...string) *Table {
	return &Table{
		Name:    name,
		Columns: columns,
	}
}

// FromRecords строит таблицу из произвольных записей (например, из JSON выгрузки).
// Колонки собираются как объединение ключей всех записей в порядке первого появления.
func FromRecords(name string, records []map[string]any) *Table {
	t := &Table{Name: name, Rows: make([]map[string]string, 0, len(records))}
	seen := make(map[string]bool)

	for _, rec := range records {
		row := make(map[string]string, len(rec))
		for key, value := range rec {
			if !seen[key] {
				seen[key] = true
				t.Columns = append(t.Columns, key)
			}
			row[key] = stringify(value)
		}
		t.Rows = append(t.Rows, row)
	}

	return t
}

// Append добавляет строку, значения сопоставляются колонкам по порядку
func (t *Table) Append(values ...string) {
	row := make(map[string]string, len(t.Columns))
	for i, col := range t.Columns {
		if i < len(values) {
			row[col] = values[i]
		}
	}
	t.Rows = append(t.Rows, row)
}

// Len возвращает количество строк
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn проверяет наличие колонки (без учета регистра и пробелов по краям)
func (t *Table) HasColumn(column string) bool {
	_, ok := t.resolveColumn(column)
	return ok
}

// RequireColumns проверяет наличие всех обязательных колонок.
// Возвращает *MissingColumnError для первой отсутствующей колонки.
func (t *Table) RequireColumns(columns ...string) error {
	name := "<nil>"
	if t != nil {
		name = t.Name
	}
	for _, col := range columns {
		if t == nil {
			return &MissingColumnError{Table: name, Column: col}
		}
		if _, ok := t.resolveColumn(col); !ok {
			return &MissingColumnError{Table: name, Column: col}
		}
	}
	return nil
}

// Value возвращает значение колонки в строке с обрезанными пробелами
func (t *Table) Value(row map[string]string, column string) string {
	key, ok := t.resolveColumn(column)
	if !ok {
		return ""
	}
	return strings.TrimSpace(row[key])
}

// resolveColumn находит фактическое имя колонки
func (t *Table) resolveColumn(column string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(column))
	for _, col := range t.Columns {
		if strings.ToLower(strings.TrimSpace(col)) == want {
			return col, true
		}
	}
	return "", false
}
