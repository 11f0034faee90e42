package dataset

import (
	"errors"
	"fmt"
)

// ErrMissingColumn обязательная колонка отсутствует в наборе данных
var ErrMissingColumn = errors.New("required column is missing")

// MissingColumnError описывает отсутствующую колонку конкретной таблицы.
// Прерывает весь прогон анализа, пользователю предлагается перезагрузить данные.
type MissingColumnError struct {
	Table  string
	Column string
}

// Error реализует интерфейс error
func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("table %q: required column %q is missing", e.Table, e.Column)
}

// Unwrap позволяет сравнивать через errors.Is(err, ErrMissingColumn)
func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}
