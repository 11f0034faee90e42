package database

import "errors"

var (
	// ErrRunNotFound прогон анализа отсутствует в хранилище
	ErrRunNotFound = errors.New("analysis run not found")

	// ErrNilResult попытка сохранить пустой результат
	ErrNilResult = errors.New("analysis result is nil")
)
