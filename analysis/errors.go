package analysis

import "errors"

var (
	// ErrNoQAData для прогона не передан снимок QA-системы
	ErrNoQAData = errors.New("qa snapshot is missing")
	// ErrNoTrackerData для прогона не передано ни одной строки трекера
	ErrNoTrackerData = errors.New("tracker records are missing")
)
