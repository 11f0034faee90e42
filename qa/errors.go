package qa

import "errors"

var (
	// ErrEmptySnapshot в выгрузке QA-системы нет ни одной локации
	ErrEmptySnapshot = errors.New("qa snapshot has no location nodes")
	// ErrSnapshotFile файл выгрузки отсутствует или поврежден
	ErrSnapshotFile = errors.New("qa snapshot file is unreadable")
)
