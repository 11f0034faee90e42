package tracker

import "errors"

var (
	// ErrNoTrackerData ни на одном листе трекера нет строк с нужными колонками
	ErrNoTrackerData = errors.New("tracker has no usable sheets")
	// ErrUnreadableDate дата окончания не распознана
	ErrUnreadableDate = errors.New("actual finish date is not recognized")
)
