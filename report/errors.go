package report

import "errors"

// ErrUnsupportedFormat формат экспорта не поддерживается
var ErrUnsupportedFormat = errors.New("unsupported export format")
