package classification

import "errors"

var (
	// ErrInvalidCategorization ответ классификатора не прошел структурную проверку
	ErrInvalidCategorization = errors.New("categorization is structurally invalid")
	// ErrNoClassifiers цепочка не содержит ни одного классификатора
	ErrNoClassifiers = errors.New("no classifiers configured")
	// ErrRemoteUnavailable удаленный классификатор не ответил после всех попыток
	ErrRemoteUnavailable = errors.New("remote categorizer is unavailable")
)
