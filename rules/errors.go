package rules

import "errors"

var (
	// ErrUnknownVariant вариант проекта не описан в наборе правил
	ErrUnknownVariant = errors.New("unknown project variant")

	// ErrInvalidRuleSet набор правил не прошел проверку
	ErrInvalidRuleSet = errors.New("invalid rule set")
)
