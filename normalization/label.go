package normalization

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// CleanLabel приводит название работы к единому виду без изменения регистра:
// NFKC, обычные дефисы и кавычки, одиночные пробелы.
func CleanLabel(label string) string {
	label = norm.NFKC.String(label)
	label = normalizeHyphens(label)
	label = normalizeQuotes(label)
	return strings.Join(strings.Fields(label), " ")
}

// LabelKey ключ для сравнения названий без учета регистра.
// Caser хранит состояние, поэтому создается на каждый вызов.
func LabelKey(label string) string {
	return cases.Fold().String(CleanLabel(label))
}

// normalizeHyphens заменяет длинные тире и минус на обычный дефис
func normalizeHyphens(text string) string {
	return strings.NewReplacer("—", "-", "–", "-", "−", "-", "‐", "-").Replace(text)
}

// normalizeQuotes заменяет типографские кавычки на обычные
func normalizeQuotes(text string) string {
	return strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'").Replace(text)
}
