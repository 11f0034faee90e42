package location

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// UnknownTower ключ башни для путей без сегмента башни
const UnknownTower = "Unknown"

// towerKeyPattern короткий ключ башни: "Tower 4(B)", "TOWER-05", "T5", "T4 B"
var towerKeyPattern = regexp.MustCompile(`(?i)\b(?:tower|t)\s*[-_]?\s*0*(\d+)\s*(?:\(\s*([ab])\s*\)|[-_ ]?([ab])\b)?`)

// moduleNumberPattern номер модуля в сегменте пути ("Module 2", "M-07")
var moduleNumberPattern = regexp.MustCompile(`\d+`)

// ModuleRange диапазон номеров модулей под-башни (границы включительно)
type ModuleRange struct {
	Suffix string
	Min    int
	Max    int
}

// SplitRule правило разделения составной башни по номеру модуля
type SplitRule struct {
	Tower       string
	ModuleIndex int
	Ranges      []ModuleRange
}

// TowerExtractor выделяет имя башни из пути локации
type TowerExtractor struct {
	split  *SplitRule
	logger *slog.Logger
}

// NewTowerExtractor создает экстрактор. split может быть nil.
func NewTowerExtractor(split *SplitRule) *TowerExtractor {
	return &TowerExtractor{
		split:  split,
		logger: slog.Default().With("component", "tower_extractor"),
	}
}

// TowerName возвращает имя башни (сегмент с индексом 1).
// Для составной башни добавляется суффикс под-башни: "Tower 4(B)".
func (e *TowerExtractor) TowerName(segments []string) string {
	if len(segments) < 2 {
		return UnknownTower
	}

	name := strings.TrimSpace(segments[1])
	if name == "" {
		return UnknownTower
	}

	split := e.split
	if split == nil || !strings.EqualFold(name, split.Tower) {
		return name
	}

	if split.ModuleIndex >= len(segments) {
		return name
	}

	module, err := parseModuleNumber(segments[split.ModuleIndex])
	if err != nil {
		e.logger.Debug("Module segment is not a number, keeping tower name",
			"tower", name,
			"segment", segments[split.ModuleIndex])
		return name
	}

	for _, r := range split.Ranges {
		if module >= r.Min && module <= r.Max {
			return fmt.Sprintf("%s(%s)", name, r.Suffix)
		}
	}

	e.logger.Warn("Module number outside of configured ranges",
		"tower", name,
		"module", module)
	return name
}

// CanonicalKey возвращает короткий ключ башни вида T<n> с суффиксом A/B.
// Используется для сопоставления башен двух источников с разным написанием.
func CanonicalKey(name string) string {
	m := towerKeyPattern.FindStringSubmatch(name)
	if m == nil {
		return strings.TrimSpace(name)
	}

	suffix := m[2]
	if suffix == "" {
		suffix = m[3]
	}
	return "T" + m[1] + strings.ToUpper(suffix)
}

// BaseKey возвращает ключ башни без суффикса под-башни
func BaseKey(name string) string {
	m := towerKeyPattern.FindStringSubmatch(name)
	if m == nil {
		return strings.TrimSpace(name)
	}
	return "T" + m[1]
}

// parseModuleNumber извлекает номер модуля из сегмента пути
func parseModuleNumber(segment string) (int, error) {
	digits := moduleNumberPattern.FindString(segment)
	if digits == "" {
		return 0, fmt.Errorf("no module number in %q", segment)
	}
	return strconv.Atoi(digits)
}
