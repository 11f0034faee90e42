package classification

import (
	"log/slog"
	"strings"
)

// Stage этап строительства с ключевыми словами включения и исключения
type Stage struct {
	Name    string   `json:"name"`
	Include []string `json:"include"`
	Exclude []string `json:"exclude,omitempty"`
}

// StageClassifier относит пути локаций к этапам строительства.
// Этапы проверяются независимо: путь может попасть в несколько этапов или ни в один.
type StageClassifier struct {
	stages []Stage
	index  map[string]int
	logger *slog.Logger
}

// NewStageClassifier создает классификатор этапов.
// Ключевые слова приводятся к нижнему регистру один раз.
func NewStageClassifier(stages []Stage) *StageClassifier {
	c := &StageClassifier{
		stages: make([]Stage, 0, len(stages)),
		index:  make(map[string]int, len(stages)),
		logger: slog.Default().With("component", "stage_classifier"),
	}

	for _, s := range stages {
		c.index[s.Name] = len(c.stages)
		c.stages = append(c.stages, Stage{
			Name:    s.Name,
			Include: lowerAll(s.Include),
			Exclude: lowerAll(s.Exclude),
		})
	}
	return c
}

// StageNames возвращает имена этапов в порядке конфигурации
func (c *StageClassifier) StageNames() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name
	}
	return names
}

// Matches проверяет принадлежность пути этапу.
// Неизвестный этап не совпадает ни с чем.
func (c *StageClassifier) Matches(path, stageName string) bool {
	i, ok := c.index[stageName]
	if !ok {
		return false
	}
	return matchStage(strings.ToLower(path), c.stages[i])
}

// Stages возвращает все этапы, которым соответствует путь
func (c *StageClassifier) Stages(path string) []string {
	lower := strings.ToLower(path)

	var matched []string
	for _, s := range c.stages {
		if matchStage(lower, s) {
			matched = append(matched, s.Name)
		}
	}

	if len(matched) > 1 {
		c.logger.Debug("Path matches several stages", "path", path, "stages", matched)
	}
	return matched
}

// matchStage: хотя бы одно слово включения и ни одного слова исключения.
// Исключение всегда сильнее включения.
func matchStage(lowerPath string, s Stage) bool {
	for _, kw := range s.Exclude {
		if kw != "" && strings.Contains(lowerPath, kw) {
			return false
		}
	}
	for _, kw := range s.Include {
		if kw != "" && strings.Contains(lowerPath, kw) {
			return true
		}
	}
	return false
}

// StructuralFilter пропускает только пути с конструктивным элементом
// (фундамент, плита, колонна, балка и т.п.)
type StructuralFilter struct {
	keywords []string
}

// NewStructuralFilter создает фильтр. Пустой список пропускает все пути.
func NewStructuralFilter(keywords []string) *StructuralFilter {
	return &StructuralFilter{keywords: lowerAll(keywords)}
}

// Accept проверяет наличие хотя бы одного ключевого слова в пути
func (f *StructuralFilter) Accept(path string) bool {
	if f == nil || len(f.keywords) == 0 {
		return true
	}
	lower := strings.ToLower(path)
	for _, kw := range f.keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
