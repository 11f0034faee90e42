// Package classification относит пути локаций к этапам строительства и
// раскладывает количества по башням на категории работ.
package classification

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"progressreport/normalization"
	"progressreport/reconciliation"
	"progressreport/rules"
)

// CategorizationInput количества по башням и исходным названиям работ
type CategorizationInput struct {
	Source rules.Source         `json:"source,omitempty"`
	Towers []string             `json:"towers"`
	Counts reconciliation.Tally `json:"counts"`
}

// ActivityCount количество по виду работ
type ActivityCount struct {
	Activity string `json:"activity"`
	Count    int    `json:"count"`
}

// CategoryGroup виды работ одной категории
type CategoryGroup struct {
	Category   normalization.Category `json:"category"`
	Activities []ActivityCount        `json:"activities"`
}

// TowerCategorization раскладка одной башни по категориям
type TowerCategorization struct {
	Tower      string          `json:"tower"`
	Categories []CategoryGroup `json:"categories"`
}

// Categorization результат классификации: одинаковая форма для всех реализаций
type Categorization struct {
	Towers   []TowerCategorization `json:"towers"`
	Unmapped []string              `json:"unmapped,omitempty"`
}

// Classifier раскладывает количества по категориям работ
type Classifier interface {
	Name() string
	Categorize(ctx context.Context, in CategorizationInput) (*Categorization, error)
}

// Validate проверяет структуру результата: известные категории,
// неотрицательные количества и тот же набор башен, что во входных данных
func (c *Categorization) Validate(in CategorizationInput) error {
	if c == nil {
		return fmt.Errorf("%w: empty result", ErrInvalidCategorization)
	}

	want := make(map[string]bool, len(in.Towers))
	for _, t := range in.Towers {
		want[t] = true
	}
	seen := make(map[string]bool, len(c.Towers))
	for _, t := range c.Towers {
		if !want[t.Tower] {
			return fmt.Errorf("%w: unexpected tower %q", ErrInvalidCategorization, t.Tower)
		}
		if seen[t.Tower] {
			return fmt.Errorf("%w: tower %q repeated", ErrInvalidCategorization, t.Tower)
		}
		seen[t.Tower] = true

		for _, g := range t.Categories {
			if !normalization.IsKnownCategory(string(g.Category)) {
				return fmt.Errorf("%w: unknown category %q", ErrInvalidCategorization, g.Category)
			}
			for _, a := range g.Activities {
				if a.Activity == "" {
					return fmt.Errorf("%w: empty activity in %q", ErrInvalidCategorization, g.Category)
				}
				if a.Count < 0 {
					return fmt.Errorf("%w: negative count for %q", ErrInvalidCategorization, a.Activity)
				}
			}
		}
	}
	if len(seen) != len(want) {
		return fmt.Errorf("%w: expected %d towers, got %d", ErrInvalidCategorization, len(want), len(seen))
	}
	return nil
}

// RuleClassifier детерминированная классификация по нормализатору и справочнику.
// Не обращается к сети и не возвращает ошибок для корректных входных данных.
type RuleClassifier struct {
	normalizer *normalization.ActivityNormalizer
}

// NewRuleClassifier создает классификатор по правилам
func NewRuleClassifier(normalizer *normalization.ActivityNormalizer) *RuleClassifier {
	return &RuleClassifier{normalizer: normalizer}
}

// Name имя классификатора
func (c *RuleClassifier) Name() string {
	return "rules"
}

// Categorize раскладывает количества по категориям в порядке справочника
func (c *RuleClassifier) Categorize(ctx context.Context, in CategorizationInput) (*Categorization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	catalog := c.normalizer.Catalog()
	unmapped := make(map[string]bool)
	out := &Categorization{Towers: make([]TowerCategorization, 0, len(in.Towers))}

	for _, tower := range in.Towers {
		byCategory := make(map[normalization.Category]map[string]int)
		for label, n := range in.Counts[tower] {
			res := c.normalizer.Normalize(in.Source, label)
			if res.Excluded {
				continue
			}
			if !res.Mapped || res.Category == "" {
				unmapped[res.Canonical] = true
				continue
			}
			if byCategory[res.Category] == nil {
				byCategory[res.Category] = make(map[string]int)
			}
			byCategory[res.Category][res.Canonical] += n
		}

		tc := TowerCategorization{Tower: tower}
		for _, cat := range catalog.Categories() {
			counts, ok := byCategory[cat]
			if !ok {
				continue
			}
			group := CategoryGroup{Category: cat}
			for _, name := range catalog.Activities(cat) {
				if n, ok := counts[name]; ok {
					group.Activities = append(group.Activities, ActivityCount{Activity: name, Count: n})
					delete(counts, name)
				}
			}
			// Составляющие составных работ в справочник не входят
			rest := make([]string, 0, len(counts))
			for name := range counts {
				rest = append(rest, name)
			}
			sort.Strings(rest)
			for _, name := range rest {
				group.Activities = append(group.Activities, ActivityCount{Activity: name, Count: counts[name]})
			}
			tc.Categories = append(tc.Categories, group)
		}
		out.Towers = append(out.Towers, tc)
	}

	for label := range unmapped {
		out.Unmapped = append(out.Unmapped, label)
	}
	sort.Strings(out.Unmapped)
	return out, nil
}

// Chain пробует классификаторы по порядку и возвращает первый корректный результат.
// Последним ставится RuleClassifier, поэтому цепочка не отказывает на корректных данных.
type Chain struct {
	classifiers []Classifier
	logger      *slog.Logger
}

// NewChain создает цепочку классификаторов
func NewChain(classifiers ...Classifier) *Chain {
	return &Chain{
		classifiers: classifiers,
		logger:      slog.Default().With("component", "categorization_chain"),
	}
}

// Categorize возвращает результат и имя классификатора, который его получил
func (ch *Chain) Categorize(ctx context.Context, in CategorizationInput) (*Categorization, string, error) {
	if len(ch.classifiers) == 0 {
		return nil, "", ErrNoClassifiers
	}

	var lastErr error
	for _, c := range ch.classifiers {
		result, err := c.Categorize(ctx, in)
		if err == nil {
			err = result.Validate(in)
		}
		if err != nil {
			ch.logger.Warn("Classifier failed, trying next",
				"classifier", c.Name(),
				"error", err)
			lastErr = fmt.Errorf("%s: %w", c.Name(), err)
			continue
		}
		return result, c.Name(), nil
	}
	return nil, "", lastErr
}
