package normalization

import (
	"progressreport/rules"
)

// Counts количество по каноническому виду работ одной башни
type Counts map[string]int

// Clone возвращает независимую копию
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// CompositeRules межисточниковые правила, применяемые после нормализации
// к количествам трекера одной башни.
type CompositeRules struct {
	composites   []rules.CompositeRule
	propagations []rules.PropagationRule
}

// NewCompositeRules создает набор составных правил
func NewCompositeRules(rs *rules.RuleSet) *CompositeRules {
	return &CompositeRules{
		composites:   append([]rules.CompositeRule(nil), rs.Composites...),
		propagations: append([]rules.PropagationRule(nil), rs.Propagations...),
	}
}

// Apply возвращает новые количества, входные не изменяются.
//
// Составная работа равна минимуму составляющих (квартира готова, только когда
// выполнены обе части), составляющие из результата удаляются. Если ни одной
// составляющей нет, прямое значение составной работы сохраняется.
// Сопутствующие работы всегда получают количество основной работы категории.
func (r *CompositeRules) Apply(counts Counts) Counts {
	out := counts.Clone()

	for _, c := range r.composites {
		present := false
		for _, comp := range c.Components {
			if _, ok := counts[comp]; ok {
				present = true
				break
			}
		}
		if !present {
			continue
		}

		out[c.Canonical] = MinOf(counts, c.Components)
		for _, comp := range c.Components {
			delete(out, comp)
		}
	}

	for _, p := range r.propagations {
		primary := out[p.Primary]
		for _, comp := range p.Companions {
			out[comp] = primary
		}
	}

	return out
}

// MinOf минимум количеств составляющих; отсутствующая составляющая равна нулю
func MinOf(counts Counts, components []string) int {
	if len(components) == 0 {
		return 0
	}
	result := counts[components[0]]
	for _, comp := range components[1:] {
		result = min(result, counts[comp])
	}
	return result
}
