// Package normalization сводит названия работ двух независимо ведущихся
// справочников (QA-система и трекер) к единому каноническому виду работ.
package normalization

import (
	"log/slog"
	"strings"

	"progressreport/rules"
)

// Правило, по которому получен результат нормализации
const (
	RuleAlias           = "alias"
	RuleAliasExclusion  = "alias_exclusion"
	RulePrefixExclusion = "prefix_exclusion"
	RuleTypo            = "typo"
	RuleCanonical       = "canonical"
	RulePassthrough     = "passthrough"
	RuleEmpty           = "empty"
)

// Result результат нормализации одного названия
type Result struct {
	Raw       string   `json:"raw"`
	Canonical string   `json:"canonical"`
	Category  Category `json:"category,omitempty"`
	Excluded  bool     `json:"excluded"`
	Mapped    bool     `json:"mapped"`
	Rule      string   `json:"rule"`
}

// Activity возвращает канонический вид работ результата
func (r Result) Activity() CanonicalActivity {
	return CanonicalActivity{Name: r.Canonical, Category: r.Category}
}

type aliasTarget struct {
	canonical string
	excluded  bool
}

// ActivityNormalizer сопоставляет исходные названия работ каноническим.
// Порядок правил: точный синоним источника, исключение по префиксу,
// исправление опечаток без учета регистра, иначе название проходит без изменений.
// Все таблицы строятся один раз, после создания нормализатор только читает их.
type ActivityNormalizer struct {
	catalog    *Catalog
	aliases    map[rules.Source]map[string]aliasTarget
	prefixes   []string
	typos      map[string]string
	components map[string]Category
	suggester  *Suggester
	logger     *slog.Logger
}

// NewActivityNormalizer создает нормализатор по набору правил
func NewActivityNormalizer(rs *rules.RuleSet) *ActivityNormalizer {
	catalog := NewCatalog(rs)
	n := &ActivityNormalizer{
		catalog:    catalog,
		aliases:    make(map[rules.Source]map[string]aliasTarget),
		typos:      make(map[string]string, len(rs.TypoCorrections)),
		components: make(map[string]Category),
		suggester:  NewSuggester(catalog),
		logger:     slog.Default().With("component", "activity_normalizer"),
	}

	for _, a := range rs.Aliases {
		table, ok := n.aliases[a.Source]
		if !ok {
			table = make(map[string]aliasTarget)
			n.aliases[a.Source] = table
		}
		// Более поздняя строка перекрывает раннюю (дельты вариантов)
		table[LabelKey(a.Raw)] = aliasTarget{canonical: CleanLabel(a.Canonical), excluded: a.Excluded}
	}

	for _, p := range rs.ExcludedPrefixes {
		if p = LabelKey(p); p != "" {
			n.prefixes = append(n.prefixes, p)
		}
	}

	for _, t := range rs.TypoCorrections {
		n.typos[LabelKey(t.From)] = CleanLabel(t.To)
	}

	for _, c := range rs.Composites {
		for _, comp := range c.Components {
			n.components[CleanLabel(comp)] = Category(c.Category)
		}
	}

	return n
}

// Catalog возвращает справочник видов работ
func (n *ActivityNormalizer) Catalog() *Catalog {
	return n.catalog
}

// Suggest подбирает ближайший канонический вид работ для нераспознанного названия
func (n *ActivityNormalizer) Suggest(label string) (string, float64) {
	return n.suggester.Suggest(label)
}

// Normalize сопоставляет исходное название работы каноническому
func (n *ActivityNormalizer) Normalize(source rules.Source, raw string) Result {
	cleaned := CleanLabel(raw)
	res := Result{Raw: raw}

	if cleaned == "" {
		res.Excluded = true
		res.Rule = RuleEmpty
		return res
	}
	key := LabelKey(cleaned)

	// 1. Синоним конкретного источника, затем общий синоним
	if target, ok := n.lookupAlias(source, key); ok {
		if target.excluded {
			res.Excluded = true
			res.Rule = RuleAliasExclusion
			return res
		}
		return n.resolved(res, target.canonical, RuleAlias)
	}

	// 2. Вторичные замеры с зарезервированным префиксом исключаются целиком
	for _, p := range n.prefixes {
		if strings.HasPrefix(key, p) {
			res.Excluded = true
			res.Rule = RulePrefixExclusion
			return res
		}
	}

	// 3. Опечатки и сами канонические названия без учета регистра
	if canonical, ok := n.typos[key]; ok {
		return n.resolved(res, canonical, RuleTypo)
	}
	if canonical, ok := n.catalog.find(cleaned); ok {
		return n.resolved(res, canonical, RuleCanonical)
	}
	for comp := range n.components {
		if LabelKey(comp) == key {
			return n.resolved(res, comp, RuleCanonical)
		}
	}

	// 4. Название проходит без изменений и попадает в список на проверку
	suggestion, score := n.suggester.Suggest(cleaned)
	n.logger.Warn("Unmapped activity label",
		"source", source,
		"label", cleaned,
		"suggestion", suggestion,
		"score", score)

	res.Canonical = cleaned
	res.Rule = RulePassthrough
	return res
}

func (n *ActivityNormalizer) lookupAlias(source rules.Source, key string) (aliasTarget, bool) {
	if source != rules.SourceAny {
		if target, ok := n.aliases[source][key]; ok {
			return target, true
		}
	}
	target, ok := n.aliases[rules.SourceAny][key]
	return target, ok
}

// resolved заполняет категорию найденного канонического названия
func (n *ActivityNormalizer) resolved(res Result, canonical, rule string) Result {
	res.Canonical = canonical
	res.Rule = rule
	res.Mapped = true

	if activity, ok := n.catalog.Lookup(canonical); ok {
		res.Category = activity.Category
	} else if cat, ok := n.components[canonical]; ok {
		res.Category = cat
	} else {
		n.logger.Warn("Canonical activity has no category", "canonical", canonical, "raw", res.Raw)
	}
	return res
}
