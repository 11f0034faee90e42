// Package rules содержит табличное описание правил сверки: справочник видов работ
// и категорий, синонимы обоих источников, исключения, этапы строительства и
// числовые константы. Варианты проектов описываются дельтами к базовому набору.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Source источник данных, к которому относится правило
type Source string

const (
	// SourceAny правило применяется к обоим источникам
	SourceAny Source = ""
	// SourceQA QA-система (чек-листы)
	SourceQA Source = "qa"
	// SourceTracker таблица-трекер фактического выполнения
	SourceTracker Source = "tracker"
)

// CategorySpec категория и упорядоченный список канонических видов работ
type CategorySpec struct {
	Name       string   `yaml:"name" json:"name"`
	Activities []string `yaml:"activities" json:"activities"`
}

// AliasRule строка таблицы синонимов {source, raw_label, canonical_name, exclusion_flag}
type AliasRule struct {
	Source    Source `yaml:"source" json:"source,omitempty"`
	Raw       string `yaml:"raw" json:"raw"`
	Canonical string `yaml:"canonical" json:"canonical,omitempty"`
	Excluded  bool   `yaml:"excluded" json:"excluded,omitempty"`
}

// TypoRule исправление близкого написания (без учета регистра)
type TypoRule struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// CompositeRule объединение нескольких видов работ трекера в один канонический.
// Mode "min": квартира считается завершенной, только когда выполнены все составляющие.
type CompositeRule struct {
	Canonical  string   `yaml:"canonical" json:"canonical"`
	Category   string   `yaml:"category" json:"category"`
	Mode       string   `yaml:"mode" json:"mode"`
	Components []string `yaml:"components" json:"components"`
}

// PropagationRule сопутствующие работы наследуют количество основной работы категории
type PropagationRule struct {
	Category   string   `yaml:"category" json:"category"`
	Primary    string   `yaml:"primary" json:"primary"`
	Companions []string `yaml:"companions" json:"companions"`
}

// TransformRule пересчет количества трекера: count*Multiplier + Bias (для count > 0)
type TransformRule struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Category   string `yaml:"category" json:"category"`
	Multiplier int    `yaml:"multiplier" json:"multiplier"`
	Bias       int    `yaml:"bias" json:"bias"`
}

// DerivedRule производная метрика: (count*Multiplier + Bias) + Offset, не меньше нуля
type DerivedRule struct {
	Canonical  string `yaml:"canonical" json:"canonical"`
	Category   string `yaml:"category" json:"category"`
	From       string `yaml:"from" json:"from"`
	Multiplier int    `yaml:"multiplier" json:"multiplier"`
	Bias       int    `yaml:"bias" json:"bias"`
	Offset     int    `yaml:"offset" json:"offset"`
}

// ModuleRange диапазон номеров модулей, относящихся к под-башне
type ModuleRange struct {
	Suffix string `yaml:"suffix" json:"suffix"`
	Min    int    `yaml:"min" json:"min"`
	Max    int    `yaml:"max" json:"max"`
}

// TowerSplitRule разделение составной башни на логические под-башни по номеру модуля
type TowerSplitRule struct {
	Tower       string        `yaml:"tower" json:"tower"`
	ModuleIndex int           `yaml:"module_index" json:"module_index"`
	Ranges      []ModuleRange `yaml:"ranges" json:"ranges"`
}

// StageRule ключевые слова включения и исключения этапа строительства
type StageRule struct {
	Name    string   `yaml:"name" json:"name"`
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude,omitempty"`
}

// VariantDelta отличия варианта проекта от базового набора
type VariantDelta struct {
	Description     string          `yaml:"description"`
	Transform       *TransformRule  `yaml:"transform"`
	TowerSplit      *TowerSplitRule `yaml:"tower_split"`
	StageFilter     *bool           `yaml:"stage_filter"`
	StageCategories []string        `yaml:"stage_categories"`
	Derived         []DerivedRule   `yaml:"derived"`
	Aliases         []AliasRule     `yaml:"aliases"`
	TypoCorrections []TypoRule      `yaml:"typo_corrections"`
}

// RuleSet полный набор правил сверки одного варианта проекта
type RuleSet struct {
	Variant            string                  `yaml:"-" json:"variant"`
	Description        string                  `yaml:"-" json:"description,omitempty"`
	RootName           string                  `yaml:"root_name" json:"root_name"`
	UnknownPath        string                  `yaml:"unknown_path" json:"unknown_path"`
	MaxPathDepth       int                     `yaml:"max_path_depth" json:"max_path_depth"`
	CompletedStatus    string                  `yaml:"completed_status" json:"completed_status"`
	Categories         []CategorySpec          `yaml:"categories" json:"categories"`
	Aliases            []AliasRule             `yaml:"aliases" json:"aliases"`
	ExcludedPrefixes   []string                `yaml:"excluded_prefixes" json:"excluded_prefixes"`
	TypoCorrections    []TypoRule              `yaml:"typo_corrections" json:"typo_corrections"`
	Composites         []CompositeRule         `yaml:"composites" json:"composites"`
	Propagations       []PropagationRule       `yaml:"propagations" json:"propagations"`
	Transform          TransformRule           `yaml:"transform" json:"transform"`
	Derived            []DerivedRule           `yaml:"derived" json:"derived,omitempty"`
	TowerSplit         *TowerSplitRule         `yaml:"tower_split" json:"tower_split,omitempty"`
	StageFilter        bool                    `yaml:"stage_filter" json:"stage_filter"`
	// StageCategories категории, которые сверяются при фильтре по этапам. Пусто - все.
	StageCategories    []string                `yaml:"stage_categories" json:"stage_categories,omitempty"`
	Stages             []StageRule             `yaml:"stages" json:"stages"`
	StructuralKeywords []string                `yaml:"structural_keywords" json:"structural_keywords"`
	Variants           map[string]VariantDelta `yaml:"variants" json:"-"`
}

// Default возвращает встроенный базовый набор правил
func Default() (*RuleSet, error) {
	return Parse(defaultRulesYAML)
}

// LoadFile загружает набор правил из YAML файла.
// Пустой путь означает встроенный набор.
func LoadFile(path string) (*RuleSet, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rs, nil
}

// Parse разбирает YAML документ набора правил и проверяет его
func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	if rs.RootName == "" {
		rs.RootName = "Quality"
	}
	if rs.UnknownPath == "" {
		rs.UnknownPath = "Unknown"
	}
	if rs.MaxPathDepth == 0 {
		rs.MaxPathDepth = 10
	}
	if rs.CompletedStatus == "" {
		rs.CompletedStatus = "Completed"
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// VariantNames возвращает отсортированный список вариантов проектов
func (rs *RuleSet) VariantNames() []string {
	names := make([]string, 0, len(rs.Variants))
	for name := range rs.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VariantDescription возвращает описание варианта
func (rs *RuleSet) VariantDescription(name string) string {
	return rs.Variants[name].Description
}

// ForVariant возвращает копию набора с примененной дельтой варианта.
// Пустое имя означает базовый набор без дельты.
func (rs *RuleSet) ForVariant(name string) (*RuleSet, error) {
	out := rs.clone()
	if name == "" {
		return out, nil
	}

	delta, ok := rs.Variants[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownVariant, name, strings.Join(rs.VariantNames(), ", "))
	}

	out.Variant = name
	out.Description = delta.Description
	if delta.Transform != nil {
		out.Transform = *delta.Transform
	}
	if delta.TowerSplit != nil {
		split := *delta.TowerSplit
		split.Ranges = append([]ModuleRange(nil), delta.TowerSplit.Ranges...)
		out.TowerSplit = &split
	}
	if delta.StageFilter != nil {
		out.StageFilter = *delta.StageFilter
	}
	if len(delta.StageCategories) > 0 {
		out.StageCategories = append([]string(nil), delta.StageCategories...)
	}
	out.Aliases = append(out.Aliases, delta.Aliases...)
	out.TypoCorrections = append(out.TypoCorrections, delta.TypoCorrections...)

	for _, d := range delta.Derived {
		out.Derived = append(out.Derived, d)
		out.addActivity(d.Category, d.Canonical)
	}

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("variant %q: %w", name, err)
	}
	return out, nil
}

func (rs *RuleSet) hasCategory(name string) bool {
	for _, c := range rs.Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ReportedCategory сверяется ли категория. При фильтре по этапам только категории
// из StageCategories, если список задан.
func (rs *RuleSet) ReportedCategory(name string) bool {
	if !rs.StageFilter || len(rs.StageCategories) == 0 {
		return true
	}
	for _, c := range rs.StageCategories {
		if c == name {
			return true
		}
	}
	return false
}

// CategoryOf возвращает категорию канонического вида работ
func (rs *RuleSet) CategoryOf(activity string) (string, bool) {
	for _, c := range rs.Categories {
		for _, a := range c.Activities {
			if a == activity {
				return c.Name, true
			}
		}
	}
	return "", false
}

// Validate проверяет согласованность набора правил
func (rs *RuleSet) Validate() error {
	var problems []string

	if len(rs.Categories) == 0 {
		problems = append(problems, "at least one category is required")
	}

	seen := make(map[string]string)
	for _, c := range rs.Categories {
		if c.Name == "" {
			problems = append(problems, "category name is required")
		}
		for _, a := range c.Activities {
			if prev, dup := seen[a]; dup {
				problems = append(problems, fmt.Sprintf("activity %q listed in both %q and %q", a, prev, c.Name))
			}
			seen[a] = c.Name
		}
	}

	for _, a := range rs.Aliases {
		if a.Raw == "" {
			problems = append(problems, "alias raw label is required")
		}
		if !a.Excluded && a.Canonical == "" {
			problems = append(problems, fmt.Sprintf("alias %q needs canonical name or excluded flag", a.Raw))
		}
		if a.Source != SourceAny && a.Source != SourceQA && a.Source != SourceTracker {
			problems = append(problems, fmt.Sprintf("alias %q has unknown source %q", a.Raw, a.Source))
		}
	}

	for _, c := range rs.Composites {
		if c.Mode != "min" {
			problems = append(problems, fmt.Sprintf("composite %q: unsupported mode %q", c.Canonical, c.Mode))
		}
		if len(c.Components) < 2 {
			problems = append(problems, fmt.Sprintf("composite %q needs at least two components", c.Canonical))
		}
		if cat, ok := seen[c.Canonical]; !ok || cat != c.Category {
			problems = append(problems, fmt.Sprintf("composite %q must be listed in category %q", c.Canonical, c.Category))
		}
	}

	for _, p := range rs.Propagations {
		if seen[p.Primary] != p.Category {
			problems = append(problems, fmt.Sprintf("propagation primary %q must be listed in category %q", p.Primary, p.Category))
		}
		for _, comp := range p.Companions {
			if seen[comp] != p.Category {
				problems = append(problems, fmt.Sprintf("propagation companion %q must be listed in category %q", comp, p.Category))
			}
		}
	}

	if rs.Transform.Enabled && rs.Transform.Multiplier < 1 {
		problems = append(problems, "transform multiplier must be at least 1")
	}

	if split := rs.TowerSplit; split != nil {
		if split.Tower == "" {
			problems = append(problems, "tower split: tower name is required")
		}
		if split.ModuleIndex < 2 {
			problems = append(problems, "tower split: module index must point below the tower segment")
		}
		for i, r := range split.Ranges {
			if r.Min > r.Max {
				problems = append(problems, fmt.Sprintf("tower split: range %s is empty", r.Suffix))
			}
			for _, other := range split.Ranges[i+1:] {
				if r.Min <= other.Max && other.Min <= r.Max {
					problems = append(problems, fmt.Sprintf("tower split: ranges %s and %s overlap", r.Suffix, other.Suffix))
				}
			}
		}
	}

	for _, name := range rs.StageCategories {
		if !rs.hasCategory(name) {
			problems = append(problems, fmt.Sprintf("stage category %q is not a known category", name))
		}
	}

	for _, s := range rs.Stages {
		if len(s.Include) == 0 {
			problems = append(problems, fmt.Sprintf("stage %q has no inclusion keywords", s.Name))
		}
	}

	if rs.MaxPathDepth < 1 {
		problems = append(problems, "max path depth must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRuleSet, strings.Join(problems, "; "))
	}
	return nil
}

// addActivity добавляет вид работ в категорию, если его там еще нет
func (rs *RuleSet) addActivity(category, activity string) {
	for i := range rs.Categories {
		if rs.Categories[i].Name != category {
			continue
		}
		for _, a := range rs.Categories[i].Activities {
			if a == activity {
				return
			}
		}
		rs.Categories[i].Activities = append(rs.Categories[i].Activities, activity)
		return
	}
	rs.Categories = append(rs.Categories, CategorySpec{Name: category, Activities: []string{activity}})
}

// clone делает глубокую копию изменяемых срезов
func (rs *RuleSet) clone() *RuleSet {
	out := *rs
	out.Categories = make([]CategorySpec, len(rs.Categories))
	for i, c := range rs.Categories {
		out.Categories[i] = CategorySpec{Name: c.Name, Activities: append([]string(nil), c.Activities...)}
	}
	out.Aliases = append([]AliasRule(nil), rs.Aliases...)
	out.TypoCorrections = append([]TypoRule(nil), rs.TypoCorrections...)
	out.Derived = append([]DerivedRule(nil), rs.Derived...)
	out.StageCategories = append([]string(nil), rs.StageCategories...)
	if rs.TowerSplit != nil {
		split := *rs.TowerSplit
		split.Ranges = append([]ModuleRange(nil), rs.TowerSplit.Ranges...)
		out.TowerSplit = &split
	}
	return &out
}
