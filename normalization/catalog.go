package normalization

import (
	"progressreport/rules"
)

// Category категория работ отчета
type Category string

const (
	CivilWorks          Category = "Civil Works"
	MEPWorks            Category = "MEP Works"
	InteriorFinishing   Category = "Interior Finishing Works"
	ExternalDevelopment Category = "External Development"
)

// KnownCategories фиксированный набор категорий отчета
var KnownCategories = []Category{CivilWorks, MEPWorks, InteriorFinishing, ExternalDevelopment}

// IsKnownCategory проверяет, входит ли категория в фиксированный набор
func IsKnownCategory(name string) bool {
	for _, c := range KnownCategories {
		if string(c) == name {
			return true
		}
	}
	return false
}

// CanonicalActivity канонический вид работ и его категория
type CanonicalActivity struct {
	Name     string   `json:"canonical_name"`
	Category Category `json:"category"`
}

// Catalog упорядоченный справочник канонических видов работ
type Catalog struct {
	categories []Category
	activities map[Category][]string
	byName     map[string]Category
	byKey      map[string]string
}

// NewCatalog строит справочник из набора правил
func NewCatalog(rs *rules.RuleSet) *Catalog {
	c := &Catalog{
		activities: make(map[Category][]string),
		byName:     make(map[string]Category),
		byKey:      make(map[string]string),
	}

	for _, spec := range rs.Categories {
		cat := Category(spec.Name)
		c.categories = append(c.categories, cat)
		for _, a := range spec.Activities {
			c.activities[cat] = append(c.activities[cat], a)
			c.byName[a] = cat
			c.byKey[LabelKey(a)] = a
		}
	}
	return c
}

// Categories возвращает категории в порядке справочника
func (c *Catalog) Categories() []Category {
	return append([]Category(nil), c.categories...)
}

// Activities возвращает виды работ категории в порядке справочника
func (c *Catalog) Activities(category Category) []string {
	return append([]string(nil), c.activities[category]...)
}

// All возвращает все канонические виды работ
func (c *Catalog) All() []CanonicalActivity {
	var out []CanonicalActivity
	for _, cat := range c.categories {
		for _, a := range c.activities[cat] {
			out = append(out, CanonicalActivity{Name: a, Category: cat})
		}
	}
	return out
}

// Lookup возвращает канонический вид работ по точному имени
func (c *Catalog) Lookup(name string) (CanonicalActivity, bool) {
	cat, ok := c.byName[name]
	if !ok {
		return CanonicalActivity{}, false
	}
	return CanonicalActivity{Name: name, Category: cat}, true
}

// find ищет канонический вид работ без учета регистра и лишних пробелов
func (c *Catalog) find(label string) (string, bool) {
	name, ok := c.byKey[LabelKey(label)]
	return name, ok
}
