package normalization

import (
	"testing"

	"progressreport/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultNormalizer(t *testing.T) *ActivityNormalizer {
	t.Helper()
	rs, err := rules.Default()
	require.NoError(t, err)
	return NewActivityNormalizer(rs)
}

func TestNormalizePriority(t *testing.T) {
	n := defaultNormalizer(t)

	tests := []struct {
		name         string
		source       rules.Source
		raw          string
		wantName     string
		wantCategory Category
		wantExcluded bool
		wantMapped   bool
		wantRule     string
	}{
		{"shared alias", rules.SourceTracker, "EL-First Fix", "Wall Conduting", MEPWorks, false, true, RuleAlias},
		{"alias regardless of case", rules.SourceQA, "el-first FIX", "Wall Conduting", MEPWorks, false, true, RuleAlias},
		{"source specific alias", rules.SourceQA, "Pour Card", "Concreting", CivilWorks, false, true, RuleAlias},
		{"alias of other source ignored", rules.SourceTracker, "Pour Card", "Pour Card", "", false, false, RulePassthrough},
		{"excluded synonym", rules.SourceTracker, "Concrete Cube Testing", "", "", true, false, RuleAliasExclusion},
		{"prefixed duplicate excluded", rules.SourceTracker, "C-EL-First Fix", "", "", true, false, RulePrefixExclusion},
		{"prefix check ignores case", rules.SourceQA, "c-Shuttering", "", "", true, false, RulePrefixExclusion},
		{"typo correction", rules.SourceTracker, "wall conducting", "Wall Conduting", MEPWorks, false, true, RuleTypo},
		{"typo with odd dash", rules.SourceTracker, "De Shuttering", "De-Shuttering", CivilWorks, false, true, RuleTypo},
		{"canonical name any case", rules.SourceQA, "  concreting ", "Concreting", CivilWorks, false, true, RuleCanonical},
		{"canonical with en dash", rules.SourceQA, "De–Shuttering", "De-Shuttering", CivilWorks, false, true, RuleCanonical},
		{"composite component", rules.SourceTracker, "UP First Fix", "UP-First Fix", MEPWorks, false, true, RuleAlias},
		{"composite component by name", rules.SourceTracker, "cp-first fix", "CP-First Fix", MEPWorks, false, true, RuleCanonical},
		{"unmapped passes through", rules.SourceTracker, "Kitchen  Platform", "Kitchen Platform", "", false, false, RulePassthrough},
		{"empty label", rules.SourceQA, "   ", "", "", true, false, RuleEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.source, tt.raw)
			assert.Equal(t, tt.raw, got.Raw)
			assert.Equal(t, tt.wantName, got.Canonical)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantExcluded, got.Excluded)
			assert.Equal(t, tt.wantMapped, got.Mapped)
			assert.Equal(t, tt.wantRule, got.Rule)
		})
	}
}

// TestPrefixedFirstFixNeverCountsAsConduting сценарий: C-EL-First Fix исключается,
// EL-First Fix попадает в Wall Conduting
func TestPrefixedFirstFixNeverCountsAsConduting(t *testing.T) {
	n := defaultNormalizer(t)

	for _, source := range []rules.Source{rules.SourceQA, rules.SourceTracker} {
		prefixed := n.Normalize(source, "C-EL-First Fix")
		assert.True(t, prefixed.Excluded)
		assert.NotEqual(t, "Wall Conduting", prefixed.Canonical)

		plain := n.Normalize(source, "EL-First Fix")
		assert.False(t, plain.Excluded)
		assert.Equal(t, "Wall Conduting", plain.Canonical)
	}
}

func TestVariantAliasOverridesBase(t *testing.T) {
	rs, err := rules.Parse([]byte(`
categories:
  - {name: Civil Works, activities: [Concreting, Brickwork]}
aliases:
  - {raw: Block Masonry, canonical: Concreting}
  - {raw: Block Masonry, canonical: Brickwork}
`))
	require.NoError(t, err)

	got := NewActivityNormalizer(rs).Normalize(rules.SourceTracker, "Block Masonry")
	assert.Equal(t, "Brickwork", got.Canonical, "later alias row wins")
}

func TestCatalogOrder(t *testing.T) {
	n := defaultNormalizer(t)
	catalog := n.Catalog()

	assert.Equal(t, KnownCategories, catalog.Categories())
	assert.Equal(t, []string{"Concreting", "Shuttering", "Reinforcement", "De-Shuttering", "Brickwork"}, catalog.Activities(CivilWorks))

	all := catalog.All()
	require.NotEmpty(t, all)
	assert.Equal(t, CanonicalActivity{Name: "Concreting", Category: CivilWorks}, all[0])

	_, ok := catalog.Lookup("UP-First Fix")
	assert.False(t, ok, "composite components are not report activities")
}

func TestIsKnownCategory(t *testing.T) {
	assert.True(t, IsKnownCategory("MEP Works"))
	assert.False(t, IsKnownCategory("Plumbing"))
}

func TestSuggest(t *testing.T) {
	n := defaultNormalizer(t)

	got, score := n.Suggest("Floor Tiles")
	assert.Equal(t, "Floor Tiling", got)
	assert.GreaterOrEqual(t, score, DefaultSuggestThreshold)

	got, _ = n.Suggest("Lift Installation")
	assert.Empty(t, got)
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"abc", "", 3},
		{"shuttering", "shuttering", 0},
		{"shutering", "shuttering", 1},
		{"ab", "ba", 1},
		{"reinforcment", "reinforcement", 1},
		{"conduting", "condutign", 1},
		{"kitten", "sitting", 3},
		{"плитка", "плиткa", 1},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("", ""))
	assert.Equal(t, 0.0, similarity("", "tile"))
	assert.Equal(t, 1.0, similarity("tile", "tile"))
	assert.InDelta(t, 0.75, similarity("tile", "tila"), 1e-9)
}
