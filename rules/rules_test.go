package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRuleSet(t *testing.T) {
	rs, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "Quality", rs.RootName)
	assert.Equal(t, 10, rs.MaxPathDepth)
	assert.Equal(t, "Completed", rs.CompletedStatus)
	assert.Equal(t, []string{"C-"}, rs.ExcludedPrefixes)
	assert.True(t, rs.Transform.Enabled)
	assert.Equal(t, 2, rs.Transform.Multiplier)
	assert.Equal(t, -1, rs.Transform.Bias)
	assert.Nil(t, rs.TowerSplit, "base rule set has no tower split")
	assert.Len(t, rs.Stages, 7)

	category, ok := rs.CategoryOf("Wall Conduting")
	require.True(t, ok)
	assert.Equal(t, "MEP Works", category)

	assert.Equal(t, []string{"stage-wise", "standard", "tower-split"}, rs.VariantNames())
}

func TestForVariantTowerSplit(t *testing.T) {
	base, err := Default()
	require.NoError(t, err)

	rs, err := base.ForVariant("tower-split")
	require.NoError(t, err)

	require.NotNil(t, rs.TowerSplit)
	assert.Equal(t, "Tower 4", rs.TowerSplit.Tower)
	assert.Equal(t, 2, rs.TowerSplit.ModuleIndex)
	assert.Equal(t, []ModuleRange{{Suffix: "B", Min: 1, Max: 4}, {Suffix: "A", Min: 5, Max: 8}}, rs.TowerSplit.Ranges)

	category, ok := rs.CategoryOf("Final Concreting")
	require.True(t, ok, "derived activity joins the catalog")
	assert.Equal(t, "Civil Works", category)

	// Базовый набор не должен измениться
	_, ok = base.CategoryOf("Final Concreting")
	assert.False(t, ok)
	assert.Nil(t, base.TowerSplit)
}

func TestForVariantStageWise(t *testing.T) {
	base, err := Default()
	require.NoError(t, err)

	rs, err := base.ForVariant("stage-wise")
	require.NoError(t, err)
	assert.True(t, rs.StageFilter)
	assert.False(t, base.StageFilter)
	assert.Equal(t, "stage-wise", rs.Variant)

	assert.Equal(t, []string{"Civil Works"}, rs.StageCategories)
	assert.True(t, rs.ReportedCategory("Civil Works"))
	assert.False(t, rs.ReportedCategory("MEP Works"))
	assert.True(t, base.ReportedCategory("MEP Works"), "without stage filter every category is reported")
}

func TestForVariantUnknown(t *testing.T) {
	base, err := Default()
	require.NoError(t, err)

	_, err = base.ForVariant("missing")
	assert.True(t, errors.Is(err, ErrUnknownVariant))
}

func TestValidateRejectsInconsistentRules(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no categories",
			yaml: "aliases: []",
		},
		{
			name: "duplicate activity",
			yaml: `
categories:
  - {name: Civil Works, activities: [Concreting]}
  - {name: MEP Works, activities: [Concreting]}`,
		},
		{
			name: "alias without target",
			yaml: `
categories:
  - {name: Civil Works, activities: [Concreting]}
aliases:
  - {raw: Pour}`,
		},
		{
			name: "overlapping split ranges",
			yaml: `
categories:
  - {name: Civil Works, activities: [Concreting]}
tower_split:
  tower: Tower 4
  module_index: 2
  ranges:
    - {suffix: B, min: 1, max: 4}
    - {suffix: A, min: 4, max: 8}`,
		},
		{
			name: "propagation outside category",
			yaml: `
categories:
  - {name: Civil Works, activities: [Concreting]}
propagations:
  - {category: Civil Works, primary: Concreting, companions: [Shuttering]}`,
		},
		{
			name: "unknown stage category",
			yaml: `
categories:
  - {name: Civil Works, activities: [Concreting]}
stage_categories: [Structure]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalidRuleSet) {
				t.Errorf("Parse() error = %v, want ErrInvalidRuleSet", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
categories:
  - {name: Civil Works, activities: [Concreting]}
transform: {enabled: false}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rs, err := LoadFile(path)
	require.NoError(t, err)
	assert.False(t, rs.Transform.Enabled)
	assert.Equal(t, "Unknown", rs.UnknownPath, "defaults are filled in")

	_, err = LoadFile(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)

	def, err := LoadFile("")
	require.NoError(t, err)
	assert.NotEmpty(t, def.Variants)
}
