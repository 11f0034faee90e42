package classification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"progressreport/normalization"
	"progressreport/reconciliation"
	"progressreport/rules"
)

type mockClassifier struct {
	mock.Mock
	name string
}

func (m *mockClassifier) Name() string {
	return m.name
}

func (m *mockClassifier) Categorize(ctx context.Context, in CategorizationInput) (*Categorization, error) {
	args := m.Called(ctx, in)
	result, _ := args.Get(0).(*Categorization)
	return result, args.Error(1)
}

func ruleClassifier(t *testing.T) *RuleClassifier {
	t.Helper()
	rs, err := rules.Default()
	require.NoError(t, err)
	return NewRuleClassifier(normalization.NewActivityNormalizer(rs))
}

func sampleInput() CategorizationInput {
	return CategorizationInput{
		Source: rules.SourceTracker,
		Towers: []string{"T1", "T2"},
		Counts: reconciliation.Tally{
			"T1": {"Slab Casting": 4, "Concreting": 1, "EL-First Fix": 2, "Kitchen Platform": 1, "C-EL-First Fix": 3},
			"T2": {"Painting": 5, "UP First Fix": 2},
		},
	}
}

func TestRuleClassifierCategorize(t *testing.T) {
	got, err := ruleClassifier(t).Categorize(context.Background(), sampleInput())
	require.NoError(t, err)
	require.NoError(t, got.Validate(sampleInput()))

	require.Len(t, got.Towers, 2)
	t1 := got.Towers[0]
	assert.Equal(t, "T1", t1.Tower)
	require.Len(t, t1.Categories, 2)
	assert.Equal(t, CategoryGroup{
		Category:   normalization.CivilWorks,
		Activities: []ActivityCount{{Activity: "Concreting", Count: 5}},
	}, t1.Categories[0])
	assert.Equal(t, normalization.MEPWorks, t1.Categories[1].Category)
	assert.Equal(t, []ActivityCount{{Activity: "Wall Conduting", Count: 2}}, t1.Categories[1].Activities)

	t2 := got.Towers[1]
	require.Len(t, t2.Categories, 2)
	assert.Equal(t, normalization.MEPWorks, t2.Categories[0].Category)
	assert.Equal(t, []ActivityCount{{Activity: "UP-First Fix", Count: 2}}, t2.Categories[0].Activities)
	assert.Equal(t, normalization.InteriorFinishing, t2.Categories[1].Category)

	assert.Equal(t, []string{"Kitchen Platform"}, got.Unmapped)
}

func TestValidate(t *testing.T) {
	in := CategorizationInput{Towers: []string{"T1"}}

	tests := []struct {
		name   string
		result *Categorization
		valid  bool
	}{
		{"nil", nil, false},
		{"valid", &Categorization{Towers: []TowerCategorization{{Tower: "T1", Categories: []CategoryGroup{
			{Category: normalization.CivilWorks, Activities: []ActivityCount{{Activity: "Concreting", Count: 1}}},
		}}}}, true},
		{"unknown category", &Categorization{Towers: []TowerCategorization{{Tower: "T1", Categories: []CategoryGroup{
			{Category: "Plumbing", Activities: []ActivityCount{{Activity: "Pipes", Count: 1}}},
		}}}}, false},
		{"negative count", &Categorization{Towers: []TowerCategorization{{Tower: "T1", Categories: []CategoryGroup{
			{Category: normalization.MEPWorks, Activities: []ActivityCount{{Activity: "Plumbing Works", Count: -2}}},
		}}}}, false},
		{"missing tower", &Categorization{}, false},
		{"extra tower", &Categorization{Towers: []TowerCategorization{{Tower: "T1"}, {Tower: "T9"}}}, false},
		{"repeated tower", &Categorization{Towers: []TowerCategorization{{Tower: "T1"}, {Tower: "T1"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate(in)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidCategorization)
			}
		})
	}
}

func TestChainFallsBackToRules(t *testing.T) {
	ctx := context.Background()
	in := sampleInput()

	remote := &mockClassifier{name: "remote"}
	remote.On("Categorize", ctx, in).Return(nil, errors.New("connection refused")).Once()

	chain := NewChain(remote, ruleClassifier(t))
	got, source, err := chain.Categorize(ctx, in)

	require.NoError(t, err)
	assert.Equal(t, "rules", source)
	assert.Len(t, got.Towers, 2)
	remote.AssertExpectations(t)
}

func TestChainRejectsInvalidResult(t *testing.T) {
	ctx := context.Background()
	in := sampleInput()

	remote := &mockClassifier{name: "remote"}
	remote.On("Categorize", ctx, in).Return(&Categorization{Towers: []TowerCategorization{{Tower: "T1"}}}, nil)

	_, source, err := NewChain(remote, ruleClassifier(t)).Categorize(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "rules", source)
}

func TestChainUsesFirstValidResult(t *testing.T) {
	ctx := context.Background()
	in := CategorizationInput{Towers: []string{"T1"}}
	want := &Categorization{Towers: []TowerCategorization{{Tower: "T1"}}}

	remote := &mockClassifier{name: "remote"}
	remote.On("Categorize", ctx, in).Return(want, nil)

	got, source, err := NewChain(remote, ruleClassifier(t)).Categorize(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "remote", source)
	assert.Same(t, want, got)
}

func TestChainAllFail(t *testing.T) {
	ctx := context.Background()
	in := CategorizationInput{}

	failing := &mockClassifier{name: "remote"}
	failing.On("Categorize", ctx, in).Return(nil, ErrRemoteUnavailable)

	_, _, err := NewChain(failing).Categorize(ctx, in)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)

	_, _, err = NewChain().Categorize(ctx, in)
	assert.ErrorIs(t, err, ErrNoClassifiers)
}
