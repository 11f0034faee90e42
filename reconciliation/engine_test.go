package reconciliation

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"progressreport/normalization"
	"progressreport/rules"
)

func variantEngine(t *testing.T, variant string) *Engine {
	t.Helper()
	base, err := rules.Default()
	require.NoError(t, err)
	rs, err := base.ForVariant(variant)
	require.NoError(t, err)
	return NewEngine(rs)
}

func findRow(t *testing.T, rows []Row, tower, activity string) Row {
	t.Helper()
	for _, r := range rows {
		if r.TowerKey == tower && r.Activity == activity {
			return r
		}
	}
	t.Fatalf("row %s/%s not found", tower, activity)
	return Row{}
}

func TestOpenMissing(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		closed    int
		want      int
	}{
		{"nothing completed", 0, 0, 0},
		{"nothing completed but closed", 0, 5, 0},
		{"closed exceeds completed", 3, 8, 0},
		{"fully closed", 6, 6, 0},
		{"deficit", 7, 3, 4},
		{"no checklists", 9, 0, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OpenMissing(tt.completed, tt.closed))
		})
	}
}

func TestOpenMissingNeverNegative(t *testing.T) {
	faker := gofakeit.New(3)
	for i := 0; i < 500; i++ {
		completed := faker.IntRange(-5, 300)
		closed := faker.IntRange(0, 300)

		got := OpenMissing(completed, closed)
		assert.GreaterOrEqual(t, got, 0)
		if completed <= 0 || closed >= completed {
			assert.Zero(t, got, "completed=%d closed=%d", completed, closed)
		}
	}
}

// Сценарий: сырое количество бетонирования 4 пересчитывается в 7, закрыто 3, не хватает 4
func TestReconcileCivilWorksTransform(t *testing.T) {
	e := variantEngine(t, "standard")

	out := e.Reconcile(Input{
		Completed: Tally{"T5": {"Concreting": 4}},
		Closed:    Tally{"T5": {"Concreting": 3}},
	})

	row := findRow(t, out.Rows, "T5", "Concreting")
	assert.Equal(t, normalization.CivilWorks, row.Category)
	assert.Equal(t, 7, row.CompletedCount)
	assert.Equal(t, 3, row.ClosedChecklistCount)
	assert.Equal(t, 4, row.OpenMissingCount)
	assert.Zero(t, row.InProgressCount)
	assert.Empty(t, out.Anomalies)
}

// Сценарий: ничего не выполнено, закрыто 5, дефицит не отрицательный
func TestReconcileExcessClosedIsAnomaly(t *testing.T) {
	e := variantEngine(t, "standard")

	out := e.Reconcile(Input{
		Closed: Tally{"T2": {"Brickwork": 5}},
	})

	row := findRow(t, out.Rows, "T2", "Brickwork")
	assert.Zero(t, row.CompletedCount)
	assert.Equal(t, 5, row.ClosedChecklistCount)
	assert.Zero(t, row.OpenMissingCount)

	require.Len(t, out.Anomalies, 1)
	assert.Equal(t, "Brickwork", out.Anomalies[0].Activity)
}

func TestReconcileTransformOnlyCivilWorks(t *testing.T) {
	e := variantEngine(t, "standard")

	out := e.Reconcile(Input{
		Completed: Tally{"T1": {"Painting": 4, "Brickwork": 3, "Concreting": 0}},
	})

	assert.Equal(t, 4, findRow(t, out.Rows, "T1", "Painting").CompletedCount)
	assert.Equal(t, 5, findRow(t, out.Rows, "T1", "Brickwork").CompletedCount)
	assert.Equal(t, 0, findRow(t, out.Rows, "T1", "Concreting").CompletedCount)
}

func TestReconcileCompleteRowSet(t *testing.T) {
	e := variantEngine(t, "standard")
	activities := e.Catalog().All()

	out := e.Reconcile(Input{
		Completed: Tally{"T1": {"Concreting": 2}},
		Closed:    Tally{"T3": {"Painting": 1}},
		Towers:    []string{"T2"},
	})

	assert.Equal(t, []string{"T1", "T2", "T3"}, out.Towers)
	assert.Len(t, out.Rows, 3*len(activities))

	row := findRow(t, out.Rows, "T2", "Road Works")
	assert.Equal(t, Row{TowerKey: "T2", Category: normalization.ExternalDevelopment, Activity: "Road Works"}, row)
}

func TestReconcileDerivedFinalConcreting(t *testing.T) {
	e := variantEngine(t, "tower-split")

	out := e.Reconcile(Input{
		Completed: Tally{
			"T4A": {"Concreting": 10},
			"T4B": {"Concreting": 2},
		},
		Closed: Tally{"T4A": {"Final Concreting": 6}},
	})

	final := findRow(t, out.Rows, "T4A", "Final Concreting")
	assert.Equal(t, 14, final.CompletedCount, "(2*10-1)-5")
	assert.Equal(t, 8, final.OpenMissingCount)
	assert.Equal(t, 19, findRow(t, out.Rows, "T4A", "Concreting").CompletedCount)

	assert.Zero(t, findRow(t, out.Rows, "T4B", "Final Concreting").CompletedCount, "(2*2-1)-5 clamps to zero")
}

func TestReconcileIgnoresActivitiesOutsideCatalog(t *testing.T) {
	e := variantEngine(t, "standard")

	out := e.Reconcile(Input{
		Completed: Tally{"T1": {"Kitchen Platform": 9}},
	})
	for _, r := range out.Rows {
		assert.NotEqual(t, "Kitchen Platform", r.Activity)
	}
}

func TestReconcilePropertiesOnRandomInput(t *testing.T) {
	e := variantEngine(t, "standard")
	activities := e.Catalog().All()
	faker := gofakeit.New(99)

	for i := 0; i < 50; i++ {
		completed, closed := Tally{}, Tally{}
		for _, tower := range []string{"T1", "T2", "T7A"} {
			completed[tower] = normalization.Counts{}
			closed[tower] = normalization.Counts{}
			for _, a := range activities {
				if faker.Bool() {
					completed[tower][a.Name] = faker.IntRange(0, 40)
				}
				if faker.Bool() {
					closed[tower][a.Name] = faker.IntRange(0, 80)
				}
			}
		}

		out := e.Reconcile(Input{Completed: completed, Closed: closed})
		for _, r := range out.Rows {
			assert.GreaterOrEqual(t, r.OpenMissingCount, 0)
			assert.Zero(t, r.InProgressCount)
			if r.CompletedCount == 0 || r.ClosedChecklistCount >= r.CompletedCount {
				assert.Zero(t, r.OpenMissingCount)
			}
		}
	}
}

func TestTransformDisabled(t *testing.T) {
	rs, err := rules.Default()
	require.NoError(t, err)
	rs.Transform.Enabled = false

	e := NewEngine(rs)
	assert.Equal(t, 4, e.Transform(normalization.CivilWorks, 4))
}

func TestTotals(t *testing.T) {
	rows := []Row{
		{TowerKey: "T1", Category: normalization.CivilWorks, CompletedCount: 7, ClosedChecklistCount: 3, OpenMissingCount: 4},
		{TowerKey: "T1", Category: normalization.CivilWorks, CompletedCount: 2, ClosedChecklistCount: 2},
		{TowerKey: "T1", Category: normalization.MEPWorks, CompletedCount: 1},
		{TowerKey: "T2", Category: normalization.CivilWorks, ClosedChecklistCount: 5},
	}

	got := Totals(rows)
	require.Len(t, got, 3)
	assert.Equal(t, TowerTotal{TowerKey: "T1", Category: normalization.CivilWorks, CompletedCount: 9, ClosedChecklistCount: 5, OpenMissingCount: 4}, got[0])
	assert.Equal(t, normalization.MEPWorks, got[1].Category)
	assert.Equal(t, "T2", got[2].TowerKey)
}

func TestReconcileStageWiseOnlyStageCategories(t *testing.T) {
	e := variantEngine(t, "stage-wise")

	out := e.Reconcile(Input{
		Completed: Tally{"T5": {"Concreting": 2, "Wall Conduting": 3}},
		Closed:    Tally{"T5": {"Concreting": 3}},
	})

	assert.Equal(t, 3, findRow(t, out.Rows, "T5", "Concreting").CompletedCount)
	for _, r := range out.Rows {
		assert.Equal(t, normalization.Category("Civil Works"), r.Category)
		assert.NotEqual(t, "Wall Conduting", r.Activity, "activity without stage records is not reconciled")
	}
	assert.Len(t, out.Rows, len(e.Catalog().Activities("Civil Works")))
}
