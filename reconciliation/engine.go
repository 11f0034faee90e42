// Package reconciliation сводит количества выполненных работ из трекера и
// закрытых чек-листов из QA-системы в строки отчета по башням и видам работ.
package reconciliation

import (
	"log/slog"

	"progressreport/normalization"
	"progressreport/rules"
)

// TowerCount ключ сверки: количества обоих источников для башни и вида работ
type TowerCount struct {
	TowerKey             string                 `json:"tower_key"`
	Category             normalization.Category `json:"category"`
	Activity             string                 `json:"activity"`
	CompletedCount       int                    `json:"completed_count"`
	ClosedChecklistCount int                    `json:"closed_checklist_count"`
}

// Row итоговая строка сверки. InProgressCount зарезервирован и всегда равен нулю.
type Row struct {
	TowerKey             string                 `json:"tower_key"`
	Category             normalization.Category `json:"category"`
	Activity             string                 `json:"activity"`
	CompletedCount       int                    `json:"completed_count"`
	InProgressCount      int                    `json:"in_progress_count"`
	ClosedChecklistCount int                    `json:"closed_checklist_count"`
	OpenMissingCount     int                    `json:"open_missing_count"`
}

// Anomaly закрытых чек-листов больше, чем выполненных работ
type Anomaly struct {
	TowerKey             string                 `json:"tower_key"`
	Category             normalization.Category `json:"category"`
	Activity             string                 `json:"activity"`
	CompletedCount       int                    `json:"completed_count"`
	ClosedChecklistCount int                    `json:"closed_checklist_count"`
}

// Input количества обоих источников после нормализации и составных правил.
// Completed содержит сырые количества трекера, пересчет выполняет движок.
type Input struct {
	Completed Tally
	Closed    Tally
	// Towers дополнительные известные башни без данных в обоих источниках
	Towers []string
}

// Output результат сверки
type Output struct {
	Towers    []string     `json:"towers"`
	Counts    []TowerCount `json:"-"`
	Rows      []Row        `json:"rows"`
	Anomalies []Anomaly    `json:"anomalies"`
}

// OpenMissing числовая политика недостающих чек-листов, проверяется сверху вниз:
// нечего сверять при нуле выполненных, избыток закрытых не дефицит, иначе разность.
func OpenMissing(completed, closed int) int {
	if completed <= 0 {
		return 0
	}
	if closed > completed {
		return 0
	}
	return completed - closed
}

// Engine движок сверки. Работает синхронно над данными в памяти и не хранит состояния
// между вызовами Reconcile.
type Engine struct {
	catalog   *normalization.Catalog
	transform rules.TransformRule
	derived   map[string]rules.DerivedRule
	reported  map[normalization.Category]bool
	logger    *slog.Logger
}

// NewEngine создает движок по набору правил варианта
func NewEngine(rs *rules.RuleSet) *Engine {
	e := &Engine{
		catalog:   normalization.NewCatalog(rs),
		transform: rs.Transform,
		derived:   make(map[string]rules.DerivedRule, len(rs.Derived)),
		reported:  make(map[normalization.Category]bool),
		logger:    slog.Default().With("component", "reconciliation_engine"),
	}
	for _, d := range rs.Derived {
		e.derived[d.Canonical] = d
	}
	for _, c := range e.catalog.Categories() {
		e.reported[c] = rs.ReportedCategory(string(c))
	}
	return e
}

// Catalog возвращает справочник, по которому строится полный набор строк
func (e *Engine) Catalog() *normalization.Catalog {
	return e.catalog
}

// Transform пересчитывает количество трекера для категории: count*Multiplier + Bias
// при включенном правиле и положительном количестве. Ноль остается нулем.
func (e *Engine) Transform(category normalization.Category, count int) int {
	if count <= 0 {
		return 0
	}
	t := e.transform
	if !t.Enabled || string(category) != t.Category {
		return count
	}
	return max(0, count*t.Multiplier+t.Bias)
}

// Derive вычисляет производную метрику из сырого количества исходного вида работ
func Derive(d rules.DerivedRule, raw int) int {
	return max(0, raw*d.Multiplier+d.Bias+d.Offset)
}

// Reconcile строит строку для каждой известной башни и каждого вида работ
// сверяемых категорий справочника. Отсутствующие количества равны нулю, строка выводится всегда.
func (e *Engine) Reconcile(in Input) *Output {
	towerSet := make(map[string]struct{})
	for _, src := range []Tally{in.Completed, in.Closed} {
		for tower := range src {
			towerSet[tower] = struct{}{}
		}
	}
	for _, tower := range in.Towers {
		if tower != "" {
			towerSet[tower] = struct{}{}
		}
	}
	towers := make([]string, 0, len(towerSet))
	for tower := range towerSet {
		towers = append(towers, tower)
	}
	SortTowers(towers)

	e.logUnknownActivities(in.Completed, "tracker")
	e.logUnknownActivities(in.Closed, "qa")

	activities := e.activities()
	out := &Output{
		Towers: towers,
		Counts: make([]TowerCount, 0, len(towers)*len(activities)),
		Rows:   make([]Row, 0, len(towers)*len(activities)),
	}

	for _, tower := range towers {
		for _, a := range activities {
			tc := TowerCount{
				TowerKey:             tower,
				Category:             a.Category,
				Activity:             a.Name,
				CompletedCount:       e.completed(in.Completed, tower, a),
				ClosedChecklistCount: in.Closed.Get(tower, a.Name),
			}
			out.Counts = append(out.Counts, tc)

			if tc.ClosedChecklistCount > tc.CompletedCount {
				e.logger.Warn("Closed checklists exceed completed work",
					"tower", tower,
					"activity", a.Name,
					"completed", tc.CompletedCount,
					"closed", tc.ClosedChecklistCount)
				out.Anomalies = append(out.Anomalies, Anomaly(tc))
			}

			out.Rows = append(out.Rows, Row{
				TowerKey:             tc.TowerKey,
				Category:             tc.Category,
				Activity:             tc.Activity,
				CompletedCount:       tc.CompletedCount,
				InProgressCount:      0,
				ClosedChecklistCount: tc.ClosedChecklistCount,
				OpenMissingCount:     OpenMissing(tc.CompletedCount, tc.ClosedChecklistCount),
			})
		}
	}

	e.logger.Info("Reconciliation completed",
		"towers", len(towers),
		"rows", len(out.Rows),
		"anomalies", len(out.Anomalies))
	return out
}

// activities виды работ сверяемых категорий в порядке справочника
func (e *Engine) activities() []normalization.CanonicalActivity {
	all := e.catalog.All()
	out := make([]normalization.CanonicalActivity, 0, len(all))
	for _, a := range all {
		if e.reported[a.Category] {
			out = append(out, a)
		}
	}
	return out
}

// completed количество выполненных работ после пересчета
func (e *Engine) completed(t Tally, tower string, a normalization.CanonicalActivity) int {
	if d, ok := e.derived[a.Name]; ok {
		return Derive(d, t.Get(tower, d.From))
	}
	return e.Transform(a.Category, t.Get(tower, a.Name))
}

func (e *Engine) logUnknownActivities(t Tally, source string) {
	for tower, counts := range t {
		for activity, n := range counts {
			if _, ok := e.catalog.Lookup(activity); ok {
				continue
			}
			e.logger.Debug("Count for activity outside catalog ignored",
				"source", source,
				"tower", tower,
				"activity", activity,
				"count", n)
		}
	}
}
