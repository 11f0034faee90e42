package reconciliation

import "progressreport/normalization"

// TowerTotal итоги башни по категории
type TowerTotal struct {
	TowerKey             string                 `json:"tower_key"`
	Category             normalization.Category `json:"category"`
	CompletedCount       int                    `json:"completed_count"`
	ClosedChecklistCount int                    `json:"closed_checklist_count"`
	OpenMissingCount     int                    `json:"open_missing_count"`
}

type totalKey struct {
	tower    string
	category normalization.Category
}

type totalsAcc struct {
	order  []totalKey
	values map[totalKey]TowerTotal
}

// Totals суммирует строки по башне и категории в порядке первого появления
func Totals(rows []Row) []TowerTotal {
	acc := Fold(rows, totalsAcc{values: make(map[totalKey]TowerTotal)}, func(acc totalsAcc, r Row) totalsAcc {
		k := totalKey{tower: r.TowerKey, category: r.Category}
		t, ok := acc.values[k]
		if !ok {
			acc.order = append(acc.order, k)
			t = TowerTotal{TowerKey: r.TowerKey, Category: r.Category}
		}
		t.CompletedCount += r.CompletedCount
		t.ClosedChecklistCount += r.ClosedChecklistCount
		t.OpenMissingCount += r.OpenMissingCount
		acc.values[k] = t
		return acc
	})

	out := make([]TowerTotal, 0, len(acc.order))
	for _, k := range acc.order {
		out = append(out, acc.values[k])
	}
	return out
}
