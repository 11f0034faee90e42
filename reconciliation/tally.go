package reconciliation

import (
	"regexp"
	"sort"
	"strconv"

	"progressreport/normalization"
)

// Tally количества по канонической башне и виду работ.
// Значение принадлежит тому, кто его построил: операции ниже возвращают новые значения.
type Tally map[string]normalization.Counts

// Fold сворачивает последовательность в аккумулятор, возвращаемый на каждом шаге
func Fold[T, A any](items []T, acc A, step func(A, T) A) A {
	for _, item := range items {
		acc = step(acc, item)
	}
	return acc
}

// Get возвращает количество, отсутствующая пара равна нулю
func (t Tally) Get(tower, activity string) int {
	return t[tower][activity]
}

// Towers возвращает башни в естественном порядке (T2 раньше T10)
func (t Tally) Towers() []string {
	towers := make([]string, 0, len(t))
	for tower := range t {
		towers = append(towers, tower)
	}
	SortTowers(towers)
	return towers
}

// Merge возвращает сумму двух количеств. Операция ассоциативна и коммутативна.
func Merge(a, b Tally) Tally {
	out := make(Tally, len(a)+len(b))
	for _, src := range []Tally{a, b} {
		for tower, counts := range src {
			dst, ok := out[tower]
			if !ok {
				dst = make(normalization.Counts, len(counts))
				out[tower] = dst
			}
			for activity, n := range counts {
				dst[activity] += n
			}
		}
	}
	return out
}

var towerOrderPattern = regexp.MustCompile(`^[Tt](\d+)([A-Za-z]?)$`)

// SortTowers сортирует канонические ключи башен: сначала по номеру, затем по суффиксу.
// Ключи без номера идут после нумерованных в лексикографическом порядке.
func SortTowers(towers []string) {
	sort.SliceStable(towers, func(i, j int) bool {
		return lessTower(towers[i], towers[j])
	})
}

func lessTower(a, b string) bool {
	ma := towerOrderPattern.FindStringSubmatch(a)
	mb := towerOrderPattern.FindStringSubmatch(b)
	switch {
	case ma != nil && mb != nil:
		na, _ := strconv.Atoi(ma[1])
		nb, _ := strconv.Atoi(mb[1])
		if na != nb {
			return na < nb
		}
		return ma[2] < mb[2]
	case ma != nil:
		return true
	case mb != nil:
		return false
	default:
		return a < b
	}
}
