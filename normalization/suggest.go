package normalization

import (
	"strings"
	"sync"

	"github.com/kljensen/snowball"
)

// DefaultSuggestThreshold минимальная схожесть для подсказки
const DefaultSuggestThreshold = 0.75

// Suggester подбирает ближайший канонический вид работ для нераспознанных названий.
// Сравнение идет по основам слов (Snowball) с расстоянием Дамерау-Левенштейна.
// Подсказка только логируется и попадает в отчет, сопоставление не меняет.
type Suggester struct {
	catalog   *Catalog
	threshold float64
	cache     map[string]string
	mu        sync.RWMutex
}

// NewSuggester создает подбор подсказок по справочнику
func NewSuggester(catalog *Catalog) *Suggester {
	return &Suggester{
		catalog:   catalog,
		threshold: DefaultSuggestThreshold,
		cache:     make(map[string]string),
	}
}

// Suggest возвращает лучший канонический вид работ и схожесть (0.0 - 1.0).
// Пустая строка, если ничего не набрало порога.
func (s *Suggester) Suggest(label string) (string, float64) {
	target := s.stemPhrase(label)
	if target == "" {
		return "", 0
	}

	best, bestScore := "", 0.0
	for _, a := range s.catalog.All() {
		score := similarity(target, s.stemPhrase(a.Name))
		if score > bestScore {
			best, bestScore = a.Name, score
		}
	}

	if bestScore < s.threshold {
		return "", bestScore
	}
	return best, bestScore
}

// stemPhrase приводит фразу к последовательности основ слов
func (s *Suggester) stemPhrase(phrase string) string {
	key := LabelKey(phrase)

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/' || r == '&'
	})
	for i, w := range words {
		stemmed, err := snowball.Stem(w, "english", true)
		if err == nil && stemmed != "" {
			words[i] = stemmed
		}
	}
	result := strings.Join(words, " ")

	s.mu.Lock()
	s.cache[key] = result
	s.mu.Unlock()
	return result
}

// similarity нормированная схожесть двух основ: 1 - расстояние / длина большей строки
func similarity(a, b string) float64 {
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return max(0, 1.0-float64(editDistance(a, b))/float64(maxLen))
}

// editDistance расстояние Дамерау-Левенштейна в варианте OSA: вставка, удаление,
// замена и перестановка двух соседних символов. Хранит только три строки матрицы.
func editDistance(a, b string) int {
	s, t := []rune(a), []rune(b)
	if len(s) == 0 {
		return len(t)
	}
	if len(t) == 0 {
		return len(s)
	}

	prev2 := make([]int, len(t)+1)
	prev := make([]int, len(t)+1)
	cur := make([]int, len(t)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s); i++ {
		cur[0] = i
		for j := 1; j <= len(t); j++ {
			cost := 1
			if s[i-1] == t[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && s[i-1] == t[j-2] && s[i-2] == t[j-1] {
				cur[j] = min(cur[j], prev2[j-2]+1)
			}
		}
		prev2, prev, cur = prev, cur, prev2
	}
	return prev[len(t)]
}
