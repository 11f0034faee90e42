package qa

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"progressreport/classification"
	"progressreport/location"
	"progressreport/normalization"
	"progressreport/reconciliation"
	"progressreport/rules"
)

// DefaultChunkSize размер порции записей для одного обработчика
const DefaultChunkSize = 500

// CountOptions параметры подсчета закрытых чек-листов
type CountOptions struct {
	Workers   int
	ChunkSize int
	// StageFilter учитывать только записи, попавшие хотя бы в один этап
	StageFilter bool
	// Structural фильтр конструктивных элементов, применяется после этапов. nil пропускает все.
	Structural *classification.StructuralFilter
}

// ClosedCounts результат подсчета по QA-системе
type ClosedCounts struct {
	// Closed число различных локаций по канонической башне и виду работ
	Closed reconciliation.Tally
	// Stages число различных локаций по этапу и башне
	Stages map[string]map[string]int
	// Unmapped нераспознанные названия и число записей с ними
	Unmapped map[string]int
	// Results результат нормализации каждого встреченного названия
	Results      map[string]normalization.Result
	Processed    int
	Skipped      int
	// Unresolved записи без башни: локация не найдена или путь без сегмента башни
	Unresolved   int
	FailedChunks int
}

type pairKey struct {
	tower    string
	activity string
}

type stageKey struct {
	stage string
	tower string
}

// chunkSets частичный результат одной порции: множества локаций по ключам
type chunkSets struct {
	closed    map[pairKey]map[string]struct{}
	stages    map[stageKey]map[string]struct{}
	unmapped  map[string]int
	results   map[string]normalization.Result
	processed  int
	skipped    int
	unresolved int
}

func newChunkSets() *chunkSets {
	return &chunkSets{
		closed:   make(map[pairKey]map[string]struct{}),
		stages:   make(map[stageKey]map[string]struct{}),
		unmapped: make(map[string]int),
		results:  make(map[string]normalization.Result),
	}
}

func addTo[K comparable](sets map[K]map[string]struct{}, key K, id string) {
	set, ok := sets[key]
	if !ok {
		set = make(map[string]struct{})
		sets[key] = set
	}
	set[id] = struct{}{}
}

// union объединяет множества other в c. Порядок объединения не влияет на результат.
func (c *chunkSets) union(other *chunkSets) {
	for k, ids := range other.closed {
		for id := range ids {
			addTo(c.closed, k, id)
		}
	}
	for k, ids := range other.stages {
		for id := range ids {
			addTo(c.stages, k, id)
		}
	}
	for label, n := range other.unmapped {
		c.unmapped[label] += n
	}
	for label, res := range other.results {
		c.results[label] = res
	}
	c.processed += other.processed
	c.skipped += other.skipped
	c.unresolved += other.unresolved
}

// chunkHook вызывается перед обработкой порции, используется в тестах
var chunkHook func(index int)

// CountClosed считает закрытые чек-листы как число различных локаций по
// (каноническая башня, канонический вид работ). Записи делятся на порции
// одинакового размера и обрабатываются ограниченным пулом. Сбой порции
// логируется, ее вклад не учитывается, остальные порции сохраняются.
func CountClosed(ctx context.Context, records []ActivityRecord, normalizer *normalization.ActivityNormalizer, opts CountOptions) (*ClosedCounts, error) {
	logger := slog.Default().With("component", "qa_counter")

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	chunks := splitChunks(records, opts.ChunkSize)
	partial := make([]*chunkSets, len(chunks))
	failed := make([]bool, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, chunk := range chunks {
		i, chunk := i, chunk
		if err := ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sets, err := processChunk(i, chunk, normalizer, opts)
			if err != nil {
				logger.Warn("Chunk failed, its records are omitted",
					"chunk", i,
					"records", len(chunk),
					"error", err)
				failed[i] = true
				return nil
			}
			partial[i] = sets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("counting closed checklists: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("counting closed checklists: %w", err)
	}

	merged := newChunkSets()
	failedChunks := 0
	for i, sets := range partial {
		if failed[i] {
			failedChunks++
			continue
		}
		if sets != nil {
			merged.union(sets)
		}
	}

	out := &ClosedCounts{
		Closed:       reconciliation.Tally{},
		Stages:       make(map[string]map[string]int),
		Unmapped:     merged.unmapped,
		Results:      merged.results,
		Processed:    merged.processed,
		Skipped:      merged.skipped,
		Unresolved:   merged.unresolved,
		FailedChunks: failedChunks,
	}
	for k, ids := range merged.closed {
		counts, ok := out.Closed[k.tower]
		if !ok {
			counts = normalization.Counts{}
			out.Closed[k.tower] = counts
		}
		counts[k.activity] = len(ids)
	}
	for k, ids := range merged.stages {
		towers, ok := out.Stages[k.stage]
		if !ok {
			towers = make(map[string]int)
			out.Stages[k.stage] = towers
		}
		towers[k.tower] = len(ids)
	}

	if out.Unresolved > 0 {
		logger.Warn("Completed records without tower omitted", "count", out.Unresolved)
	}
	logger.Info("Closed checklists counted",
		"records", len(records),
		"chunks", len(chunks),
		"failed_chunks", failedChunks,
		"processed", out.Processed,
		"skipped", out.Skipped,
		"unmapped_labels", len(out.Unmapped))
	return out, nil
}

// processChunk обрабатывает одну порцию. Паника превращается в ошибку порции.
func processChunk(index int, chunk []ActivityRecord, normalizer *normalization.ActivityNormalizer, opts CountOptions) (sets *chunkSets, err error) {
	defer func() {
		if r := recover(); r != nil {
			sets = nil
			err = fmt.Errorf("panic in chunk %d: %v", index, r)
		}
	}()

	if chunkHook != nil {
		chunkHook(index)
	}

	sets = newChunkSets()
	for _, rec := range chunk {
		if rec.TowerKey == location.UnknownTower {
			sets.unresolved++
			continue
		}
		if opts.StageFilter && len(rec.Stages) == 0 {
			sets.skipped++
			continue
		}
		if opts.StageFilter && !opts.Structural.Accept(rec.FullPath) {
			sets.skipped++
			continue
		}

		res, seen := sets.results[rec.RawActivityName]
		if !seen {
			res = normalizer.Normalize(rules.SourceQA, rec.RawActivityName)
			sets.results[rec.RawActivityName] = res
		}
		if res.Excluded {
			sets.skipped++
			continue
		}
		if !res.Mapped || res.Category == "" {
			sets.unmapped[res.Canonical]++
			sets.skipped++
			continue
		}

		sets.processed++
		addTo(sets.closed, pairKey{tower: rec.TowerKey, activity: res.Canonical}, rec.LocationID)
		for _, stage := range rec.Stages {
			addTo(sets.stages, stageKey{stage: stage, tower: rec.TowerKey}, rec.LocationID)
		}
	}
	return sets, nil
}

// splitChunks делит записи на порции одинакового размера (последняя может быть короче)
func splitChunks(records []ActivityRecord, size int) [][]ActivityRecord {
	var chunks [][]ActivityRecord
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// StageNames возвращает этапы результата в алфавитном порядке
func (c *ClosedCounts) StageNames() []string {
	names := make([]string, 0, len(c.Stages))
	for name := range c.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
