// Package analysis связывает адаптеры источников, нормализацию и движок сверки
// в один прогон анализа.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"progressreport/classification"
	"progressreport/internal/monitoring"
	"progressreport/location"
	"progressreport/normalization"
	"progressreport/qa"
	"progressreport/reconciliation"
	"progressreport/rules"
	"progressreport/tracker"
)

// Input исходные данные одного прогона
type Input struct {
	Variant  string
	Snapshot *qa.Snapshot
	Tracker  []tracker.Record
	// Towers известные башни, для которых строки выводятся даже без данных
	Towers []string
}

// StageCount число различных локаций с закрытыми чек-листами по этапу и башне
type StageCount struct {
	Stage     string `json:"stage"`
	TowerKey  string `json:"tower_key"`
	Locations int    `json:"locations"`
}

// UnmappedLabel название без правила нормализации, требует проверки
type UnmappedLabel struct {
	Source     rules.Source `json:"source"`
	Label      string       `json:"label"`
	Count      int          `json:"count"`
	Suggestion string       `json:"suggestion,omitempty"`
}

// Stats счетчики прогона
type Stats struct {
	QARecords       int `json:"qa_records"`
	QAProcessed     int `json:"qa_processed"`
	QASkipped       int `json:"qa_skipped"`
	QAUnresolved    int `json:"qa_unresolved"`
	FailedChunks    int `json:"failed_chunks"`
	TrackerRecords  int `json:"tracker_records"`
	TrackerExcluded int `json:"tracker_excluded"`
}

// Result результат прогона анализа
type Result struct {
	RunID         string                         `json:"run_id"`
	Variant       string                         `json:"variant"`
	Towers        []string                       `json:"towers"`
	Rows          []reconciliation.Row           `json:"rows"`
	TowerTotals   []reconciliation.TowerTotal    `json:"tower_totals"`
	StageCounts   []StageCount                   `json:"stage_counts,omitempty"`
	Unmapped      []UnmappedLabel                `json:"unmapped"`
	Summary       *classification.Categorization `json:"summary,omitempty"`
	SummarySource string                         `json:"summary_source,omitempty"`
	Anomalies     []reconciliation.Anomaly       `json:"anomalies"`
	Stats         Stats                          `json:"stats"`
	CreatedAt     time.Time                      `json:"created_at"`
}

// Options параметры анализатора
type Options struct {
	Workers   int
	ChunkSize int
	// Remote удаленный классификатор, пробуется раньше классификатора по правилам. Может быть nil.
	Remote classification.Classifier
}

// Analyzer выполняет прогоны анализа по базовому набору правил и его вариантам
type Analyzer struct {
	base   *rules.RuleSet
	opts   Options
	logger *slog.Logger
}

// NewAnalyzer создает анализатор
func NewAnalyzer(base *rules.RuleSet, opts Options) *Analyzer {
	return &Analyzer{
		base:   base,
		opts:   opts,
		logger: slog.Default().With("component", "analyzer"),
	}
}

// Rules возвращает базовый набор правил
func (a *Analyzer) Rules() *rules.RuleSet {
	return a.base
}

// Run выполняет полный прогон. Ошибка возвращается только когда целый набор
// данных отсутствует или некорректен, проблемы отдельных записей логируются.
func (a *Analyzer) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	variant := in.Variant

	result, err := a.run(ctx, in)
	status := "success"
	if err != nil {
		status = "error"
	}
	if variant == "" {
		variant = "base"
	}
	monitoring.RecordRun(variant, status, time.Since(start))

	if err != nil {
		a.logger.Error("Analysis failed", "variant", variant, "error", err)
		return nil, err
	}
	a.logger.Info("Analysis completed",
		"run_id", result.RunID,
		"variant", variant,
		"rows", len(result.Rows),
		"anomalies", len(result.Anomalies),
		"unmapped", len(result.Unmapped),
		"duration", time.Since(start))
	return result, nil
}

func (a *Analyzer) run(ctx context.Context, in Input) (*Result, error) {
	rs, err := a.base.ForVariant(in.Variant)
	if err != nil {
		return nil, err
	}
	if in.Snapshot == nil {
		return nil, ErrNoQAData
	}
	if len(in.Tracker) == 0 {
		return nil, ErrNoTrackerData
	}

	// Источник A: пути, башни, этапы, закрытые чек-листы
	resolver := location.NewResolver(in.Snapshot.Nodes, location.ResolverOptions{
		RootName:    rs.RootName,
		UnknownPath: rs.UnknownPath,
		MaxDepth:    rs.MaxPathDepth,
	})
	towers := location.NewTowerExtractor(splitRule(rs.TowerSplit))

	var (
		stages     *classification.StageClassifier
		structural *classification.StructuralFilter
	)
	if rs.StageFilter {
		stages = classification.NewStageClassifier(stageList(rs.Stages))
		structural = classification.NewStructuralFilter(rs.StructuralKeywords)
	}

	records := in.Snapshot.CompletedRecords(resolver, towers, stages, rs.CompletedStatus)
	normalizer := normalization.NewActivityNormalizer(rs)

	closed, err := qa.CountClosed(ctx, records, normalizer, qa.CountOptions{
		Workers:     a.opts.Workers,
		ChunkSize:   a.opts.ChunkSize,
		StageFilter: rs.StageFilter,
		Structural:  structural,
	})
	if err != nil {
		return nil, err
	}
	monitoring.RecordFailedChunks(closed.FailedChunks)

	// Источник B: выполненные работы трекера
	rawCompleted := tracker.CountCompleted(in.Tracker)
	completed := tracker.NormalizeCounts(rawCompleted, normalizer, normalization.NewCompositeRules(rs))
	for _, tower := range unsplitTowers(completed.Completed, closed.Closed) {
		a.logger.Warn("Tracker tower is not split while QA reports sub-towers",
			"variant", rs.Variant,
			"tower", tower)
	}

	out := reconciliation.NewEngine(rs).Reconcile(reconciliation.Input{
		Completed: completed.Completed,
		Closed:    closed.Closed,
		Towers:    canonicalTowers(in.Towers),
	})

	result := &Result{
		RunID:       uuid.New().String(),
		Variant:     rs.Variant,
		Towers:      out.Towers,
		Rows:        out.Rows,
		TowerTotals: reconciliation.Totals(out.Rows),
		Anomalies:   out.Anomalies,
		Stats: Stats{
			QARecords:       len(records),
			QAProcessed:     closed.Processed,
			QASkipped:       closed.Skipped,
			QAUnresolved:    closed.Unresolved,
			FailedChunks:    closed.FailedChunks,
			TrackerRecords:  len(in.Tracker),
			TrackerExcluded: completed.Excluded,
		},
		CreatedAt: time.Now().UTC(),
	}
	if result.Anomalies == nil {
		result.Anomalies = []reconciliation.Anomaly{}
	}

	if stages != nil {
		result.StageCounts = stageCounts(stages.StageNames(), closed.Stages)
	}
	result.Unmapped = unmappedLabels(normalizer, closed.Unmapped, completed.Unmapped)

	monitoring.RecordAnomalies(result.Variant, len(result.Anomalies))
	monitoring.RecordUnmapped(string(rules.SourceQA), len(closed.Unmapped))
	monitoring.RecordUnmapped(string(rules.SourceTracker), len(completed.Unmapped))

	a.categorize(ctx, result, rawCompleted, normalizer)
	return result, nil
}

// categorize строит сводку по категориям. Сбой сводки не прерывает прогон.
func (a *Analyzer) categorize(ctx context.Context, result *Result, raw reconciliation.Tally, normalizer *normalization.ActivityNormalizer) {
	var classifiers []classification.Classifier
	if a.opts.Remote != nil {
		classifiers = append(classifiers, a.opts.Remote)
	}
	classifiers = append(classifiers, classification.NewRuleClassifier(normalizer))

	summary, source, err := classification.NewChain(classifiers...).Categorize(ctx, classification.CategorizationInput{
		Source: rules.SourceTracker,
		Towers: raw.Towers(),
		Counts: raw,
	})
	if err != nil {
		a.logger.Warn("Categorization summary skipped", "run_id", result.RunID, "error", err)
		return
	}
	result.Summary = summary
	result.SummarySource = source
	monitoring.RecordCategorization(source)
}

func stageCounts(order []string, counts map[string]map[string]int) []StageCount {
	var out []StageCount
	for _, stage := range order {
		byTower := counts[stage]
		towers := make([]string, 0, len(byTower))
		for tower := range byTower {
			towers = append(towers, tower)
		}
		reconciliation.SortTowers(towers)
		for _, tower := range towers {
			out = append(out, StageCount{Stage: stage, TowerKey: tower, Locations: byTower[tower]})
		}
	}
	return out
}

func unmappedLabels(normalizer *normalization.ActivityNormalizer, qaLabels, trackerLabels map[string]int) []UnmappedLabel {
	out := make([]UnmappedLabel, 0, len(qaLabels)+len(trackerLabels))
	add := func(source rules.Source, labels map[string]int) {
		for label, n := range labels {
			suggestion, _ := normalizer.Suggest(label)
			out = append(out, UnmappedLabel{Source: source, Label: label, Count: n, Suggestion: suggestion})
		}
	}
	add(rules.SourceQA, qaLabels)
	add(rules.SourceTracker, trackerLabels)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// unsplitTowers башни трекера без суффикса, для которых QA-система считает под-башни
// (T4 в трекере при T4A и T4B в QA). Их строки не сойдутся ни с одной под-башней.
func unsplitTowers(completed, closed reconciliation.Tally) []string {
	var out []string
	for _, tower := range completed.Towers() {
		if location.BaseKey(tower) != tower {
			continue
		}
		if _, ok := closed[tower]; ok {
			continue
		}
		for qaTower := range closed {
			if qaTower != tower && location.BaseKey(qaTower) == tower {
				out = append(out, tower)
				break
			}
		}
	}
	return out
}

func canonicalTowers(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, location.CanonicalKey(name))
	}
	return out
}

// splitRule переводит правило набора в правило экстрактора башен
func splitRule(r *rules.TowerSplitRule) *location.SplitRule {
	if r == nil {
		return nil
	}
	split := &location.SplitRule{Tower: r.Tower, ModuleIndex: r.ModuleIndex}
	for _, m := range r.Ranges {
		split.Ranges = append(split.Ranges, location.ModuleRange{Suffix: m.Suffix, Min: m.Min, Max: m.Max})
	}
	return split
}

func stageList(specs []rules.StageRule) []classification.Stage {
	out := make([]classification.Stage, 0, len(specs))
	for _, s := range specs {
		out = append(out, classification.Stage{Name: s.Name, Include: s.Include, Exclude: s.Exclude})
	}
	return out
}

// Variants возвращает варианты проектов с описаниями
func (a *Analyzer) Variants() []VariantInfo {
	names := a.base.VariantNames()
	out := make([]VariantInfo, 0, len(names))
	for _, name := range names {
		out = append(out, VariantInfo{Name: name, Description: a.base.VariantDescription(name)})
	}
	return out
}

// VariantInfo вариант проекта
type VariantInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// String краткое описание результата для логов и CLI
func (r *Result) String() string {
	open := 0
	for _, row := range r.Rows {
		open += row.OpenMissingCount
	}
	return fmt.Sprintf("run %s (%s): %d towers, %d rows, %d open/missing, %d anomalies, %d unmapped",
		r.RunID, r.Variant, len(r.Towers), len(r.Rows), open, len(r.Anomalies), len(r.Unmapped))
}
