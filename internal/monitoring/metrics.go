// Package monitoring метрики Prometheus для прогонов сверки
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysisRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_analysis_runs_total",
		Help: "Total analysis runs by project variant and outcome",
	}, []string{"variant", "status"})

	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "progress_analysis_duration_seconds",
		Help:    "Analysis run duration",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"variant"})

	unmappedLabels = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_unmapped_labels_total",
		Help: "Activity labels passed through without a normalization rule",
	}, []string{"source"})

	anomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_reconciliation_anomalies_total",
		Help: "Rows where closed checklists exceed completed work",
	}, []string{"variant"})

	categorizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_categorizations_total",
		Help: "Categorizations by the classifier that produced them",
	}, []string{"classifier"})

	failedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "progress_failed_chunks_total",
		Help: "QA record chunks omitted after a processing failure",
	})

	httpErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_http_errors_total",
		Help: "HTTP error responses by route and status code",
	}, []string{"route", "code"})
)

// RecordRun учитывает завершенный прогон анализа
func RecordRun(variant, status string, duration time.Duration) {
	analysisRuns.WithLabelValues(variant, status).Inc()
	analysisDuration.WithLabelValues(variant).Observe(duration.Seconds())
}

// RecordUnmapped учитывает нераспознанные названия источника
func RecordUnmapped(source string, count int) {
	if count > 0 {
		unmappedLabels.WithLabelValues(source).Add(float64(count))
	}
}

// RecordAnomalies учитывает строки с избытком закрытых чек-листов
func RecordAnomalies(variant string, count int) {
	if count > 0 {
		anomalies.WithLabelValues(variant).Add(float64(count))
	}
}

// RecordCategorization учитывает классификатор, давший итоговый результат
func RecordCategorization(classifier string) {
	categorizations.WithLabelValues(classifier).Inc()
}

// RecordFailedChunks учитывает пропущенные порции записей
func RecordFailedChunks(count int) {
	if count > 0 {
		failedChunks.Add(float64(count))
	}
}

// RecordHTTPError учитывает ответ API с ошибкой
func RecordHTTPError(route string, code int) {
	httpErrors.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
