package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "docsmith"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration   *prom.HistogramVec
	buildDuration   prom.Histogram
	stageResults    *prom.CounterVec
	buildOutcome    *prom.CounterVec
	pageRenders     *prom.CounterVec
	diagramCache    *prom.CounterVec
	rebuildDuration prom.Histogram
}

// NewPrometheusRecorder constructs and registers the docsmith metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		pageRenders: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "page_renders_total",
			Help:      "Pre-rendered pages by result",
		}, []string{"result"}),
		diagramCache: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "diagram_cache_total",
			Help:      "Diagram cache lookups and render failures",
		}, []string{"result"}),
		rebuildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of watch mode snapshot rebuilds",
			Buckets:   prom.DefBuckets,
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
		pr.pageRenders, pr.diagramCache, pr.rebuildDuration)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncPageRender(success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.pageRenders.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncDiagramCache(result CacheLabel) {
	if p == nil {
		return
	}
	p.diagramCache.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRebuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.rebuildDuration.Observe(d.Seconds())
}
