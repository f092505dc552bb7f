package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "bookversions"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once                sync.Once
	publicationDuration prom.Histogram
	pageOutcomes        *prom.CounterVec
	resolutionGaps      *prom.CounterVec
	jobOutcomes         *prom.CounterVec
	jobDuration         *prom.HistogramVec
	queueDepth          prom.Gauge
	retries             *prom.CounterVec
	retriesExhausted    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.publicationDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "publication_duration_seconds",
			Help:      "Duration of publication runs",
			Buckets:   prom.DefBuckets,
		})
		pr.pageOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publication_pages_total",
			Help:      "Pages processed by publication runs, by outcome",
		}, []string{"outcome"})
		pr.resolutionGaps = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "library_resolution_gaps_total",
			Help:      "Library versions that were not configured or not published",
		}, []string{"kind"})
		pr.jobOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_outcomes_total",
			Help:      "Job outcomes by type and final status",
		}, []string{"type", "outcome"})
		pr.jobDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of background jobs",
			Buckets:   prom.DefBuckets,
		}, []string{"type"})
		pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "job_queue_depth",
			Help:      "Jobs waiting in the queue",
		})
		pr.retries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Job retries after transient store failures",
		}, []string{"type"})
		pr.retriesExhausted = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_retry_exhausted_total",
			Help:      "Jobs whose retries were exhausted",
		}, []string{"type"})
		reg.MustRegister(pr.publicationDuration, pr.pageOutcomes, pr.resolutionGaps, pr.jobOutcomes,
			pr.jobDuration, pr.queueDepth, pr.retries, pr.retriesExhausted)
	})
	return pr
}

func (p *PrometheusRecorder) ObservePublicationDuration(d time.Duration) {
	if p == nil || p.publicationDuration == nil {
		return
	}
	p.publicationDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPageOutcome(outcome PageOutcome) {
	if p == nil || p.pageOutcomes == nil {
		return
	}
	p.pageOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncResolutionGap(kind string) {
	if p == nil || p.resolutionGaps == nil {
		return
	}
	p.resolutionGaps.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncJobOutcome(jobType string, outcome JobOutcome) {
	if p == nil || p.jobOutcomes == nil {
		return
	}
	p.jobOutcomes.WithLabelValues(jobType, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveJobDuration(jobType string, d time.Duration) {
	if p == nil || p.jobDuration == nil {
		return
	}
	p.jobDuration.WithLabelValues(jobType).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}

func (p *PrometheusRecorder) IncJobRetry(jobType string) {
	if p == nil || p.retries == nil {
		return
	}
	p.retries.WithLabelValues(jobType).Inc()
}

func (p *PrometheusRecorder) IncJobRetryExhausted(jobType string) {
	if p == nil || p.retriesExhausted == nil {
		return
	}
	p.retriesExhausted.WithLabelValues(jobType).Inc()
}
