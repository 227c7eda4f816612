package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"footerscan/internal/classify"
	"footerscan/internal/failures"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once        sync.Once
	retries     *prom.CounterVec
	terminals   *prom.CounterVec
	documents   *prom.CounterVec
	runDuration prom.Histogram
	lastExit    prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.retries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "footerscan",
			Name:      "retries_total",
			Help:      "Retries scheduled for transient failures, by failure kind",
		}, []string{"kind"})
		pr.terminals = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "footerscan",
			Name:      "terminal_failures_total",
			Help:      "Terminal failures by resolved error code",
		}, []string{"error_code"})
		pr.documents = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "footerscan",
			Name:      "documents_total",
			Help:      "Processed documents by outcome",
		}, []string{"outcome"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "footerscan",
			Name:      "run_duration_seconds",
			Help:      "Total batch run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.lastExit = prom.NewGauge(prom.GaugeOpts{
			Namespace: "footerscan",
			Name:      "last_exit_code",
			Help:      "Exit status of the most recent terminal failure",
		})
		reg.MustRegister(pr.retries, pr.terminals, pr.documents, pr.runDuration, pr.lastExit)
	})
	return pr
}

func (p *PrometheusRecorder) RecordRetry(kind failures.Kind, _ int, _ time.Duration) {
	if p == nil || p.retries == nil {
		return
	}
	p.retries.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusRecorder) RecordTerminal(code classify.ErrorCode, exitCode int, _ int) {
	if p == nil || p.terminals == nil {
		return
	}
	p.terminals.WithLabelValues(string(code)).Inc()
	p.lastExit.Set(float64(exitCode))
}

func (p *PrometheusRecorder) RecordDocument(outcome string) {
	if p == nil || p.documents == nil {
		return
	}
	p.documents.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) RecordRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}
