package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "nise_bosh"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	registry          *prom.Registry
	runDuration       *prom.HistogramVec
	runOutcomes       *prom.CounterVec
	packageDuration   *prom.HistogramVec
	packageResults    *prom.CounterVec
	templatesRendered *prom.CounterVec
	fragmentsRemoved  prom.Counter
	archiveBytes      prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.runDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of installer runs by mode",
			Buckets:   prom.DefBuckets,
		}, []string{"mode"})
		pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Installer run outcomes by mode",
		}, []string{"mode", "result"})
		pr.packageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "package_install_duration_seconds",
			Help:      "Duration of individual package installs",
			Buckets:   []float64{.01, .1, 1, 5, 15, 60, 300, 900},
		}, []string{"package", "action"})
		pr.packageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "package_results_total",
			Help:      "Package install results by action",
		}, []string{"action", "result"})
		pr.templatesRendered = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "templates_rendered_total",
			Help:      "Job templates rendered, including monit templates",
		}, []string{"job"})
		pr.fragmentsRemoved = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "monit_fragments_removed_total",
			Help:      "Monit fragments pruned during job installs",
		})
		pr.archiveBytes = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_size_bytes",
			Help:      "Size of the last written release archive",
		})
		reg.MustRegister(pr.runDuration, pr.runOutcomes, pr.packageDuration, pr.packageResults,
			pr.templatesRendered, pr.fragmentsRemoved, pr.archiveBytes)
	})
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.registry }

func (p *PrometheusRecorder) ObserveRunDuration(mode string, d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(mode string, result ResultLabel) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(mode, string(result)).Inc()
}

func (p *PrometheusRecorder) ObservePackageDuration(pkg, action string, d time.Duration) {
	if p == nil || p.packageDuration == nil {
		return
	}
	p.packageDuration.WithLabelValues(pkg, action).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPackageResult(action string, result ResultLabel) {
	if p == nil || p.packageResults == nil {
		return
	}
	p.packageResults.WithLabelValues(action, string(result)).Inc()
}

func (p *PrometheusRecorder) AddTemplatesRendered(job string, n int) {
	if p == nil || p.templatesRendered == nil {
		return
	}
	p.templatesRendered.WithLabelValues(job).Add(float64(n))
}

func (p *PrometheusRecorder) AddFragmentsRemoved(n int) {
	if p == nil || p.fragmentsRemoved == nil {
		return
	}
	p.fragmentsRemoved.Add(float64(n))
}

func (p *PrometheusRecorder) SetArchiveBytes(n int64) {
	if p == nil || p.archiveBytes == nil {
		return
	}
	p.archiveBytes.Set(float64(n))
}

// WriteTextfile writes the registry in text exposition format, atomically.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.registry)
}
