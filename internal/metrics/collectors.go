package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "teamsync"

// Collectors owns a private registry so tests can build as many as they
// like without colliding on the default one.
type Collectors struct {
	registry *prometheus.Registry

	analyses        *prometheus.CounterVec
	analysisSeconds prometheus.Histogram
	jobs            *prometheus.CounterVec
	jobSeconds      *prometheus.HistogramVec
	jobsInflight    prometheus.Gauge
	audioBytes      prometheus.Counter
	requests        *prometheus.CounterVec
	requestSeconds  *prometheus.HistogramVec
}

func NewCollectors() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Transcript analyses by outcome.",
		}, []string{"outcome"}),
		analysisSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent analysing one transcript.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_jobs_total",
			Help:      "Finished transcription jobs by provider and final state.",
		}, []string{"provider", "state"}),
		jobSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_job_duration_seconds",
			Help:      "Wall time from upload to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"provider"}),
		jobsInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcription_jobs_inflight",
			Help:      "Transcription jobs not yet in a terminal state.",
		}),
		audioBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_audio_bytes_total",
			Help:      "Bytes of audio accepted for transcription.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.analyses,
		c.analysisSeconds,
		c.jobs,
		c.jobSeconds,
		c.jobsInflight,
		c.audioBytes,
		c.requests,
		c.requestSeconds,
	)
	return c
}

func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collectors) ObserveAnalysis(err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.analyses.WithLabelValues(outcome).Inc()
	c.analysisSeconds.Observe(elapsed.Seconds())
}

func (c *Collectors) JobStarted() {
	c.jobsInflight.Inc()
}

// JobFinished records a job that reached a terminal state.
func (c *Collectors) JobFinished(m *JobMetrics) {
	m.Finalize()
	c.jobsInflight.Dec()

	m.mu.Lock()
	provider, state, audio := m.Provider, m.FinalState, m.AudioBytes
	m.mu.Unlock()

	c.jobs.WithLabelValues(provider, state).Inc()
	c.jobSeconds.WithLabelValues(provider).Observe(m.Duration().Seconds())
	c.audioBytes.Add(float64(audio))
}

func (c *Collectors) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
