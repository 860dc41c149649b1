package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	paths          *prometheus.CounterVec
	steps          *prometheus.CounterVec
	absorbed       *prometheus.CounterVec
	samplingErrors *prometheus.CounterVec
	finalPrice     *prometheus.GaugeVec
	messagesSent   *prometheus.CounterVec
	calibrations   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	queueDepth     *prometheus.GaugeVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		paths: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noisymarket_paths_total",
				Help: "Total number of simulated paths",
			},
			[]string{"kind"},
		),
		steps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noisymarket_steps_total",
				Help: "Total number of simulated steps",
			},
			[]string{"kind"},
		),
		absorbed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noisymarket_absorbed_paths_total",
				Help: "Paths whose price reached zero",
			},
			[]string{"kind"},
		),
		samplingErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noisymarket_sampling_errors_total",
				Help: "Rejection samplers that exhausted their draw budget",
			},
			[]string{"kind"},
		),
		finalPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "noisymarket_final_price",
				Help: "Final price of the last simulated path for a symbol",
			},
			[]string{"symbol"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noisymarket_messages_sent_total",
				Help: "Total number of path records sent to backend",
			},
			[]string{"backend", "symbol"},
		),
		calibrations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noisymarket_calibrations_total",
				Help: "Calibrations saved per symbol",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noisymarket_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "noisymarket_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		queueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "noisymarket_queue_depth",
				Help: "Items waiting in an in-process queue",
			},
			[]string{"queue"},
		),
	}
}

// RecordPath counts a finished path and its steps.
func (r *Recorder) RecordPath(kind, symbol string, steps int, absorbed bool) {
	r.paths.WithLabelValues(kind).Inc()
	r.steps.WithLabelValues(kind).Add(float64(steps))
	if absorbed {
		r.absorbed.WithLabelValues(kind).Inc()
	}
}

func (r *Recorder) RecordFinalPrice(symbol string, price float64) {
	r.finalPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordSamplingError(kind string) {
	r.samplingErrors.WithLabelValues(kind).Inc()
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

func (r *Recorder) RecordCalibration(symbol string) {
	r.calibrations.WithLabelValues(symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordQueueDepth(queue string, depth int) {
	r.queueDepth.WithLabelValues(queue).Set(float64(depth))
}
