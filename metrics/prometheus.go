package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tokenpay"

type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the tokenpay collectors on reg. A nil reg
// uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Payment session events by type.",
		},
		[]string{"event", "chain"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_seconds",
			Help:      "Latency of wallet connect and payment confirmation.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"operation", "chain"},
	)

	for _, c := range []prometheus.Collector{counters, histogram} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}, nil
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"event": name,
		"chain": labels["chain"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation": name,
		"chain":     labels["chain"],
	}).Observe(d.Seconds())
}
