package metrics

import "time"

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)

// NoopRecorder drops everything. Used when no recorder is configured.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
