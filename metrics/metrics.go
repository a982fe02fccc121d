// Package metrics records payment session events and latencies.
package metrics

import "time"

// Recorder receives event counters and operation latencies. Labels carry the
// target chain under "chain".
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
