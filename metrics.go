package authgate

import (
	"sync/atomic"
	"time"
)

// MetricID identifies an engine counter or histogram.
type MetricID uint16

const (
	MetricAuthSuccess MetricID = iota
	MetricAuthNoCredential
	MetricAuthMalformed
	MetricAuthExpired
	MetricAuthRevoked
	MetricAuthUserNotFound
	MetricAuthInactiveAccount
	MetricAuthUnavailable
	MetricSessionHydrated
	MetricSessionMiss
	MetricSessionCreated
	MetricSessionEnded
	MetricCredentialRevoked
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricGuardDenied
	MetricAuthLatency
	metricIDCount
)

// LatencyBounds are the inclusive upper bounds of the latency histogram
// buckets. One more bucket collects everything slower.
var LatencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const (
	latencyBucketCount = len(LatencyBounds) + 1
	cacheLineSize      = 64
)

// paddedCounter keeps each hot counter on its own cache line.
type paddedCounter struct {
	atomic.Uint64
	_ [cacheLineSize - 8]byte
}

type latencyHistogram struct {
	buckets [latencyBucketCount]atomic.Uint64
	sumNS   atomic.Uint64
}

// Metrics holds lock-free counters and the authentication latency
// histogram. The zero value and a nil *Metrics record nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	latency       latencyHistogram
}

// HistogramSnapshot holds per-bucket (not cumulative) counts aligned with
// [LatencyBounds], the overflow bucket last, and the sum of observations.
type HistogramSnapshot struct {
	Buckets []uint64
	Sum     time.Duration
}

// Count is the number of observations.
func (h HistogramSnapshot) Count() uint64 {
	var n uint64
	for _, b := range h.Buckets {
		n += b
	}
	return n
}

// MetricsSnapshot is a point-in-time copy of [Metrics]. Histograms is empty
// unless latency histograms are enabled.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID]HistogramSnapshot
}

func emptySnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID]HistogramSnapshot{},
	}
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to counter id. Histogram ids are ignored.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount || id == MetricAuthLatency {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d in the histogram for id. Only [MetricAuthLatency] is a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricAuthLatency {
		return
	}
	if d < 0 {
		d = 0
	}
	m.latency.buckets[latencyBucket(d)].Add(1)
	m.latency.sumNS.Add(uint64(d))
}

// observeLatency records one authentication duration when metrics are on.
func (e *Engine) observeLatency(start time.Time) {
	if e.metrics.Enabled() {
		e.metrics.Observe(MetricAuthLatency, e.now().Sub(start))
	}
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter and, if enabled, the latency histogram.
// Values are read individually, so a snapshot taken under load may mix
// adjacent instants.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if !m.Enabled() {
		return emptySnapshot()
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)-1),
		Histograms: make(map[MetricID]HistogramSnapshot, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id != MetricAuthLatency {
			s.Counters[id] = m.counters[id].Load()
		}
	}

	if m.enableLatency {
		h := HistogramSnapshot{
			Buckets: make([]uint64, latencyBucketCount),
			Sum:     time.Duration(m.latency.sumNS.Load()),
		}
		for i := range h.Buckets {
			h.Buckets[i] = m.latency.buckets[i].Load()
		}
		s.Histograms[MetricAuthLatency] = h
	}
	return s
}

func latencyBucket(d time.Duration) int {
	for i, bound := range LatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBounds)
}
