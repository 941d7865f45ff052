package sv

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a thread-safe counter
type Counter struct {
	value int64
}

// Add adds a delta to the counter
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Inc increments the counter by 1
func (c *Counter) Inc() {
	c.Add(1)
}

// Value returns the current counter value
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Reset resets the counter to 0
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.value, 0)
}

// LatencyBuckets are the upper bounds of the decode latency histogram.
// The last bucket is unbounded.
var LatencyBuckets = []time.Duration{
	time.Microsecond,
	5 * time.Microsecond,
	10 * time.Microsecond,
	50 * time.Microsecond,
	100 * time.Microsecond,
	500 * time.Microsecond,
	time.Millisecond,
}

// LatencyHistogram tracks decode latency
type LatencyHistogram struct {
	mu      sync.RWMutex
	count   int64
	sum     int64 // nanoseconds
	min     int64
	max     int64
	buckets []int64
}

// NewLatencyHistogram creates a new latency histogram
func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{
		min:     -1, // no measurements yet
		buckets: make([]int64, len(LatencyBuckets)+1),
	}
}

// Record records a latency measurement
func (h *LatencyHistogram) Record(d time.Duration) {
	ns := d.Nanoseconds()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	h.sum += ns

	if h.min < 0 || ns < h.min {
		h.min = ns
	}
	if ns > h.max {
		h.max = ns
	}

	i := 0
	for i < len(LatencyBuckets) && d >= LatencyBuckets[i] {
		i++
	}
	h.buckets[i]++
}

// Stats returns histogram statistics
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := LatencyStats{
		Count:   h.count,
		Sum:     time.Duration(h.sum),
		Buckets: make([]int64, len(h.buckets)),
	}
	copy(stats.Buckets, h.buckets)

	if h.count > 0 {
		stats.Min = time.Duration(h.min)
		stats.Max = time.Duration(h.max)
		stats.Avg = time.Duration(h.sum / h.count)
	}

	return stats
}

// Reset resets the histogram
func (h *LatencyHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count = 0
	h.sum = 0
	h.min = -1
	h.max = 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

// LatencyStats contains latency statistics
type LatencyStats struct {
	Count   int64
	Sum     time.Duration
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Buckets []int64
}

// Metrics holds decoder metrics
type Metrics struct {
	PayloadsDecoded Counter
	PayloadsFailed  Counter
	ASDUsDecoded    Counter
	BytesDecoded    Counter

	// Frames that were not Sampled Values or not Ethernet at all
	FramesSkipped Counter

	DatagramsReceived Counter

	failures [numReasons]Counter

	DecodeLatency *LatencyHistogram

	startTime    atomic.Int64 // unix nanoseconds
	lastActivity atomic.Int64
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	m := &Metrics{
		DecodeLatency: NewLatencyHistogram(),
	}
	m.startTime.Store(time.Now().UnixNano())
	return m
}

// Failures returns the counter for a rejection reason
func (m *Metrics) Failures(r Reason) *Counter {
	if r >= numReasons {
		return nil
	}
	return &m.failures[r]
}

// RecordActivity records the last activity time
func (m *Metrics) RecordActivity() {
	m.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the last activity time
func (m *Metrics) LastActivity() time.Time {
	ns := m.lastActivity.Load()
	if ns == 0 {
		return time.Unix(0, m.startTime.Load())
	}
	return time.Unix(0, ns)
}

// Uptime returns the time since metrics started
func (m *Metrics) Uptime() time.Duration {
	return time.Since(time.Unix(0, m.startTime.Load()))
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.PayloadsDecoded.Reset()
	m.PayloadsFailed.Reset()
	m.ASDUsDecoded.Reset()
	m.BytesDecoded.Reset()
	m.FramesSkipped.Reset()
	m.DatagramsReceived.Reset()
	for i := range m.failures {
		m.failures[i].Reset()
	}
	m.DecodeLatency.Reset()
	m.startTime.Store(time.Now().UnixNano())
	m.lastActivity.Store(0)
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	failures := make(map[Reason]int64, numReasons)
	for r := Reason(0); r < numReasons; r++ {
		failures[r] = m.failures[r].Value()
	}

	return MetricsSnapshot{
		Uptime: m.Uptime(),

		PayloadsDecoded: m.PayloadsDecoded.Value(),
		PayloadsFailed:  m.PayloadsFailed.Value(),
		ASDUsDecoded:    m.ASDUsDecoded.Value(),
		BytesDecoded:    m.BytesDecoded.Value(),

		FramesSkipped:     m.FramesSkipped.Value(),
		DatagramsReceived: m.DatagramsReceived.Value(),

		Failures: failures,

		LatencyStats: m.DecodeLatency.Stats(),

		LastActivity: m.LastActivity(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	Uptime time.Duration

	PayloadsDecoded int64
	PayloadsFailed  int64
	ASDUsDecoded    int64
	BytesDecoded    int64

	FramesSkipped     int64
	DatagramsReceived int64

	Failures map[Reason]int64

	LatencyStats LatencyStats

	LastActivity time.Time
}
