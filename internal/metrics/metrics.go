package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultMaxLatencySamples = 1000
	defaultRateWindow        = 10 * time.Second
)

// Metrics counts handled requests and keeps a bounded latency sample.
type Metrics struct {
	totalRequests   atomic.Uint64
	successRequests atomic.Uint64
	failedRequests  atomic.Uint64
	totalLatencyNs  atomic.Uint64

	mu        sync.Mutex
	startTime time.Time

	// RPS is measured over the current window plus the previous one.
	window         time.Duration
	windowStart    time.Time
	windowRequests uint64
	prevStart      time.Time
	prevRequests   uint64

	// latencies is a ring; next is the slot overwritten once it is full.
	latencies         []time.Duration
	next              int
	maxLatencySamples int
}

// Config tunes a Metrics instance.
type Config struct {
	MaxLatencySamples int
	RateWindow        time.Duration
}

// New returns Metrics keeping the latest 1000 latency samples and a 10s
// rate window.
func New() *Metrics {
	return NewWithConfig(Config{})
}

// NewWithConfig returns Metrics with custom settings. Zero fields take the
// defaults.
func NewWithConfig(cfg Config) *Metrics {
	samples := cfg.MaxLatencySamples
	if samples <= 0 {
		samples = defaultMaxLatencySamples
	}
	window := cfg.RateWindow
	if window <= 0 {
		window = defaultRateWindow
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		window:            window,
		windowStart:       now,
		prevStart:         now,
		latencies:         make([]time.Duration, 0, samples),
		maxLatencySamples: samples,
	}
}

// RecordSuccess records a request that was answered.
func (m *Metrics) RecordSuccess(latency time.Duration) {
	m.record(latency)
	m.successRequests.Add(1)

	m.mu.Lock()
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	} else {
		m.latencies[m.next] = latency
		m.next = (m.next + 1) % m.maxLatencySamples
	}
	m.mu.Unlock()
}

// RecordFailure records a request that failed on read or write.
func (m *Metrics) RecordFailure(latency time.Duration) {
	m.record(latency)
	m.failedRequests.Add(1)
}

func (m *Metrics) record(latency time.Duration) {
	m.totalRequests.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.rotate(time.Now())
	m.windowRequests++
	m.mu.Unlock()
}

// rotate advances the rate window to now. Callers hold mu.
func (m *Metrics) rotate(now time.Time) {
	age := now.Sub(m.windowStart)
	if age < m.window {
		return
	}
	if age < 2*m.window {
		m.prevStart = m.windowStart
		m.prevRequests = m.windowRequests
		m.windowStart = m.windowStart.Add(m.window)
	} else {
		m.prevStart = now
		m.prevRequests = 0
		m.windowStart = now
	}
	m.windowRequests = 0
}

func (m *Metrics) TotalRequests() uint64 {
	return m.totalRequests.Load()
}

func (m *Metrics) SuccessRequests() uint64 {
	return m.successRequests.Load()
}

func (m *Metrics) FailedRequests() uint64 {
	return m.failedRequests.Load()
}

// RPS returns the recent request rate, measured over at most the last two
// rate windows.
func (m *Metrics) RPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.rotate(now)
	elapsed := now.Sub(m.prevStart).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.prevRequests+m.windowRequests) / elapsed
}

// OverallRPS returns requests per second since creation.
func (m *Metrics) OverallRPS() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.totalRequests.Load()) / elapsed
}

func (m *Metrics) AverageLatency() time.Duration {
	total := m.totalRequests.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatencyNs.Load() / total)
}

// P99Latency is computed over the most recent successful samples.
func (m *Metrics) P99Latency() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ErrorRate returns failed/total in [0, 1].
func (m *Metrics) ErrorRate() float64 {
	total := m.totalRequests.Load()
	if total == 0 {
		return 0
	}
	return float64(m.failedRequests.Load()) / float64(total)
}

// Reset starts a new RPS and latency window. Totals are kept.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.windowStart = now
	m.windowRequests = 0
	m.prevStart = now
	m.prevRequests = 0
	m.latencies = m.latencies[:0]
	m.next = 0
}

// Snapshot is a copy of the current values.
type Snapshot struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	RPS             float64       `json:"rps"`
	OverallRPS      float64       `json:"overall_rps"`
	AverageLatency  time.Duration `json:"average_latency_ns"`
	P99Latency      time.Duration `json:"p99_latency_ns"`
	ErrorRate       float64       `json:"error_rate"`
	Elapsed         time.Duration `json:"elapsed_ns"`
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:   m.TotalRequests(),
		SuccessRequests: m.SuccessRequests(),
		FailedRequests:  m.FailedRequests(),
		RPS:             m.RPS(),
		OverallRPS:      m.OverallRPS(),
		AverageLatency:  m.AverageLatency(),
		P99Latency:      m.P99Latency(),
		ErrorRate:       m.ErrorRate(),
		Elapsed:         time.Since(m.startTime),
	}
}
