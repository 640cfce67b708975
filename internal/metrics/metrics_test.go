package metrics

import (
	"testing"
	"time"
)

func TestMetricsRecord(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordFailure(30 * time.Millisecond)

	if m.TotalRequests() != 3 {
		t.Errorf("expected 3 total, got %d", m.TotalRequests())
	}
	if m.SuccessRequests() != 2 {
		t.Errorf("expected 2 success, got %d", m.SuccessRequests())
	}
	if m.FailedRequests() != 1 {
		t.Errorf("expected 1 failed, got %d", m.FailedRequests())
	}
	if got := m.AverageLatency(); got != 20*time.Millisecond {
		t.Errorf("expected 20ms average, got %v", got)
	}
	if rate := m.ErrorRate(); rate < 0.33 || rate > 0.34 {
		t.Errorf("expected error rate ~0.333, got %f", rate)
	}
}

func TestMetricsEmpty(t *testing.T) {
	m := New()

	if m.AverageLatency() != 0 {
		t.Error("expected zero average latency")
	}
	if m.P99Latency() != 0 {
		t.Error("expected zero P99 latency")
	}
	if m.ErrorRate() != 0 {
		t.Error("expected zero error rate")
	}
}

func TestMetricsP99(t *testing.T) {
	m := New()
	for i := 1; i <= 100; i++ {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}

	if got := m.P99Latency(); got != 100*time.Millisecond {
		t.Errorf("expected P99 of 100ms, got %v", got)
	}
}

func TestMetricsSampleLimit(t *testing.T) {
	m := NewWithConfig(Config{MaxLatencySamples: 10})
	for range 50 {
		m.RecordSuccess(time.Millisecond)
	}

	m.mu.Lock()
	n := len(m.latencies)
	m.mu.Unlock()
	if n != 10 {
		t.Errorf("expected 10 samples kept, got %d", n)
	}
	if m.TotalRequests() != 50 {
		t.Errorf("expected totals to keep counting, got %d", m.TotalRequests())
	}
}

func TestMetricsP99FollowsRecentSamples(t *testing.T) {
	m := New()
	for range defaultMaxLatencySamples {
		m.RecordSuccess(time.Millisecond)
	}
	if got := m.P99Latency(); got != time.Millisecond {
		t.Fatalf("expected P99 of 1ms, got %v", got)
	}

	for range defaultMaxLatencySamples {
		m.RecordSuccess(time.Second)
	}
	if got := m.P99Latency(); got != time.Second {
		t.Errorf("expected P99 of 1s after slower traffic, got %v", got)
	}
}

func TestMetricsSampleRingOverwritesOldest(t *testing.T) {
	m := NewWithConfig(Config{MaxLatencySamples: 4})
	for i := 1; i <= 6; i++ {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}

	m.mu.Lock()
	got := append([]time.Duration(nil), m.latencies...)
	m.mu.Unlock()

	want := []time.Duration{5 * time.Millisecond, 6 * time.Millisecond, 3 * time.Millisecond, 4 * time.Millisecond}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMetricsRPSForgetsOldTraffic(t *testing.T) {
	m := NewWithConfig(Config{RateWindow: 20 * time.Millisecond})
	for range 10 {
		m.RecordSuccess(time.Millisecond)
	}
	if m.RPS() <= 0 {
		t.Fatal("expected a positive rate right after traffic")
	}

	time.Sleep(60 * time.Millisecond)

	if got := m.RPS(); got != 0 {
		t.Errorf("expected rate to drop to 0 after idle windows, got %f", got)
	}
	if m.OverallRPS() <= 0 {
		t.Error("expected overall rate to keep counting")
	}
}

func TestMetricsReset(t *testing.T) {
	m := New()
	m.RecordSuccess(5 * time.Millisecond)

	m.Reset()

	if m.P99Latency() != 0 {
		t.Error("expected latency window cleared by Reset")
	}
	if m.TotalRequests() != 1 {
		t.Error("expected totals to survive Reset")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := New()
	m.RecordSuccess(time.Millisecond)
	m.RecordFailure(time.Millisecond)

	snap := m.Snapshot()
	if snap.TotalRequests != 2 || snap.SuccessRequests != 1 || snap.FailedRequests != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.Elapsed <= 0 {
		t.Error("expected positive elapsed time")
	}
}
