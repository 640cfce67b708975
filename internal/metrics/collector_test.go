package metrics

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mini-web-server/internal/logger"
	"mini-web-server/internal/threadpool"
)

func TestPoolCollectorTracksPool(t *testing.T) {
	reg := prometheus.NewRegistry()
	col, err := NewPoolCollector(reg)
	if err != nil {
		t.Fatalf("NewPoolCollector: %v", err)
	}

	pool := threadpool.New(3,
		threadpool.WithLogger(logger.New(io.Discard, logger.LevelError)),
		threadpool.WithPanicRecovery(true),
		threadpool.WithObserver(col),
	)
	col.WatchQueue(pool.QueueLen)

	for range 5 {
		pool.Execute(func() { time.Sleep(time.Millisecond) })
	}
	pool.Execute(func() { panic("fault") })

	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := testutil.ToFloat64(col.jobsStarted); got != 6 {
		t.Errorf("jobs started = %v, want 6", got)
	}
	if got := testutil.ToFloat64(col.jobsCompleted); got != 5 {
		t.Errorf("jobs completed = %v, want 5", got)
	}
	if got := testutil.ToFloat64(col.jobFaults); got != 1 {
		t.Errorf("job faults = %v, want 1", got)
	}
	if got := testutil.ToFloat64(col.workersAlive); got != 0 {
		t.Errorf("workers alive after Close = %v, want 0", got)
	}
	if got := testutil.ToFloat64(col.workersBusy); got != 0 {
		t.Errorf("workers busy after Close = %v, want 0", got)
	}
	if got := testutil.ToFloat64(col.queueDepth); got != 0 {
		t.Errorf("queue depth after Close = %v, want 0", got)
	}

	expected := `
# HELP miniweb_pool_job_faults_total Jobs that panicked.
# TYPE miniweb_pool_job_faults_total counter
miniweb_pool_job_faults_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "miniweb_pool_job_faults_total"); err != nil {
		t.Errorf("gathered metrics mismatch: %v", err)
	}
}

func TestPoolCollectorQueueDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	col, err := NewPoolCollector(reg)
	if err != nil {
		t.Fatalf("NewPoolCollector: %v", err)
	}

	if got := testutil.ToFloat64(col.queueDepth); got != 0 {
		t.Errorf("unbound queue depth = %v, want 0", got)
	}

	col.WatchQueue(func() int { return 7 })
	if got := testutil.ToFloat64(col.queueDepth); got != 7 {
		t.Errorf("queue depth = %v, want 7", got)
	}
}

func TestPoolCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPoolCollector(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}

	_, err := NewPoolCollector(reg)
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		t.Errorf("expected AlreadyRegisteredError, got %v", err)
	}
}
