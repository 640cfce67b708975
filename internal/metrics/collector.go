package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mini-web-server/internal/threadpool"
)

const namespace = "miniweb"

// PoolCollector exports thread pool activity as Prometheus metrics. It is
// installed on a pool with threadpool.WithObserver.
type PoolCollector struct {
	workersAlive  prometheus.Gauge
	workersBusy   prometheus.Gauge
	jobsStarted   prometheus.Counter
	jobsCompleted prometheus.Counter
	jobFaults     prometheus.Counter
	jobDuration   prometheus.Histogram

	queueDepth prometheus.GaugeFunc
	queueLen   atomic.Pointer[func() int]
}

var _ threadpool.Observer = (*PoolCollector)(nil)

// NewPoolCollector creates the collectors and registers them on reg.
func NewPoolCollector(reg prometheus.Registerer) (*PoolCollector, error) {
	c := &PoolCollector{
		workersAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "workers_alive",
			Help:      "Workers that have not stopped.",
		}),
		workersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "workers_busy",
			Help:      "Workers currently executing a job.",
		}),
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_started_total",
			Help:      "Jobs picked up by a worker.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_completed_total",
			Help:      "Jobs that returned normally.",
		}),
		jobFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "job_faults_total",
			Help:      "Jobs that panicked.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "job_duration_seconds",
			Help:      "Time spent executing a job.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
	}
	c.queueDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "queue_depth",
		Help:      "Jobs waiting for a worker.",
	}, c.readQueueLen)

	for _, col := range []prometheus.Collector{
		c.workersAlive, c.workersBusy, c.jobsStarted, c.jobsCompleted,
		c.jobFaults, c.jobDuration, c.queueDepth,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WatchQueue sets the function sampled for the queue_depth gauge, usually
// the pool's QueueLen. Until it is called the gauge reads 0.
func (c *PoolCollector) WatchQueue(fn func() int) {
	c.queueLen.Store(&fn)
}

func (c *PoolCollector) readQueueLen() float64 {
	fn := c.queueLen.Load()
	if fn == nil || *fn == nil {
		return 0
	}
	return float64((*fn)())
}

func (c *PoolCollector) WorkerStarted(int) {
	c.workersAlive.Inc()
}

func (c *PoolCollector) JobStarted(int) {
	c.jobsStarted.Inc()
	c.workersBusy.Inc()
}

func (c *PoolCollector) JobFinished(_ int, elapsed time.Duration, fault *threadpool.Fault) {
	c.workersBusy.Dec()
	c.jobDuration.Observe(elapsed.Seconds())
	if fault != nil {
		c.jobFaults.Inc()
		return
	}
	c.jobsCompleted.Inc()
}

func (c *PoolCollector) WorkerStopped(int, *threadpool.Fault) {
	c.workersAlive.Dec()
}
