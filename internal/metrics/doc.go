// Package metrics records connection handling statistics and exposes thread
// pool activity to Prometheus.
//
// Metrics keeps atomic request counters, a bounded latency sample for P99
// and windowed RPS:
//
//	m := metrics.New()
//	start := time.Now()
//	// ... handle a connection ...
//	m.RecordSuccess(time.Since(start))
//	snap := m.Snapshot()
//
// PoolCollector is a threadpool.Observer backed by prometheus collectors:
//
//	reg := prometheus.NewRegistry()
//	col, err := metrics.NewPoolCollector(reg)
//	pool := threadpool.New(4, threadpool.WithObserver(col))
//	col.WatchQueue(pool.QueueLen)
//
// All types are safe for concurrent use.
package metrics
