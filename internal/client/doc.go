// Package client provides a load generator for benchmarking the server.
//
// The Client replays raw HTTP/1.1 request lines against a running server.
// Requests are executed by a threadpool.ThreadPool, so Concurrency bounds the
// number of connections open at once. Latency and outcome of every request
// are recorded in a metrics.Metrics.
//
// # Basic Usage
//
//	cfg := client.DefaultConfig()
//	cfg.Addr = "127.0.0.1:7878"
//	cfg.Paths = []string{"/", "/sleep"}
//	cl := client.New(cfg, nil)
//
//	snap := cl.RunRequests(ctx, 1000)
//	fmt.Printf("Total: %d, P99: %v\n", snap.TotalRequests, snap.P99Latency)
//
// # Configuration
//
// The Config struct allows tuning:
//   - Addr: server address
//   - Concurrency: pool size (0 = CPU count)
//   - Paths: request paths, used round-robin
//   - Timeout: per-request deadline covering dial, write and read
//
// A request succeeds when the server answers with a 200 status line and the
// full body. Anything else, including a 404, counts as a failure.
package client
