package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"mini-web-server/internal/logger"
	"mini-web-server/internal/metrics"
	"mini-web-server/internal/threadpool"
)

// ErrUnexpectedStatus is returned for any response other than 200.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Config holds load generator settings.
type Config struct {
	Addr        string
	Concurrency int           // pool size (0 = CPU count)
	Paths       []string      // round-robin request paths
	Timeout     time.Duration // per request
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Addr:        "127.0.0.1:7878",
		Concurrency: 0,
		Paths:       []string{"/"},
		Timeout:     10 * time.Second,
	}
}

// Client is a load generator.
type Client struct {
	config  Config
	metrics *metrics.Metrics
	log     *logger.Logger
	dialer  net.Dialer

	running atomic.Bool
}

// New creates a Client. A nil logger falls back to logger.Default.
func New(config Config, log *logger.Logger) *Client {
	if config.Concurrency <= 0 {
		config.Concurrency = runtime.NumCPU()
	}
	if len(config.Paths) == 0 {
		config.Paths = []string{"/"}
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if log == nil {
		log = logger.Default
	}
	return &Client{
		config:  config,
		metrics: metrics.New(),
		log:     log,
	}
}

// Metrics returns the recorded metrics.
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// IsRunning reports whether a run is in progress.
func (c *Client) IsRunning() bool {
	return c.running.Load()
}

// RunRequests sends count requests and returns once every one of them has
// finished. Cancelling ctx stops submission; requests already queued are
// skipped without being recorded. It returns nil if a run is already in
// progress.
func (c *Client) RunRequests(ctx context.Context, count uint64) *metrics.Snapshot {
	if c.running.Swap(true) {
		return nil
	}
	defer c.running.Store(false)

	pool := threadpool.New(c.config.Concurrency,
		threadpool.WithLogger(c.log),
		threadpool.WithPanicRecovery(true),
	)

	c.log.Info("", "Benchmark started (addr: %s, concurrency: %d, requests: %d)",
		c.config.Addr, c.config.Concurrency, count)

	for i := uint64(0); i < count; i++ {
		if ctx.Err() != nil {
			break
		}
		path := c.config.Paths[i%uint64(len(c.config.Paths))]
		pool.Execute(c.createJob(ctx, path))
	}

	if err := pool.Close(); err != nil {
		c.log.Error("", "Benchmark pool shutdown: %v", err)
	}

	snapshot := c.metrics.Snapshot()
	c.log.Info("", "Benchmark finished (total: %d, failed: %d)",
		snapshot.TotalRequests, snapshot.FailedRequests)
	return &snapshot
}

func (c *Client) createJob(ctx context.Context, path string) threadpool.Job {
	return func() {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		err := c.request(ctx, path)
		latency := time.Since(start)
		if err != nil {
			c.log.Debug(path, "request failed: %v", err)
			c.metrics.RecordFailure(latency)
			return
		}
		c.metrics.RecordSuccess(latency)
	}
}

// request performs one GET and consumes the response.
func (c *Client) request(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.config.Addr)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "GET %s HTTP/1.1\r\nHost: %s\r\n\r\n", path, c.config.Addr); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	r := bufio.NewReader(conn)
	status, err := r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	status = strings.TrimRight(status, "\r\n")
	if code := statusCode(status); code != 200 {
		return fmt.Errorf("%w: %q", ErrUnexpectedStatus, status)
	}

	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read headers: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				length = n
			}
		}
	}

	if length < 0 {
		_, err = io.Copy(io.Discard, r)
		return err
	}
	if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	return nil
}

// statusCode extracts the numeric code from "HTTP/1.1 200 OK", or 0.
func statusCode(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}
