package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"mini-web-server/internal/config"
	"mini-web-server/internal/events"
	"mini-web-server/internal/logger"
	"mini-web-server/internal/metrics"
	"mini-web-server/internal/threadpool"
)

// Server accepts TCP connections and hands each one to a thread pool.
type Server struct {
	cfg       config.Config
	log       *logger.Logger
	bus       *events.Bus
	metrics   *metrics.Metrics
	observers []threadpool.Observer
	handler   *Handler
	started   atomic.Bool

	mu       sync.RWMutex
	listener net.Listener
	pool     *threadpool.ThreadPool
	ready    chan struct{}
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithEventBus publishes listener and pool lifecycle events on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(s *Server) { s.bus = bus }
}

// WithMetrics records per-connection results into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithPoolObserver attaches an observer to the pool created by Serve.
func WithPoolObserver(o threadpool.Observer) Option {
	return func(s *Server) { s.observers = append(s.observers, o) }
}

// New validates cfg and prepares a server. Nothing is bound until
// ListenAndServe.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		cfg:   cfg,
		log:   logger.Default,
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	var pages fs.FS
	if cfg.DocRoot != "" {
		info, err := os.Stat(cfg.DocRoot)
		if err != nil {
			return nil, fmt.Errorf("doc root: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("doc root %s is not a directory", cfg.DocRoot)
		}
		pages = os.DirFS(cfg.DocRoot)
	}
	s.handler = NewHandler(pages, cfg.SleepDelay, cfg.ReadTimeout, s.log, s.metrics)

	return s, nil
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc, err := listenConfig(s.cfg.ReusePort)
	if err != nil {
		return err
	}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr(), err)
	}
	return s.Serve(ctx, ln)
}

// ErrServerStarted is returned when Serve is called a second time.
var ErrServerStarted = errors.New("server: already started")

// Serve runs the accept loop on ln until ctx is done or accepting fails.
// Each connection becomes one pool job. On return the listener is closed and
// the pool has been drained and joined; a worker that died from a faulting
// job is reported in the returned error. A Server serves only once.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.started.CompareAndSwap(false, true) {
		_ = ln.Close()
		return ErrServerStarted
	}

	poolOpts := []threadpool.Option{
		threadpool.WithLogger(s.log),
		threadpool.WithPanicRecovery(s.cfg.RecoverPanics),
	}
	for _, o := range s.observers {
		poolOpts = append(poolOpts, threadpool.WithObserver(o))
	}
	if s.bus != nil {
		poolOpts = append(poolOpts, threadpool.WithObserver(events.NewPoolObserver(s.bus)))
	}
	pool := threadpool.New(s.cfg.Threads, poolOpts...)

	s.mu.Lock()
	s.listener = ln
	s.pool = pool
	s.mu.Unlock()
	close(s.ready)

	addr := ln.Addr().String()
	s.log.Info("", "listening on %s with %d workers", addr, s.cfg.Threads)
	s.publish(events.NewServerListeningEvent(addr))

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	acceptErr := s.acceptLoop(ctx, ln, pool)
	_ = ln.Close()

	s.log.Info("", "stopped accepting on %s, draining pool", addr)
	closeErr := pool.Close()

	s.mu.Lock()
	s.pool = nil
	s.mu.Unlock()

	err := errors.Join(acceptErr, closeErr)
	s.publish(events.NewServerStoppedEvent(addr, err))
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, pool *threadpool.ThreadPool) error {
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				s.log.Warn("", "accept: %v; retrying in %v", err, backoff)
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		pool.Execute(func() {
			s.handler.Serve(conn)
		})
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}

func (s *Server) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// Ready is closed once the listener is bound and the pool is running.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Pool returns the running pool, or nil outside Serve.
func (s *Server) Pool() *threadpool.ThreadPool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool
}

// Metrics returns the per-connection metrics.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}
