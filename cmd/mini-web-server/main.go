// Package main is the entry point for mini-web-server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mini-web-server/internal/api"
	"mini-web-server/internal/client"
	"mini-web-server/internal/config"
	"mini-web-server/internal/events"
	"mini-web-server/internal/logger"
	"mini-web-server/internal/metrics"
	"mini-web-server/internal/server"
)

var (
	version = "dev"
)

type options struct {
	configFile       string
	logLevel         string
	admin            bool
	adminAddr        string
	recoverPanics    bool
	bench            uint64
	benchAddr        string
	benchConcurrency int
	benchPaths       string
	showVersion      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configFile, "config", "", "config file path (YAML/JSON)")
	flag.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.BoolVar(&opts.admin, "admin", false, "serve status, metrics and events over HTTP")
	flag.StringVar(&opts.adminAddr, "admin-addr", config.DefaultAdminAddr, "admin listener address")
	flag.BoolVar(&opts.recoverPanics, "recover", true, "keep a worker alive after a request handler panics")
	flag.Uint64Var(&opts.bench, "bench", 0, "send N requests and exit")
	flag.StringVar(&opts.benchAddr, "bench-addr", "", "benchmark an external server instead of a local one")
	flag.IntVar(&opts.benchConcurrency, "bench-concurrency", 0, "benchmark concurrency (0 = CPU count)")
	flag.StringVar(&opts.benchPaths, "bench-paths", "/", "comma separated request paths for -bench")
	flag.BoolVar(&opts.showVersion, "version", false, "print version")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `mini-web-server - Thread Pool Backed HTTP Server

Usage:
  mini-web-server [options] [threads] [port]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # 4 worker threads on port 7878
  mini-web-server

  # 8 worker threads on port 8080
  mini-web-server 8 8080

  # With the admin listener
  mini-web-server -admin -admin-addr 127.0.0.1:9090

  # Benchmark a local server with 1000 requests
  mini-web-server -bench 1000 -bench-paths /,/sleep
`)
	}

	flag.Parse()

	if opts.showVersion {
		fmt.Printf("mini-web-server version %s\n", version)
		return
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := buildConfig(opts, set, flag.Args())
	if err != nil {
		logger.Error("", "config error: %v", err)
		os.Exit(1)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Default.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.bench > 0 && opts.benchAddr != "" {
		runBench(ctx, opts, opts.benchAddr)
		return
	}

	if err := run(ctx, cfg, opts); err != nil {
		logger.Error("", "server error: %v", err)
		os.Exit(1)
	}
}

// buildConfig layers defaults, the config file, positional arguments and
// explicitly set flags, in that order.
func buildConfig(opts options, set map[string]bool, args []string) (config.Config, error) {
	cfg := config.Default()

	if opts.configFile != "" {
		fc, err := config.LoadFile(opts.configFile)
		if err != nil {
			return cfg, err
		}
		if err := fc.Validate(); err != nil {
			return cfg, fmt.Errorf("invalid config file: %w", err)
		}
		if cfg, err = fc.Apply(cfg); err != nil {
			return cfg, err
		}
	}

	cfg, err := config.FromArgs(args, cfg)
	if err != nil {
		return cfg, err
	}

	if set["log-level"] {
		cfg.LogLevel = opts.logLevel
	}
	if set["admin"] {
		cfg.Admin.Enabled = opts.admin
	}
	if set["admin-addr"] {
		cfg.Admin.Addr = opts.adminAddr
	}
	if set["recover"] {
		cfg.RecoverPanics = opts.recoverPanics
	}

	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config, opts options) error {
	fmt.Println("mini-web-server")
	fmt.Println("===============")
	fmt.Printf("Listening: %s, Threads: %d\n", cfg.ListenAddr(), cfg.Threads)
	if cfg.Admin.Enabled {
		fmt.Printf("Admin: http://%s\n", cfg.Admin.Addr)
	}
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	poolCollector, err := metrics.NewPoolCollector(reg)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()

	srv, err := server.New(cfg,
		server.WithEventBus(bus),
		server.WithPoolObserver(poolCollector),
	)
	if err != nil {
		return err
	}

	// A bind failure on the admin address aborts startup.
	var adminErr chan error
	if cfg.Admin.Enabled {
		ln, err := net.Listen("tcp", cfg.Admin.Addr)
		if err != nil {
			return fmt.Errorf("admin: listen on %s: %w", cfg.Admin.Addr, err)
		}
		adminSrv := api.NewServer(cfg.Admin.Addr, srv, reg, bus, logger.Default)
		adminErr = make(chan error, 1)
		go func() { adminErr <- adminSrv.Serve(ctx, ln) }()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	select {
	case <-srv.Ready():
		if pool := srv.Pool(); pool != nil {
			poolCollector.WatchQueue(pool.QueueLen)
		}
	case err := <-errCh:
		cancel()
		return errors.Join(err, waitAdmin(adminErr))
	case err := <-adminErr:
		cancel()
		return errors.Join(adminFailure(err), <-errCh)
	}

	if opts.bench > 0 {
		runBench(ctx, opts, srv.Addr().String())
		cancel()
	}

	select {
	case err := <-errCh:
		cancel()
		return errors.Join(err, waitAdmin(adminErr))
	case err := <-adminErr:
		cancel()
		return errors.Join(adminFailure(err), <-errCh)
	}
}

// waitAdmin waits for the admin server to stop. A nil channel means it was
// never started.
func waitAdmin(ch <-chan error) error {
	if ch == nil {
		return nil
	}
	return adminFailure(<-ch)
}

func adminFailure(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("admin: %w", err)
}

func runBench(ctx context.Context, opts options, addr string) {
	cfg := client.DefaultConfig()
	cfg.Addr = addr
	cfg.Concurrency = opts.benchConcurrency
	cfg.Paths = strings.Split(opts.benchPaths, ",")

	cl := client.New(cfg, logger.Default)
	snap := cl.RunRequests(ctx, opts.bench)

	fmt.Println()
	fmt.Println("Benchmark")
	fmt.Println("=========")
	fmt.Printf("Requests: %d (ok: %d, failed: %d)\n", snap.TotalRequests, snap.SuccessRequests, snap.FailedRequests)
	fmt.Printf("Throughput: %.2f req/s\n", snap.OverallRPS)
	fmt.Printf("Latency: avg %v, p99 %v\n",
		snap.AverageLatency.Round(time.Microsecond), snap.P99Latency.Round(time.Microsecond))
	fmt.Printf("Error rate: %.2f%%\n", snap.ErrorRate*100)
}
