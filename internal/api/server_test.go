package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/websocket"

	"mini-web-server/internal/events"
	"mini-web-server/internal/logger"
	"mini-web-server/internal/metrics"
	"mini-web-server/internal/threadpool"
)

type fakeSource struct {
	pool    *threadpool.ThreadPool
	metrics *metrics.Metrics
}

func (f *fakeSource) Pool() *threadpool.ThreadPool { return f.pool }
func (f *fakeSource) Metrics() *metrics.Metrics    { return f.metrics }

func quietLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelError)
}

func newTestAPI(t *testing.T, withPool bool) (*httptest.Server, *events.Bus, *fakeSource) {
	t.Helper()

	reg := prometheus.NewRegistry()
	col, err := metrics.NewPoolCollector(reg)
	if err != nil {
		t.Fatalf("NewPoolCollector: %v", err)
	}

	src := &fakeSource{metrics: metrics.New()}
	if withPool {
		src.pool = threadpool.New(2,
			threadpool.WithLogger(quietLogger()),
			threadpool.WithObserver(col),
		)
		col.WatchQueue(src.pool.QueueLen)
		t.Cleanup(func() { _ = src.pool.Close() })
	}

	bus := events.NewBus()
	api := NewServer("127.0.0.1:0", src, reg, bus, quietLogger())
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return ts, bus, src
}

func TestStatusEndpoint(t *testing.T) {
	ts, _, src := newTestAPI(t, true)
	src.metrics.RecordSuccess(time.Millisecond)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running {
		t.Error("expected running status")
	}
	if status.Pool.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", status.Pool.Workers)
	}
	if status.Connections.TotalRequests != 1 {
		t.Errorf("expected 1 recorded request, got %d", status.Connections.TotalRequests)
	}
}

func TestStatusWithoutPool(t *testing.T) {
	ts, _, _ := newTestAPI(t, false)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Running {
		t.Error("expected not running without a pool")
	}

	resp2, err := http.Get(ts.URL + "/api/workers")
	if err != nil {
		t.Fatalf("GET /api/workers: %v", err)
	}
	_ = resp2.Body.Close()
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a pool, got %d", resp2.StatusCode)
	}
}

func TestStatusAfterPoolClosed(t *testing.T) {
	ts, _, src := newTestAPI(t, true)
	if err := src.pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Running {
		t.Error("expected not running once every worker has stopped")
	}
	if status.Pool.Workers != 2 || status.Pool.Alive != 0 {
		t.Errorf("unexpected pool stats %+v", status.Pool)
	}
}

func TestWorkersEndpoint(t *testing.T) {
	ts, _, _ := newTestAPI(t, true)

	resp, err := http.Get(ts.URL + "/api/workers")
	if err != nil {
		t.Fatalf("GET /api/workers: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var workers []threadpool.WorkerInfo
	if err := json.NewDecoder(resp.Body).Decode(&workers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(workers) != 2 || workers[0].ID != 1 || workers[1].ID != 2 {
		t.Errorf("unexpected workers %+v", workers)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestAPI(t, true)

	for _, path := range []string{"/api/status", "/api/workers"} {
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader("{}"))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: expected 405, got %d", path, resp.StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, src := newTestAPI(t, true)

	done := make(chan struct{})
	src.pool.Execute(func() { close(done) })
	<-done

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, name := range []string{
		"miniweb_pool_jobs_started_total",
		"miniweb_pool_workers_alive",
		"miniweb_pool_queue_depth",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %s in /metrics output", name)
		}
	}
}

func TestWebSocketStreamsEvents(t *testing.T) {
	ts, bus, _ := newTestAPI(t, true)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, err := websocket.Dial(wsURL, "", ts.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer func() { _ = ws.Close() }()

	// Wait for the handler to subscribe before publishing.
	deadline := time.Now().Add(time.Second)
	for bus.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket handler never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
	bus.Publish(events.NewServerListeningEvent("127.0.0.1:7878"))

	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg streamMessage
		if err := websocket.JSON.Receive(ws, &msg); err != nil {
			t.Fatalf("receive: %v", err)
		}
		if msg.Type != "event" {
			continue
		}
		if msg.Event.Type != events.EventServerListening || msg.Event.Data.Addr != "127.0.0.1:7878" {
			t.Errorf("unexpected event %+v", msg.Event)
		}
		return
	}
}

func TestServeShutsDownWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	src := &fakeSource{metrics: metrics.New()}
	api := NewServer(ln.Addr().String(), src, nil, nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- api.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/status"
	deadline := time.Now().Add(time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("admin server not reachable: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("admin server did not stop")
	}
}
