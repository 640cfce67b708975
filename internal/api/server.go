// Package api serves the admin surface: pool status as JSON, Prometheus
// metrics and a websocket stream of lifecycle events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"mini-web-server/internal/events"
	"mini-web-server/internal/logger"
	"mini-web-server/internal/metrics"
	"mini-web-server/internal/threadpool"
)

const statusInterval = time.Second

// Source is what the admin surface reports on. *server.Server satisfies it.
type Source interface {
	Pool() *threadpool.ThreadPool
	Metrics() *metrics.Metrics
}

// Server is the admin HTTP server.
type Server struct {
	addr     string
	source   Source
	gatherer prometheus.Gatherer
	bus      *events.Bus
	log      *logger.Logger

	wsClients atomic.Int32
	ctx       context.Context
	server    *http.Server
}

// NewServer creates an admin server. gatherer and bus may be nil, which
// disables /metrics and event streaming respectively.
func NewServer(addr string, source Source, gatherer prometheus.Gatherer, bus *events.Bus, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default
	}
	return &Server{
		addr:     addr,
		source:   source,
		gatherer: gatherer,
		bus:      bus,
		log:      log,
		ctx:      context.Background(),
	}
}

// Handler returns the admin routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/workers", s.handleWorkers)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start serves until ctx is done, then shuts down with a 5s grace period.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.ctx = ctx
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info("", "admin server listening on http://%s", ln.Addr())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Running     bool             `json:"running"`
	Pool        threadpool.Stats `json:"pool"`
	Connections metrics.Snapshot `json:"connections"`
	WSClients   int              `json:"ws_clients"`
}

func (s *Server) status() StatusResponse {
	resp := StatusResponse{
		WSClients: int(s.wsClients.Load()),
	}
	if pool := s.source.Pool(); pool != nil {
		resp.Pool = pool.Stats()
		resp.Running = resp.Pool.Alive > 0
	}
	if m := s.source.Metrics(); m != nil {
		resp.Connections = m.Snapshot()
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.status())
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pool := s.source.Pool()
	if pool == nil {
		http.Error(w, "Pool not running", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, pool.Workers())
}

// streamMessage is one websocket frame.
type streamMessage struct {
	Type   string          `json:"type"`
	Event  *events.Event   `json:"event,omitempty"`
	Status *StatusResponse `json:"status,omitempty"`
}

// handleWebSocket pushes every bus event and a periodic status frame until
// the client goes away or the server shuts down.
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.wsClients.Add(1)
	defer s.wsClients.Add(-1)
	defer func() { _ = ws.Close() }()

	var sub <-chan events.Event
	if s.bus != nil {
		sub = s.bus.Subscribe()
		defer s.bus.Unsubscribe(sub)
	}

	// The client sends nothing meaningful; a read error means it left.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var msg string
		for websocket.Message.Receive(ws, &msg) == nil {
		}
	}()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		var msg streamMessage
		select {
		case <-s.ctx.Done():
			return
		case <-gone:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			msg = streamMessage{Type: "event", Event: &ev}
		case <-ticker.C:
			status := s.status()
			msg = streamMessage{Type: "status", Status: &status}
		}

		if err := websocket.JSON.Send(ws, msg); err != nil {
			s.log.Debug(ws.Request().RemoteAddr, "websocket send: %v", err)
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("", "Failed to encode JSON: %v", err)
	}
}
