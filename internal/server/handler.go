package server

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"strings"
	"time"

	"mini-web-server/internal/logger"
	"mini-web-server/internal/metrics"
)

//go:embed static/*.html
var staticFiles embed.FS

// Status lines written by the handler.
const (
	StatusOK       = "HTTP/1.1 200 OK"
	StatusNotFound = "HTTP/1.1 404 NOT FOUND"
)

const (
	pageWelcome = "welcome.html"
	pageError   = "error.html"

	// maxHeaderLines bounds how many header lines are drained per request.
	maxHeaderLines = 100
)

type route struct {
	status string
	page   string
	slow   bool
}

// routes is keyed by the exact request line.
var routes = map[string]route{
	"GET / HTTP/1.1":      {status: StatusOK, page: pageWelcome},
	"GET /sleep HTTP/1.1": {status: StatusOK, page: pageWelcome, slow: true},
}

var notFound = route{status: StatusNotFound, page: pageError}

// Handler answers one connection with a static page.
type Handler struct {
	pages       fs.FS
	sleepDelay  time.Duration
	readTimeout time.Duration
	log         *logger.Logger
	metrics     *metrics.Metrics
}

// EmbeddedPages returns the built-in welcome and error pages.
func EmbeddedPages() fs.FS {
	pages, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return pages
}

// NewHandler creates a handler serving pages from the given file system.
func NewHandler(pages fs.FS, sleepDelay, readTimeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Handler {
	if pages == nil {
		pages = EmbeddedPages()
	}
	if log == nil {
		log = logger.Default
	}
	if m == nil {
		m = metrics.New()
	}
	return &Handler{
		pages:       pages,
		sleepDelay:  sleepDelay,
		readTimeout: readTimeout,
		log:         log,
		metrics:     m,
	}
}

// Serve reads one request from conn, writes the response and closes conn.
// Failures are logged and counted; they never propagate.
func (h *Handler) Serve(conn net.Conn) {
	start := time.Now()
	peer := conn.RemoteAddr().String()
	defer func() { _ = conn.Close() }()

	if err := h.serve(conn, peer); err != nil {
		h.log.Warn(peer, "%v", err)
		h.metrics.RecordFailure(time.Since(start))
		return
	}
	h.metrics.RecordSuccess(time.Since(start))
}

func (h *Handler) serve(conn net.Conn, peer string) error {
	if h.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
	}

	r := bufio.NewReader(conn)
	requestLine, err := readLine(r)
	if err != nil {
		return fmt.Errorf("read request line: %w", err)
	}
	headers, err := readHeaders(r)
	if err != nil {
		return fmt.Errorf("read headers: %w", err)
	}

	rt, ok := routes[requestLine]
	if !ok {
		rt = notFound
	}
	h.log.Info(peer, "%q -> %s", requestLine, rt.status)
	if h.log.Enabled(logger.LevelDebug) {
		for _, hdr := range headers {
			h.log.Debug(peer, "  %s", hdr)
		}
	}

	if rt.slow && h.sleepDelay > 0 {
		time.Sleep(h.sleepDelay)
	}

	body, err := fs.ReadFile(h.pages, rt.page)
	if err != nil {
		return fmt.Errorf("load %s: %w", rt.page, err)
	}

	if _, err := io.WriteString(conn, responseHead(rt.status, len(body))); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if _, err := conn.Write(body); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func responseHead(status string, contentLength int) string {
	return fmt.Sprintf("%s\r\nContent-Length: %d\r\n\r\n", status, contentLength)
}

// readLine returns one line without its CRLF terminator.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readHeaders drains header lines up to the blank separator line.
func readHeaders(r *bufio.Reader) ([]string, error) {
	var headers []string
	for range maxHeaderLines {
		line, err := readLine(r)
		if errors.Is(err, io.EOF) {
			return headers, nil
		}
		if err != nil {
			return headers, err
		}
		if line == "" {
			return headers, nil
		}
		headers = append(headers, line)
	}
	return headers, fmt.Errorf("more than %d header lines", maxHeaderLines)
}
