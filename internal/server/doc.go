// Package server is a minimal blocking web server built on the thread pool.
//
// The accept loop runs on the caller's goroutine. Every accepted connection
// is wrapped in a closure and handed to threadpool.ThreadPool.Execute; one
// worker reads the request line, drains the headers, picks a page and writes
// a complete response before closing the connection.
//
// Routes are matched on the exact request line:
//
//	GET / HTTP/1.1        200, welcome.html
//	GET /sleep HTTP/1.1   200, welcome.html after SleepDelay
//	anything else         404, error.html
//
// Cancelling the context passed to ListenAndServe closes the listener. Jobs
// already queued still run, then the pool is joined.
package server
