// Package threadpool runs opaque jobs on a fixed set of long-lived worker
// goroutines.
//
// A ThreadPool owns the sending side of one Dispatch queue. Every Worker
// competes for the receiving side under a single mutex, so a job is handed
// to exactly one worker and an idle worker picks up the next job as soon as
// it is free. Jobs leave the queue in submission order; completion order
// across workers is not ordered.
//
// # Basic Usage
//
//	pool := threadpool.New(4)
//	for conn := range conns {
//	    pool.Execute(func() { handle(conn) })
//	}
//	if err := pool.Close(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Shutdown
//
// Close is the only teardown entry point. It closes the queue and joins the
// workers in construction order. Jobs already queued still run: a worker only
// sees the closed signal once the queue is empty. Execute after Close panics.
//
// # Faulting jobs
//
// By default a job that panics retires the worker that ran it. The pool keeps
// serving with one worker fewer and Close reports the panic as a *JoinError.
// WithPanicRecovery(true) keeps the worker alive instead; the panic is logged
// and counted in Stats.
package threadpool
