package threadpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"mini-web-server/internal/logger"
)

// ThreadPool runs jobs on a fixed number of workers.
type ThreadPool struct {
	workers []*Worker
	queue   *Dispatch

	// sender is the submission side of queue; nil once Close has started.
	mu     sync.RWMutex
	sender *Dispatch

	log           *logger.Logger
	recoverPanics bool
	observer      Observer

	submitted atomic.Uint64
	completed atomic.Uint64
	faulted   atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// New starts a pool of size workers sharing one dispatch queue. It panics if
// size is not positive. All worker goroutines have been spawned when New
// returns.
func New(size int, opts ...Option) *ThreadPool {
	if size <= 0 {
		panic(fmt.Sprintf("threadpool: size must be positive, got %d", size))
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	rx := NewDispatch()
	p := &ThreadPool{
		queue:         rx,
		sender:        rx,
		log:           o.log,
		recoverPanics: o.recoverPanics,
		observer:      o.observer(),
	}

	p.log.Info("", "setting up %d workers", size)
	p.workers = make([]*Worker, 0, size)
	for id := 1; id <= size; id++ {
		rx.Attach()
		p.workers = append(p.workers, newWorker(id, rx, p))
	}
	return p
}

// Execute queues f to run on one of the workers and returns without waiting
// for it. It panics if the pool is closed or no worker is left to run f;
// both mean the caller kept submitting after shutdown.
func (p *ThreadPool) Execute(f func()) {
	if f == nil {
		panic("threadpool: nil job")
	}

	p.mu.RLock()
	sender := p.sender
	p.mu.RUnlock()

	if sender == nil {
		panic(fmt.Errorf("threadpool: execute: %w", ErrSenderClosed))
	}

	p.submitted.Add(1)
	if err := sender.Send(Job(f)); err != nil {
		p.submitted.Add(^uint64(0))
		panic(fmt.Errorf("threadpool: execute: %w", err))
	}
}

// Close stops accepting jobs, lets the workers drain the queue and waits for
// every worker to exit, in construction order. Workers retired by a
// panicking job are reported as *JoinError values joined together.
// Subsequent calls wait for the first one and return the same result.
func (p *ThreadPool) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		sender := p.sender
		p.sender = nil
		p.mu.Unlock()

		p.log.Info("", "shutting down %d workers", len(p.workers))
		sender.Close()

		var errs []error
		for _, w := range p.workers {
			if err := w.join(); err != nil {
				p.log.Error(w.scope(), "%v", err)
				errs = append(errs, err)
			}
			p.log.Debug(w.scope(), "joined")
		}
		p.closeErr = errors.Join(errs...)
		p.log.Info("", "thread pool stopped")
	})
	return p.closeErr
}

// Size returns the number of workers the pool was built with.
func (p *ThreadPool) Size() int {
	return len(p.workers)
}

// WorkerInfo is a point-in-time view of one worker.
type WorkerInfo struct {
	ID    int    `json:"id"`
	State string `json:"state"`
}

// Workers returns the state of every worker in construction order.
func (p *ThreadPool) Workers() []WorkerInfo {
	infos := make([]WorkerInfo, len(p.workers))
	for i, w := range p.workers {
		infos[i] = WorkerInfo{ID: w.ID(), State: w.State().String()}
	}
	return infos
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers   int    `json:"workers"`
	Alive     int    `json:"alive"`
	Busy      int    `json:"busy"`
	Queued    int    `json:"queued"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Faulted   uint64 `json:"faulted"`
}

// Stats returns current counters. Values are read independently and may be
// slightly inconsistent with each other while jobs are running.
func (p *ThreadPool) Stats() Stats {
	s := Stats{
		Workers:   len(p.workers),
		Queued:    p.queue.Len(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Faulted:   p.faulted.Load(),
	}
	for _, w := range p.workers {
		switch w.State() {
		case StateExecuting:
			s.Busy++
			s.Alive++
		case StateIdle:
			s.Alive++
		}
	}
	return s
}

// QueueLen returns the number of jobs waiting for a worker.
func (p *ThreadPool) QueueLen() int {
	return p.queue.Len()
}
