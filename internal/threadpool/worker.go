package threadpool

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// State is the lifecycle position of a Worker.
type State int32

const (
	StateIdle State = iota
	StateExecuting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker is one long-lived goroutine pulling jobs from the shared queue.
type Worker struct {
	id    int
	state atomic.Int32

	// done is the join handle. The pool takes it during Close and leaves nil.
	done  chan struct{}
	fault *Fault
}

func newWorker(id int, rx *Dispatch, p *ThreadPool) *Worker {
	w := &Worker{id: id}
	done := make(chan struct{})
	w.done = done

	p.log.Debug("", "creating worker %d", id)
	go w.run(done, rx, p)
	return w
}

// ID returns the worker's 1-based identifier.
func (w *Worker) ID() int {
	return w.id
}

// State returns the current state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) scope() string {
	return fmt.Sprintf("worker-%d", w.id)
}

func (w *Worker) run(done chan struct{}, rx *Dispatch, p *ThreadPool) {
	defer close(done)
	defer rx.Detach()

	scope := w.scope()
	p.observer.WorkerStarted(w.id)

	for {
		job, ok := rx.Receive()
		if !ok {
			p.log.Debug(scope, "queue closed, shutting down")
			break
		}

		w.state.Store(int32(StateExecuting))
		p.observer.JobStarted(w.id)
		p.log.Debug(scope, "received job, executing")

		start := time.Now()
		fault := w.execute(job)
		elapsed := time.Since(start)
		p.observer.JobFinished(w.id, elapsed, fault)

		if fault != nil {
			p.faulted.Add(1)
			if !p.recoverPanics {
				p.log.Error(scope, "job panicked, worker retiring: %v", fault.Value)
				w.fault = fault
				break
			}
			p.log.Error(scope, "job panicked: %v\n%s", fault.Value, fault.Stack)
		} else {
			p.completed.Add(1)
			p.log.Debug(scope, "job completed in %v", elapsed)
		}
		w.state.Store(int32(StateIdle))
	}

	w.state.Store(int32(StateStopped))
	p.observer.WorkerStopped(w.id, w.fault)
}

func (w *Worker) execute(job Job) (fault *Fault) {
	defer func() {
		if r := recover(); r != nil {
			fault = &Fault{Value: r, Stack: debug.Stack()}
		}
	}()
	job()
	return nil
}

// join waits for the goroutine to exit. Only the first call waits.
func (w *Worker) join() error {
	done := w.done
	if done == nil {
		return nil
	}
	w.done = nil

	<-done
	if w.fault != nil {
		return &JoinError{WorkerID: w.id, Fault: w.fault}
	}
	return nil
}
