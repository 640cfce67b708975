package threadpool

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

var (
	// ErrSenderClosed is returned by Send once the queue has been closed.
	ErrSenderClosed = errors.New("threadpool: dispatch queue is closed")
	// ErrNoReceivers is returned by Send when every receiver has detached,
	// so the job could never run.
	ErrNoReceivers = errors.New("threadpool: no worker left to receive jobs")
)

// Job is a unit of work. It runs exactly once, on some worker goroutine.
type Job func()

// Dispatch is an unbounded FIFO of jobs with one sending side and a receiving
// side shared by any number of workers. Each job is delivered to one receiver.
type Dispatch struct {
	mu        sync.Mutex
	ready     *sync.Cond
	jobs      *queue.Queue
	closed    bool
	receivers int
}

// NewDispatch returns an open queue with no receivers attached.
func NewDispatch() *Dispatch {
	d := &Dispatch{jobs: queue.New()}
	d.ready = sync.NewCond(&d.mu)
	return d
}

// Attach registers one more receiver.
func (d *Dispatch) Attach() {
	d.mu.Lock()
	d.receivers++
	d.mu.Unlock()
}

// Detach removes a receiver. Once the last one is gone Send fails with
// ErrNoReceivers.
func (d *Dispatch) Detach() {
	d.mu.Lock()
	if d.receivers > 0 {
		d.receivers--
	}
	d.mu.Unlock()
}

// Receivers returns the number of attached receivers.
func (d *Dispatch) Receivers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.receivers
}

// Send appends job to the queue and wakes one waiting receiver.
func (d *Dispatch) Send(job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrSenderClosed
	}
	if d.receivers == 0 {
		return ErrNoReceivers
	}

	d.jobs.Add(job)
	d.ready.Signal()
	return nil
}

// Receive blocks until a job is available and returns it. ok is false once
// the queue is closed and empty.
func (d *Dispatch) Receive() (job Job, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for d.jobs.Length() == 0 && !d.closed {
		d.ready.Wait()
	}
	if d.jobs.Length() == 0 {
		return nil, false
	}
	return d.jobs.Remove().(Job), true
}

// Close relinquishes the sending side. Pending jobs stay receivable.
// Calling Close more than once has no further effect.
func (d *Dispatch) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	d.ready.Broadcast()
}

// Len returns the number of jobs waiting for a receiver.
func (d *Dispatch) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.jobs.Length()
}
