package threadpool

import "time"

// Observer receives worker lifecycle callbacks. Calls are made on the worker
// goroutine itself, so implementations must be safe for concurrent use and
// should return quickly.
type Observer interface {
	WorkerStarted(id int)
	JobStarted(id int)
	JobFinished(id int, elapsed time.Duration, fault *Fault)
	WorkerStopped(id int, fault *Fault)
}

// NopObserver ignores every callback.
type NopObserver struct{}

func (NopObserver) WorkerStarted(int) {}
func (NopObserver) JobStarted(int) {}
func (NopObserver) JobFinished(int, time.Duration, *Fault) {}
func (NopObserver) WorkerStopped(int, *Fault) {}

type multiObserver []Observer

func (m multiObserver) WorkerStarted(id int) {
	for _, o := range m {
		o.WorkerStarted(id)
	}
}

func (m multiObserver) JobStarted(id int) {
	for _, o := range m {
		o.JobStarted(id)
	}
}

func (m multiObserver) JobFinished(id int, elapsed time.Duration, fault *Fault) {
	for _, o := range m {
		o.JobFinished(id, elapsed, fault)
	}
}

func (m multiObserver) WorkerStopped(id int, fault *Fault) {
	for _, o := range m {
		o.WorkerStopped(id, fault)
	}
}
