package events

import (
	"time"

	"mini-web-server/internal/threadpool"
)

// PoolObserver republishes thread pool callbacks on a Bus. Job start and
// finish are not published; they are too frequent for the stream.
type PoolObserver struct {
	threadpool.NopObserver
	bus *Bus
}

var _ threadpool.Observer = (*PoolObserver)(nil)

// NewPoolObserver returns an observer publishing to bus.
func NewPoolObserver(bus *Bus) *PoolObserver {
	return &PoolObserver{bus: bus}
}

func (o *PoolObserver) WorkerStarted(id int) {
	o.bus.Publish(NewWorkerStartedEvent(id))
}

func (o *PoolObserver) JobFinished(id int, elapsed time.Duration, fault *threadpool.Fault) {
	if fault != nil {
		o.bus.Publish(NewJobFaultEvent(id, elapsed, fault))
	}
}

func (o *PoolObserver) WorkerStopped(id int, fault *threadpool.Fault) {
	o.bus.Publish(NewWorkerStoppedEvent(id, fault))
}
