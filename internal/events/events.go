// Package events publishes pool and server lifecycle notifications to any
// number of subscribers, such as the admin websocket stream.
package events

import (
	"time"

	"mini-web-server/internal/threadpool"
)

// EventType names what happened.
type EventType string

const (
	// EventWorkerStarted is emitted when a worker goroutine begins its loop.
	EventWorkerStarted EventType = "worker_started"
	// EventWorkerStopped is emitted when a worker leaves its loop.
	EventWorkerStopped EventType = "worker_stopped"
	// EventJobFault is emitted when a job panics.
	EventJobFault EventType = "job_fault"
	// EventServerListening is emitted once the listener is bound.
	EventServerListening EventType = "server_listening"
	// EventServerStopped is emitted after the pool has been joined.
	EventServerStopped EventType = "server_stopped"
)

// Event is one notification.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	WorkerID  int       `json:"worker_id,omitempty"`
	Data      EventData `json:"data,omitempty"`
}

// EventData carries type-specific details.
type EventData struct {
	Addr    string `json:"addr,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`
	Retired bool   `json:"retired,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewWorkerStartedEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerStarted,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewWorkerStoppedEvent records a worker exit; a non-nil fault means the job
// it was running retired it.
func NewWorkerStoppedEvent(workerID int, fault *threadpool.Fault) Event {
	ev := Event{
		Type:      EventWorkerStopped,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
	if fault != nil {
		ev.Data.Retired = true
		ev.Data.Error = fault.Error()
	}
	return ev
}

func NewJobFaultEvent(workerID int, elapsed time.Duration, err error) Event {
	return Event{
		Type:      EventJobFault,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Elapsed: elapsed.String(),
			Error:   err.Error(),
		},
	}
}

func NewServerListeningEvent(addr string) Event {
	return Event{
		Type:      EventServerListening,
		Timestamp: time.Now(),
		Data:      EventData{Addr: addr},
	}
}

func NewServerStoppedEvent(addr string, err error) Event {
	ev := Event{
		Type:      EventServerStopped,
		Timestamp: time.Now(),
		Data:      EventData{Addr: addr},
	}
	if err != nil {
		ev.Data.Error = err.Error()
	}
	return ev
}
