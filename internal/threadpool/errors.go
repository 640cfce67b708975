package threadpool

import "fmt"

// Fault captures a panic raised by a job.
type Fault struct {
	Value any
	Stack []byte
}

func (f *Fault) Error() string {
	return fmt.Sprintf("job panicked: %v", f.Value)
}

// Unwrap exposes the panic value when the job panicked with an error.
func (f *Fault) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}

// JoinError reports a worker that stopped because a job panicked.
type JoinError struct {
	WorkerID int
	Fault    *Fault
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("threadpool: worker %d terminated by a faulting job: %v", e.WorkerID, e.Fault.Value)
}

func (e *JoinError) Unwrap() error {
	return e.Fault
}
