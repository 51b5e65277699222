package workers

import "fmt"

// PermanentWorkerError marks a delivery that cannot succeed no matter how
// often it is retried. The consume loop rejects it into the DLQ.
type PermanentWorkerError struct {
	Err    error
	Reason string
}

func (e *PermanentWorkerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *PermanentWorkerError) Unwrap() error { return e.Err }

// TemporaryWorkerError marks a delivery that failed on a transient
// condition. The consume loop requeues it and counts a breaker failure.
type TemporaryWorkerError struct {
	Err    error
	Reason string
}

func (e *TemporaryWorkerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *TemporaryWorkerError) Unwrap() error { return e.Err }
