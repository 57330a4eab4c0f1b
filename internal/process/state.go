package process

import (
	"fmt"
	"time"
)

// State represents the current state of a pool job.
type State string

// Job states.
const (
	StateIdle      State = "idle"      // Unknown or finished and forgotten
	StateQueued    State = "queued"    // Waiting for a free slot
	StateRunning   State = "running"   // Active
	StateStopping  State = "stopping"  // Being stopped
	StateExited    State = "exited"    // Finished with exit code 0
	StateError     State = "error"     // Failed to start or exited non-zero
	StateCancelled State = "cancelled" // Stopped before or while running
)

// Info contains information about a pool job.
type Info struct {
	ID        string
	State     State
	Command   string
	QueuedAt  time.Time
	StartedAt time.Time
	LastError error
}

// ExitError reports a job that did not exit cleanly.
type ExitError struct {
	Code int
	Err  error // start failure, nil when the process ran
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("process did not start: %v", e.Err)
	}
	return fmt.Sprintf("process exited with code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }
