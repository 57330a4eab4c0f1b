package process

import "github.com/smazurov/framegate/internal/logging"

// CommandProvider generates the command string for a job ID.
// This allows domain-specific command generation (e.g., ffmpeg commands from a recording path).
type CommandProvider func(id string) (command string, err error)

// StateChangeCallback is called when a job state changes.
// err is an *ExitError when newState is StateError.
type StateChangeCallback func(id string, oldState, newState State, err error)

// Configurer configures a Process before it starts.
// Used for domain-specific setup (e.g., log parser, output handler).
type Configurer func(id string, proc *Process)

// PoolOptions configures a new Pool.
type PoolOptions struct {
	// CommandProvider generates the command for a given job ID (required).
	CommandProvider CommandProvider

	// OnStateChange is called when job state transitions (optional).
	OnStateChange StateChangeCallback

	// ConfigureProcess allows customization of the Process before start (optional).
	ConfigureProcess Configurer

	// MaxConcurrent bounds how many jobs run at once. Values below 1 mean 1.
	MaxConcurrent int

	// Logger for pool operations. If nil, uses slog.Default().
	Logger logging.Logger
}
