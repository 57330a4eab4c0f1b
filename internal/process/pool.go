package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/framegate/internal/logging"
)

// ErrPoolClosed is returned by Start after StopAll.
var ErrPoolClosed = errors.New("process pool closed")

// Pool runs named one-shot jobs with bounded concurrency.
type Pool interface {
	// Start queues a job by ID. Returns error if the ID is already queued or running.
	Start(id string) error

	// Stop cancels a job by ID, waiting for it to exit.
	Stop(id string) error

	// GetStatus returns job info. Returns idle state if not found.
	GetStatus(id string) *Info

	// IsRunning checks if a job is currently running.
	IsRunning(id string) bool

	// Wait blocks until every queued and running job has finished.
	Wait()

	// StopAll cancels every job and waits for them to exit.
	StopAll()
}

// managedProcess tracks a job within the pool.
type managedProcess struct {
	proc      *Process
	id        string
	state     State
	queuedAt  time.Time
	startedAt time.Time
	lastError error
	cancel    context.CancelFunc
	done      chan struct{}
}

type pool struct {
	opts      PoolOptions
	processes map[string]*managedProcess
	slots     chan struct{}
	mu        sync.RWMutex
	logger    logging.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    bool
}

// NewPool creates a new process pool.
func NewPool(opts *PoolOptions) Pool {
	if opts == nil || opts.CommandProvider == nil {
		panic("PoolOptions with CommandProvider is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	var logger logging.Logger = slog.Default()
	if opts.Logger != nil {
		logger = opts.Logger
	}

	limit := opts.MaxConcurrent
	if limit < 1 {
		limit = 1
	}

	return &pool{
		opts:      *opts,
		processes: make(map[string]*managedProcess),
		slots:     make(chan struct{}, limit),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start queues a job by ID.
func (p *pool) Start(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if _, exists := p.processes[id]; exists {
		return fmt.Errorf("process %s already queued or running", id)
	}

	command, err := p.opts.CommandProvider(id)
	if err != nil {
		return fmt.Errorf("failed to generate command: %w", err)
	}

	ctx, cancel := context.WithCancel(p.ctx)
	mp := &managedProcess{
		id:       id,
		state:    StateQueued,
		queuedAt: time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
		proc:     NewProcess(id, command, p.logger),
	}
	if p.opts.ConfigureProcess != nil {
		p.opts.ConfigureProcess(id, mp.proc)
	}
	p.processes[id] = mp

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(mp.done)
		defer cancel()
		p.runProcess(ctx, mp)
	}()

	return nil
}

// runProcess waits for a slot, runs the job and reports its final state.
func (p *pool) runProcess(ctx context.Context, mp *managedProcess) {
	p.notifyStateChange(mp.id, StateIdle, StateQueued, nil)

	select {
	case p.slots <- struct{}{}:
		defer func() { <-p.slots }()
	case <-ctx.Done():
		p.finish(mp, StateCancelled, nil)
		return
	}

	if !p.transition(mp, StateRunning) {
		p.finish(mp, StateCancelled, nil)
		return
	}

	exitCode, startErr := mp.proc.Run(ctx)

	switch {
	case ctx.Err() != nil:
		p.finish(mp, StateCancelled, nil)
	case startErr != nil:
		p.finish(mp, StateError, &ExitError{Code: exitCode, Err: startErr})
	case exitCode != 0:
		p.logger.Warn("Process failed", "id", mp.id, "exit_code", exitCode)
		p.finish(mp, StateError, &ExitError{Code: exitCode})
	default:
		p.finish(mp, StateExited, nil)
	}
}

// transition moves a queued job to newState unless it is already being stopped.
func (p *pool) transition(mp *managedProcess, newState State) bool {
	p.mu.Lock()
	if mp.state != StateQueued {
		p.mu.Unlock()
		return false
	}
	oldState := mp.state
	mp.state = newState
	mp.startedAt = time.Now()
	p.mu.Unlock()

	p.notifyStateChange(mp.id, oldState, newState, nil)
	return true
}

// finish records the terminal state, forgets the job and notifies.
func (p *pool) finish(mp *managedProcess, newState State, err error) {
	p.mu.Lock()
	oldState := mp.state
	mp.state = newState
	mp.lastError = err
	if p.processes[mp.id] == mp {
		delete(p.processes, mp.id)
	}
	p.mu.Unlock()

	p.notifyStateChange(mp.id, oldState, newState, err)
}

// Stop cancels a job by ID.
func (p *pool) Stop(id string) error {
	p.mu.Lock()
	mp, exists := p.processes[id]
	if !exists {
		p.mu.Unlock()
		return nil
	}
	oldState := mp.state
	if oldState == StateStopping {
		p.mu.Unlock()
		<-mp.done
		return nil
	}
	mp.state = StateStopping
	p.mu.Unlock()

	p.notifyStateChange(id, oldState, StateStopping, nil)
	p.logger.Info("Stopping process", "id", id)

	mp.cancel()

	select {
	case <-mp.done:
	case <-time.After(15 * time.Second):
		p.logger.Warn("Timeout waiting for process to stop", "id", id)
	}
	return nil
}

// GetStatus returns job info.
func (p *pool) GetStatus(id string) *Info {
	p.mu.RLock()
	defer p.mu.RUnlock()

	mp, exists := p.processes[id]
	if !exists {
		return &Info{ID: id, State: StateIdle}
	}

	return &Info{
		ID:        id,
		State:     mp.state,
		Command:   mp.proc.Command(),
		QueuedAt:  mp.queuedAt,
		StartedAt: mp.startedAt,
		LastError: mp.lastError,
	}
}

// IsRunning checks if a job is currently running.
func (p *pool) IsRunning(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	mp, exists := p.processes[id]
	return exists && mp.state == StateRunning
}

// Wait blocks until all jobs have finished.
func (p *pool) Wait() {
	p.wg.Wait()
}

// StopAll cancels all jobs, refuses new ones and waits for exit.
func (p *pool) StopAll() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.logger.Info("Stopping all processes")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("All processes stopped")
}

// notifyStateChange invokes the OnStateChange callback if configured.
func (p *pool) notifyStateChange(id string, oldState, newState State, err error) {
	if p.opts.OnStateChange != nil {
		p.opts.OnStateChange(id, oldState, newState, err)
	}
}
