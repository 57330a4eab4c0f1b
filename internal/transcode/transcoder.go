// Package transcode converts finished raw recordings into container files
// with an external command and removes the raw input on success.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/smazurov/framegate/internal/events"
	"github.com/smazurov/framegate/internal/ffmpeg"
	"github.com/smazurov/framegate/internal/logging"
	"github.com/smazurov/framegate/internal/metrics"
	"github.com/smazurov/framegate/internal/paths"
	"github.com/smazurov/framegate/internal/process"
)

// ErrAlreadyQueued is returned by Submit for a raw path whose conversion is
// still pending or running.
var ErrAlreadyQueued = errors.New("conversion already queued")

// Config controls how recordings are converted.
type Config struct {
	// Container is the output extension, "mp4" when empty.
	Container string

	// Command is an optional template with {input} and {output} placeholders.
	// When empty the ffmpeg command is built from Params.
	Command string

	// Params carries encoder settings; Input and Output are filled per job.
	Params ffmpeg.TranscodeParams

	// MaxConcurrent bounds parallel conversions, 1 when unset.
	MaxConcurrent int

	// StopTimeout is how long a cancelled conversion gets before SIGKILL.
	StopTimeout time.Duration
}

type job struct {
	output    string
	startedAt time.Time
}

// Transcoder runs conversions on a bounded process pool.
type Transcoder struct {
	cfg       Config
	pool      process.Pool
	publisher events.Publisher
	logger    logging.Logger
	ffmpegLog logging.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// New creates a Transcoder. publisher may be nil.
func New(cfg Config, publisher events.Publisher, logger logging.Logger) *Transcoder {
	if cfg.Container == "" {
		cfg.Container = ffmpeg.DefaultContainer
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}

	t := &Transcoder{
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
		ffmpegLog: logging.GetLogger("ffmpeg"),
		jobs:      make(map[string]*job),
	}

	t.pool = process.NewPool(&process.PoolOptions{
		CommandProvider:  t.command,
		OnStateChange:    t.onStateChange,
		ConfigureProcess: t.configure,
		MaxConcurrent:    cfg.MaxConcurrent,
		Logger:           logger,
	})

	return t
}

// TargetPath returns where rawPath will be converted to.
func (t *Transcoder) TargetPath(rawPath string) string {
	return paths.ReplaceExt(rawPath, t.cfg.Container)
}

// Command returns the command line that converts rawPath.
func (t *Transcoder) Command(rawPath string) string {
	output := t.TargetPath(rawPath)
	if t.cfg.Command != "" {
		return ffmpeg.ExpandTemplate(t.cfg.Command, rawPath, output)
	}
	params := t.cfg.Params
	params.Input = rawPath
	params.Output = output
	return ffmpeg.BuildTranscodeCommand(params)
}

// Submit queues rawPath for conversion and returns immediately. A path that
// is already queued is rejected with ErrAlreadyQueued and left untouched.
func (t *Transcoder) Submit(rawPath string) error {
	t.mu.Lock()
	if _, exists := t.jobs[rawPath]; exists {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyQueued, rawPath)
	}
	t.jobs[rawPath] = &job{output: t.TargetPath(rawPath)}
	t.mu.Unlock()

	if err := t.pool.Start(rawPath); err != nil {
		t.mu.Lock()
		delete(t.jobs, rawPath)
		t.mu.Unlock()
		return fmt.Errorf("queue conversion of %s: %w", rawPath, err)
	}

	t.logger.Info("Conversion queued", "input", rawPath, "output", t.TargetPath(rawPath))
	return nil
}

// Transcode converts rawPath synchronously, removing it on success.
func (t *Transcoder) Transcode(ctx context.Context, rawPath string) error {
	if _, err := os.Stat(rawPath); err != nil {
		return fmt.Errorf("raw recording: %w", err)
	}

	proc := process.NewProcess(rawPath, t.Command(rawPath), t.logger)
	t.configure(rawPath, proc)

	start := time.Now()
	code, err := proc.Run(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("convert %s: %w", rawPath, err)
	case ctx.Err() != nil:
		return fmt.Errorf("convert %s: %w", rawPath, ctx.Err())
	case code != 0:
		return fmt.Errorf("convert %s: %w", rawPath, &process.ExitError{Code: code})
	}

	if err := os.Remove(rawPath); err != nil {
		return fmt.Errorf("remove raw recording: %w", err)
	}
	t.logger.Info("Conversion completed", "input", rawPath, "output", t.TargetPath(rawPath), "duration", time.Since(start))
	return nil
}

// Wait blocks until every queued conversion has finished.
func (t *Transcoder) Wait() {
	t.pool.Wait()
}

// Close cancels pending and running conversions. Raw files are kept.
func (t *Transcoder) Close() {
	t.pool.StopAll()
}

func (t *Transcoder) command(id string) (string, error) {
	return t.Command(id), nil
}

func (t *Transcoder) configure(_ string, proc *process.Process) {
	proc.SetLogParser(t.ffmpegLog, ffmpeg.ParseLogLevel)
	proc.SetGracefulTimeout(t.cfg.StopTimeout)
}

func (t *Transcoder) onStateChange(id string, _, newState process.State, err error) {
	switch newState {
	case process.StateRunning:
		t.mu.Lock()
		if j, ok := t.jobs[id]; ok {
			j.startedAt = time.Now()
		}
		t.mu.Unlock()
		t.logger.Debug("Conversion started", "input", id)
	case process.StateExited:
		t.completed(id)
	case process.StateError:
		t.failed(id, err)
	case process.StateCancelled:
		t.take(id)
		t.logger.Warn("Conversion cancelled, raw recording kept", "input", id)
	}
}

// take removes and returns the bookkeeping for a finished job.
func (t *Transcoder) take(id string) *job {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return &job{output: t.TargetPath(id), startedAt: time.Now()}
	}
	delete(t.jobs, id)
	return j
}

func (t *Transcoder) completed(id string) {
	j := t.take(id)
	elapsed := time.Since(j.startedAt)

	if err := os.Remove(id); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Warn("Failed to remove raw recording", "input", id, "error", err)
	}

	metrics.RecordTranscode(true, elapsed.Seconds())
	t.logger.Info("Conversion completed", "input", id, "output", j.output, "duration", elapsed)
	t.publish(events.TranscodeCompletedEvent{
		Input:     id,
		Output:    j.output,
		Duration:  elapsed.Round(time.Millisecond).String(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (t *Transcoder) failed(id string, err error) {
	j := t.take(id)

	code := process.ExitCodeNotStarted
	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}

	metrics.RecordTranscode(false, 0)
	t.logger.Error("Conversion failed, raw recording kept", "input", id, "output", j.output, "exit_code", code, "error", err)
	t.publish(events.TranscodeFailedEvent{
		Input:     id,
		Output:    j.output,
		ExitCode:  code,
		Error:     fmt.Sprint(err),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (t *Transcoder) publish(ev events.Event) {
	if t.publisher != nil {
		t.publisher.Publish(ev)
	}
}
