// Package output implements the frame gate: it admits frames to the primary
// sink according to the enable flag and keyframes, keeps the emitted
// timeline continuous across pauses, and drives the pre-roll buffer,
// detection recordings, webhook, timestamp log and metadata file.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/framegate/internal/events"
	"github.com/smazurov/framegate/internal/frame"
	"github.com/smazurov/framegate/internal/logging"
	"github.com/smazurov/framegate/internal/metadata"
	"github.com/smazurov/framegate/internal/metrics"
	"github.com/smazurov/framegate/internal/preroll"
	"github.com/smazurov/framegate/internal/recording"
	"github.com/smazurov/framegate/internal/sink"
)

// ErrClosed is returned by SubmitFrame after Close.
var ErrClosed = errors.New("output closed")

// Notifier delivers detection frames.
type Notifier interface {
	Notify(ctx context.Context, data []byte, timestampUs int64)
	SetURL(url string)
}

// Config holds the gate settings.
type Config struct {
	Pause            bool    // start disabled
	PreDetectionSecs float64 // pre-roll history length
	Framerate        float64 // used to size the pre-roll buffer
	TimestampPath    string  // timestamp log, empty to disable
	MetadataPath     string  // metadata file, "-" for stdout, empty to disable
	MetadataFormat   metadata.Format
	Flush            bool // flush the timestamp log after every line
}

// Components are the collaborators the gate drives. Only Sink is required.
type Components struct {
	Sink      sink.Sink
	Recorder  *recording.Manager
	Notifier  Notifier
	Publisher events.Publisher
	Logger    logging.Logger
}

// Settings are the values that can change while running.
type Settings struct {
	WebhookURL     string
	RecordDuration time.Duration
}

// Status is a point-in-time view of the gate.
type Status struct {
	State           string            `json:"state" example:"running" doc:"Gate state"`
	Enabled         bool              `json:"enabled" doc:"Whether output is enabled"`
	TimeOffsetUs    int64             `json:"time_offset_us" doc:"Offset subtracted from incoming timestamps"`
	LastTimestampUs int64             `json:"last_timestamp_us" doc:"Last emitted timestamp"`
	PrerollFrames   int               `json:"preroll_frames" doc:"Frames held in the pre-roll buffer"`
	PrerollCapacity int               `json:"preroll_capacity" doc:"Pre-roll buffer bound"`
	MetadataQueued  int               `json:"metadata_queued" doc:"Metadata entries waiting for a frame"`
	Recording       *recording.Status `json:"recording,omitempty" doc:"Active detection recording"`
}

// Output is the gate controller. All methods are safe for concurrent use;
// frames are processed one at a time.
type Output struct {
	enabled atomic.Bool

	mu            sync.Mutex
	state         State
	timeOffset    int64
	lastTimestamp int64
	detectionSeq  int
	closed        bool

	sink      sink.Sink
	preroll   *preroll.Buffer
	recorder  *recording.Manager
	notifier  Notifier
	publisher events.Publisher
	logger    logging.Logger

	timestamps *timestampLog
	meta       *metadata.Writer
	metaFile   io.Closer // nil for stdout
	metaQueue  []metadata.Entry

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the gate. Failing to open the timestamp log or metadata file is fatal.
func New(cfg Config, c Components) (*Output, error) {
	if c.Sink == nil {
		return nil, errors.New("output requires a sink")
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Output{
		state:        StateWaitingKeyframe,
		detectionSeq: -1,
		sink:         c.Sink,
		preroll:      preroll.New(preroll.MaxFrames(cfg.PreDetectionSecs, cfg.Framerate)),
		recorder:     c.Recorder,
		notifier:     c.Notifier,
		publisher:    c.Publisher,
		logger:       c.Logger,
		ctx:          ctx,
		cancel:       cancel,
	}
	o.enabled.Store(!cfg.Pause)
	metrics.SetGateEnabled(!cfg.Pause)

	if cfg.TimestampPath != "" {
		l, err := openTimestampLog(cfg.TimestampPath, cfg.Flush)
		if err != nil {
			cancel()
			return nil, err
		}
		o.timestamps = l
	}

	if cfg.MetadataPath != "" {
		if err := o.openMetadata(cfg.MetadataPath, cfg.MetadataFormat); err != nil {
			cancel()
			if o.timestamps != nil {
				_ = o.timestamps.close()
			}
			return nil, err
		}
	}

	o.logger.Info("Output created",
		"enabled", !cfg.Pause,
		"preroll_frames", o.preroll.Cap(),
		"timestamps", cfg.TimestampPath,
		"metadata", cfg.MetadataPath)

	return o, nil
}

func (o *Output) openMetadata(path string, format metadata.Format) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		fp, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to open metadata file %s: %w", path, err)
		}
		w = fp
		o.metaFile = fp
	}
	o.meta = metadata.NewWriter(w, format)
	if err := o.meta.Start(); err != nil {
		if o.metaFile != nil {
			_ = o.metaFile.Close()
		}
		return fmt.Errorf("failed to start metadata output: %w", err)
	}
	return nil
}

// Signal toggles the enable flag. The gate reacts on the next frame.
func (o *Output) Signal() {
	for {
		old := o.enabled.Load()
		if o.enabled.CompareAndSwap(old, !old) {
			metrics.SetGateEnabled(!old)
			o.logger.Info("Output toggled", "enabled", !old)
			o.publish(events.OutputToggledEvent{Enabled: !old, Timestamp: time.Now().Format(time.RFC3339)})
			return
		}
	}
}

// Enabled reports the enable flag.
func (o *Output) Enabled() bool {
	return o.enabled.Load()
}

// NotifyDetection arms the webhook for the next emitted frame and opens or
// extends the detection recording at the last emitted timestamp.
func (o *Output) NotifyDetection(sequenceID int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	o.detectionSeq = sequenceID
	metrics.RecordDetection()
	now := o.lastTimestamp

	if o.recorder != nil {
		o.recorder.OnDetection(sequenceID, now)
	}

	o.publish(events.DetectionEvent{
		SequenceID:  sequenceID,
		TimestampUs: now,
		Timestamp:   time.Now().Format(time.RFC3339),
	})
}

// MetadataReady queues a metadata entry for the next emitted frame.
// Ignored when no metadata output is configured.
func (o *Output) MetadataReady(e metadata.Entry) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.meta == nil || o.closed {
		return
	}
	o.metaQueue = append(o.metaQueue, e)
}

// SubmitFrame processes one frame. A non-nil error is fatal: the frame
// could not be written to a sink the gate had decided to write.
func (o *Output) SubmitFrame(data []byte, timestampUs int64, keyframe bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	metrics.RecordFrameSubmitted()

	f := frame.Frame{Data: data, TimestampUs: timestampUs, Keyframe: keyframe}

	if o.recorder != nil && o.recorder.TakePendingFlush() {
		n, err := o.preroll.Flush(timestampUs, o.timeOffset, o.recorder.WritePreRoll)
		if err != nil {
			return err
		}
		o.logger.Debug("Flushed pre-roll", "frames", n, "cutoff_us", timestampUs)
	}

	o.preroll.Push(f)
	metrics.SetPrerollFrames(o.preroll.Len())

	flags := f.Flags()
	if !o.enabled.Load() {
		o.state = StateDisabled
	} else if o.state == StateDisabled {
		o.state = StateWaitingKeyframe
	}
	if o.state == StateWaitingKeyframe && keyframe {
		o.state = StateRunning
		flags |= frame.FlagRestart
	}
	if o.state != StateRunning {
		if o.state == StateDisabled {
			metrics.RecordFrameDropped(metrics.DropDisabled)
		} else {
			metrics.RecordFrameDropped(metrics.DropWaitingKeyframe)
		}
		return nil
	}

	if flags.Has(frame.FlagRestart) {
		o.timeOffset = timestampUs - o.lastTimestamp
		metrics.RecordGateRestart()
		o.logger.Debug("Output restarted", "time_offset_us", o.timeOffset)
	}
	o.lastTimestamp = timestampUs - o.timeOffset

	return o.emit(f, flags)
}

// emit runs the per-frame outputs for an admitted frame, in order.
func (o *Output) emit(f frame.Frame, flags frame.Flags) error {
	if err := o.sink.Write(f.Data, o.lastTimestamp, flags); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	metrics.RecordFrameEmitted(len(f.Data))

	if o.timestamps != nil {
		if err := o.timestamps.write(o.lastTimestamp); err != nil {
			return err
		}
	}

	if o.meta != nil && len(o.metaQueue) > 0 {
		entry := o.metaQueue[0]
		o.metaQueue[0] = nil
		o.metaQueue = o.metaQueue[1:]
		if err := o.meta.Write(entry); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
	}

	if o.detectionSeq >= 0 {
		o.logger.Debug("Sending detection webhook", "sequence", o.detectionSeq)
		if o.notifier != nil {
			o.notifier.Notify(o.ctx, f.Data, f.TimestampUs)
		}
		o.detectionSeq = -1
	}

	if o.recorder != nil {
		out := frame.Frame{Data: f.Data, TimestampUs: o.lastTimestamp, Keyframe: f.Keyframe}
		if err := o.recorder.OnFrame(out); err != nil {
			return err
		}
	}
	return nil
}

// UpdateSettings applies reloaded configuration.
func (o *Output) UpdateSettings(s Settings) {
	if o.notifier != nil {
		o.notifier.SetURL(s.WebhookURL)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.recorder != nil && s.RecordDuration > 0 {
		o.recorder.SetRecordDuration(s.RecordDuration)
	}
	o.logger.Info("Output settings updated", "webhook", s.WebhookURL != "", "record_duration", s.RecordDuration)
}

// Status returns a snapshot of the gate.
func (o *Output) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		State:           o.state.String(),
		Enabled:         o.enabled.Load(),
		TimeOffsetUs:    o.timeOffset,
		LastTimestampUs: o.lastTimestamp,
		PrerollFrames:   o.preroll.Len(),
		PrerollCapacity: o.preroll.Cap(),
		MetadataQueued:  len(o.metaQueue),
	}
	if o.recorder != nil {
		st.Recording = o.recorder.Status()
	}
	return st
}

// Close ends any detection recording and closes every output. Safe to call more than once.
func (o *Output) Close() error {
	o.cancel()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	var errs []error
	if o.recorder != nil {
		errs = append(errs, o.recorder.Close())
	}
	errs = append(errs, o.sink.Close())
	if o.timestamps != nil {
		errs = append(errs, o.timestamps.close())
	}
	if o.meta != nil {
		errs = append(errs, o.meta.Stop())
		if o.metaFile != nil {
			errs = append(errs, o.metaFile.Close())
		}
	}
	o.preroll.Reset()
	metrics.SetPrerollFrames(0)

	return errors.Join(errs...)
}

func (o *Output) publish(ev events.Event) {
	if o.publisher != nil {
		o.publisher.Publish(ev)
	}
}
