// Package recording manages detection-triggered auxiliary recordings.
//
// A detection opens a session whose window runs for the configured duration
// from the detection time; later detections push the end forward. The
// session receives the pre-roll history once, then every frame the gate
// admits, writes its first live frame as a thumbnail, and when a frame
// passes the window end the raw file is closed and handed off for conversion.
package recording

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/framegate/internal/events"
	"github.com/smazurov/framegate/internal/frame"
	"github.com/smazurov/framegate/internal/logging"
	"github.com/smazurov/framegate/internal/metrics"
	"github.com/smazurov/framegate/internal/paths"
	"github.com/smazurov/framegate/internal/sink"
)

// Defaults for Config fields left empty.
const (
	DefaultRawExt         = "mjpeg"
	DefaultThumbExt       = "jpg"
	DefaultRecordDuration = 10 * time.Second
)

// Submitter receives raw recordings once their window has closed. A Submit
// error, including a duplicate path, is logged and the raw file is kept
// for manual conversion; it never ends the stream.
type Submitter interface {
	Submit(rawPath string) error
}

// Config controls where and for how long detections are recorded.
type Config struct {
	BaseDir        string        // "~" is expanded; date subdirectories are created on demand
	RecordDuration time.Duration // window length after each detection
	RawExt         string
	ThumbExt       string
	Flush          bool // flush the session file after every frame
}

// Window is the recording interval on the output timeline.
type Window struct {
	StartUs int64 `json:"start_us"`
	EndUs   int64 `json:"end_us"`
}

// Status describes the active session.
type Status struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Window    Window `json:"window"`
	Frames    int    `json:"frames"`
}

type session struct {
	id           string
	path         string
	thumbnail    string
	sink         *sink.File
	window       Window
	pendingFlush bool
	pendingThumb bool
	frames       int
}

// Manager owns at most one active session. It is not safe for concurrent
// use; the gate serializes calls under its own lock.
type Manager struct {
	cfg       Config
	submitter Submitter
	publisher events.Publisher
	logger    logging.Logger
	now       func() time.Time
	active    *session
}

// NewManager creates a Manager. submitter and publisher may be nil.
func NewManager(cfg Config, submitter Submitter, publisher events.Publisher, logger logging.Logger) *Manager {
	if cfg.RawExt == "" {
		cfg.RawExt = DefaultRawExt
	}
	if cfg.ThumbExt == "" {
		cfg.ThumbExt = DefaultThumbExt
	}
	if cfg.RecordDuration <= 0 {
		cfg.RecordDuration = DefaultRecordDuration
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = "~"
	}
	return &Manager{
		cfg:       cfg,
		submitter: submitter,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordDuration returns the current window length.
func (m *Manager) RecordDuration() time.Duration {
	return m.cfg.RecordDuration
}

// SetRecordDuration changes the window length for later detections.
func (m *Manager) SetRecordDuration(d time.Duration) {
	if d <= 0 {
		return
	}
	m.cfg.RecordDuration = d
}

// OnDetection opens a session at nowUs or extends the active one.
// nowUs is the last timestamp the gate emitted.
func (m *Manager) OnDetection(sequenceID int, nowUs int64) {
	end := nowUs + m.RecordDuration().Microseconds()

	if s := m.active; s != nil {
		if end > s.window.EndUs {
			s.window.EndUs = end
			m.logger.Info("Extending detection recording", "session", s.id, "sequence", sequenceID, "end_us", end)
			m.publish(events.RecordingExtendedEvent{
				SessionID: s.id,
				EndUs:     end,
				Timestamp: m.now().Format(time.RFC3339),
			})
		}
		return
	}

	s, err := m.open(Window{StartUs: nowUs, EndUs: end})
	if err != nil {
		metrics.RecordRecordingFailed()
		m.logger.Error("Failed to start detection recording", "sequence", sequenceID, "error", err)
		m.publish(events.RecordingFailedEvent{
			Path:      m.cfg.BaseDir,
			Error:     err.Error(),
			Timestamp: m.now().Format(time.RFC3339),
		})
		return
	}

	m.active = s
	metrics.RecordRecordingStarted()
	m.logger.Info("Starting detection recording", "session", s.id, "sequence", sequenceID, "path", s.path,
		"start_us", s.window.StartUs, "end_us", s.window.EndUs)
	m.publish(events.RecordingStartedEvent{
		SessionID: s.id,
		Path:      s.path,
		StartUs:   s.window.StartUs,
		EndUs:     s.window.EndUs,
		Timestamp: m.now().Format(time.RFC3339),
	})
}

func (m *Manager) open(w Window) (*session, error) {
	base, err := paths.ExpandHome(m.cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	if base == "" {
		base = "."
	}

	now := m.now()
	path := paths.RecordingPath(base, now, m.cfg.RawExt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}

	out, err := sink.NewFile(sink.Options{Output: path, Literal: true, Flush: m.cfg.Flush}, m.logger)
	if err != nil {
		return nil, err
	}
	if err := out.Open(w.StartUs); err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}

	return &session{
		id:           uuid.NewString(),
		path:         path,
		thumbnail:    paths.ReplaceExt(path, m.cfg.ThumbExt),
		sink:         out,
		window:       w,
		pendingFlush: true,
		pendingThumb: true,
	}, nil
}

// Active reports whether a session is open.
func (m *Manager) Active() bool {
	return m.active != nil
}

// Status returns the active session, or nil.
func (m *Manager) Status() *Status {
	s := m.active
	if s == nil {
		return nil
	}
	return &Status{SessionID: s.id, Path: s.path, Window: s.window, Frames: s.frames}
}

// TakePendingFlush reports whether the active session still needs the
// pre-roll history, clearing the request.
func (m *Manager) TakePendingFlush() bool {
	s := m.active
	if s == nil || !s.pendingFlush {
		return false
	}
	s.pendingFlush = false
	return true
}

// WritePreRoll writes a history frame to the active session.
func (m *Manager) WritePreRoll(f frame.Frame) error {
	s := m.active
	if s == nil {
		return nil
	}
	if err := s.sink.Write(f.Data, f.TimestampUs, f.Flags()); err != nil {
		return fmt.Errorf("write pre-roll to %s: %w", s.path, err)
	}
	s.frames++
	return nil
}

// OnFrame feeds an admitted frame on the output timeline to the active
// session and closes it once the frame lies past the window end.
func (m *Manager) OnFrame(f frame.Frame) error {
	s := m.active
	if s == nil {
		return nil
	}

	if err := s.sink.Write(f.Data, f.TimestampUs, f.Flags()); err != nil {
		return fmt.Errorf("write detection recording %s: %w", s.path, err)
	}
	s.frames++

	if s.pendingThumb {
		s.pendingThumb = false
		m.writeThumbnail(s, f)
	}

	if f.TimestampUs > s.window.EndUs {
		m.logger.Info("Detection recording window ended", "session", s.id,
			"start_us", s.window.StartUs, "end_us", s.window.EndUs)
		return m.finish()
	}
	return nil
}

// writeThumbnail stores f next to the recording. Failures are logged only.
func (m *Manager) writeThumbnail(s *session, f frame.Frame) {
	thumb, err := sink.NewFile(sink.Options{Output: s.thumbnail, Literal: true}, m.logger)
	if err == nil {
		err = errors.Join(thumb.Write(f.Data, f.TimestampUs, f.Flags()), thumb.Close())
	}
	if err != nil {
		m.logger.Warn("Failed to write thumbnail", "path", s.thumbnail, "error", err)
		return
	}
	m.logger.Debug("Created thumbnail", "path", s.thumbnail)
}

// finish closes the active session and hands the raw file to the submitter.
func (m *Manager) finish() error {
	s := m.active
	m.active = nil

	closeErr := s.sink.Close()
	metrics.RecordRecordingFinished()

	thumbnail := s.thumbnail
	if _, err := os.Stat(thumbnail); err != nil {
		thumbnail = ""
	}
	m.publish(events.RecordingFinishedEvent{
		SessionID: s.id,
		Path:      s.path,
		Thumbnail: thumbnail,
		Frames:    s.frames,
		StartUs:   s.window.StartUs,
		EndUs:     s.window.EndUs,
		Timestamp: m.now().Format(time.RFC3339),
	})

	if closeErr != nil {
		return fmt.Errorf("close detection recording: %w", closeErr)
	}

	if m.submitter == nil || s.frames == 0 {
		return nil
	}
	if err := m.submitter.Submit(s.path); err != nil {
		m.logger.Error("Failed to queue conversion", "path", s.path, "error", err)
	}
	return nil
}

// Close ends any active session and submits it.
func (m *Manager) Close() error {
	if m.active == nil {
		return nil
	}
	m.logger.Info("Closing detection recording on shutdown", "session", m.active.id)
	return m.finish()
}

func (m *Manager) publish(ev events.Event) {
	if m.publisher != nil {
		m.publisher.Publish(ev)
	}
}
