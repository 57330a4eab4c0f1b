package events

// Event type constants for kelindar/event.
const (
	TypeOutputToggled uint32 = iota + 1
	TypeDetection
	TypeRecordingStarted
	TypeRecordingExtended
	TypeRecordingFinished
	TypeRecordingFailed
	TypeTranscodeCompleted
	TypeTranscodeFailed
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// OutputToggledEvent is published when the gate is enabled or disabled.
type OutputToggledEvent struct {
	Enabled   bool   `json:"enabled" example:"true" doc:"Whether output is enabled after the toggle"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for OutputToggledEvent.
func (e OutputToggledEvent) Type() uint32 { return TypeOutputToggled }

// DetectionEvent is published for every detection signal received.
type DetectionEvent struct {
	SequenceID  int    `json:"sequence_id" example:"1042" doc:"Upstream frame sequence that triggered the detection"`
	TimestampUs int64  `json:"timestamp_us" example:"12500000" doc:"Output timeline position of the detection"`
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DetectionEvent.
func (e DetectionEvent) Type() uint32 { return TypeDetection }

// RecordingStartedEvent is published when a detection opens a new session.
type RecordingStartedEvent struct {
	SessionID string `json:"session_id" doc:"Recording session identifier"`
	Path      string `json:"path" example:"/home/pi/detections/2025-01-27/2025-01-27-10-30-00-123.mjpeg" doc:"Raw recording path"`
	StartUs   int64  `json:"start_us" doc:"Window start on the output timeline"`
	EndUs     int64  `json:"end_us" doc:"Window end on the output timeline"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingStartedEvent.
func (e RecordingStartedEvent) Type() uint32 { return TypeRecordingStarted }

// RecordingExtendedEvent is published when a detection pushes the window end forward.
type RecordingExtendedEvent struct {
	SessionID string `json:"session_id" doc:"Recording session identifier"`
	EndUs     int64  `json:"end_us" doc:"New window end on the output timeline"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingExtendedEvent.
func (e RecordingExtendedEvent) Type() uint32 { return TypeRecordingExtended }

// RecordingFinishedEvent is published when a session window closes and the
// raw file is handed to the transcoder.
type RecordingFinishedEvent struct {
	SessionID string `json:"session_id" doc:"Recording session identifier"`
	Path      string `json:"path" doc:"Raw recording path"`
	Thumbnail string `json:"thumbnail,omitempty" doc:"Thumbnail path"`
	Frames    int    `json:"frames" doc:"Frames written including pre-roll"`
	StartUs   int64  `json:"start_us" doc:"Window start on the output timeline"`
	EndUs     int64  `json:"end_us" doc:"Window end on the output timeline"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingFinishedEvent.
func (e RecordingFinishedEvent) Type() uint32 { return TypeRecordingFinished }

// RecordingFailedEvent is published when a session cannot be opened.
type RecordingFailedEvent struct {
	Path      string `json:"path" doc:"Path that could not be prepared"`
	Error     string `json:"error" doc:"Failure description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingFailedEvent.
func (e RecordingFailedEvent) Type() uint32 { return TypeRecordingFailed }

// TranscodeCompletedEvent is published after a successful conversion.
type TranscodeCompletedEvent struct {
	Input     string `json:"input" doc:"Raw recording that was converted and removed"`
	Output    string `json:"output" doc:"Converted file"`
	Duration  string `json:"duration" example:"4.2s" doc:"Conversion wall time"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TranscodeCompletedEvent.
func (e TranscodeCompletedEvent) Type() uint32 { return TypeTranscodeCompleted }

// TranscodeFailedEvent is published when a conversion fails. The raw file is kept.
type TranscodeFailedEvent struct {
	Input     string `json:"input" doc:"Raw recording retained for manual recovery"`
	Output    string `json:"output" doc:"Intended converted file"`
	ExitCode  int    `json:"exit_code" doc:"Converter exit code, -1 if it never started"`
	Error     string `json:"error" doc:"Failure description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TranscodeFailedEvent.
func (e TranscodeFailedEvent) Type() uint32 { return TypeTranscodeFailed }
