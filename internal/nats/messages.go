package nats

import (
	"encoding/json"
	"fmt"
)

// Subjects used by framegate.
const (
	SubjectDetections       = "framegate.detections"
	SubjectMetadata         = "framegate.metadata"
	SubjectControlPrefix    = "framegate.control"
	SubjectRecordingsPrefix = "framegate.recordings"
)

// Recording event kinds, the last token of a recordings subject.
const (
	KindStarted         = "started"
	KindExtended        = "extended"
	KindFinished        = "finished"
	KindFailed          = "failed"
	KindTranscoded      = "transcoded"
	KindTranscodeFailed = "transcode_failed"
)

// SubjectControl returns the subject for a control action such as "toggle".
func SubjectControl(action string) string {
	return fmt.Sprintf("%s.%s", SubjectControlPrefix, action)
}

// SubjectRecording returns the subject a recording event kind is published on.
func SubjectRecording(kind string) string {
	return fmt.Sprintf("%s.%s", SubjectRecordingsPrefix, kind)
}

// DetectionMessage signals a detection from an upstream analyzer.
type DetectionMessage struct {
	SequenceID int    `json:"sequence_id"`
	Timestamp  string `json:"timestamp,omitempty"`
}

// Marshal serializes the message to JSON.
func (m DetectionMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalDetection parses a detection message. The sequence id is
// required; an empty object is rejected.
func UnmarshalDetection(data []byte) (DetectionMessage, error) {
	var raw struct {
		SequenceID *int   `json:"sequence_id"`
		Timestamp  string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return DetectionMessage{}, err
	}
	if raw.SequenceID == nil {
		return DetectionMessage{}, fmt.Errorf("missing sequence_id")
	}
	return DetectionMessage{SequenceID: *raw.SequenceID, Timestamp: raw.Timestamp}, nil
}

// ControlMessage is a control command. An empty payload is a valid command
// with no reason attached.
type ControlMessage struct {
	Timestamp string `json:"timestamp,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalControl parses a control message.
func UnmarshalControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	if len(data) == 0 {
		return m, nil
	}
	err := json.Unmarshal(data, &m)
	return m, err
}
