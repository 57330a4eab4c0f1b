package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFrameCounters(t *testing.T) {
	before := testutil.ToFloat64(framesEmitted)
	beforeBytes := testutil.ToFloat64(bytesEmitted)

	RecordFrameEmitted(100)
	RecordFrameEmitted(50)

	if got := testutil.ToFloat64(framesEmitted) - before; got != 2 {
		t.Errorf("frames emitted delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(bytesEmitted) - beforeBytes; got != 150 {
		t.Errorf("bytes emitted delta = %v, want 150", got)
	}
}

func TestDropReasons(t *testing.T) {
	disabled := framesDropped.WithLabelValues(DropDisabled)
	waiting := framesDropped.WithLabelValues(DropWaitingKeyframe)
	beforeDisabled := testutil.ToFloat64(disabled)
	beforeWaiting := testutil.ToFloat64(waiting)

	RecordFrameDropped(DropDisabled)
	RecordFrameDropped(DropWaitingKeyframe)
	RecordFrameDropped(DropWaitingKeyframe)

	if got := testutil.ToFloat64(disabled) - beforeDisabled; got != 1 {
		t.Errorf("disabled drops delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(waiting) - beforeWaiting; got != 2 {
		t.Errorf("waiting drops delta = %v, want 2", got)
	}
}

func TestRecordingActiveGauge(t *testing.T) {
	RecordRecordingStarted()
	if got := testutil.ToFloat64(recordingActive); got != 1 {
		t.Errorf("active = %v, want 1", got)
	}
	RecordRecordingFinished()
	if got := testutil.ToFloat64(recordingActive); got != 0 {
		t.Errorf("active = %v, want 0", got)
	}
}

func TestTranscodeResults(t *testing.T) {
	success := transcodes.WithLabelValues(ResultSuccess)
	failure := transcodes.WithLabelValues(ResultFailure)
	beforeSuccess := testutil.ToFloat64(success)
	beforeFailure := testutil.ToFloat64(failure)

	RecordTranscode(true, 1.5)
	RecordTranscode(false, 0)

	if got := testutil.ToFloat64(success) - beforeSuccess; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(failure) - beforeFailure; got != 1 {
		t.Errorf("failure delta = %v, want 1", got)
	}
}

func TestGateEnabledGauge(t *testing.T) {
	SetGateEnabled(false)
	if got := testutil.ToFloat64(gateEnabled); got != 0 {
		t.Errorf("enabled = %v, want 0", got)
	}
	SetGateEnabled(true)
	if got := testutil.ToFloat64(gateEnabled); got != 1 {
		t.Errorf("enabled = %v, want 1", got)
	}
}
