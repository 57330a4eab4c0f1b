// Package metrics provides Prometheus metrics for the frame gate, recordings,
// conversions and webhooks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "framegate"

// Frame drop reasons.
const (
	DropDisabled        = "disabled"
	DropWaitingKeyframe = "waiting_keyframe"
)

// Result labels shared by conversion and webhook counters.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	framesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "frames_submitted_total",
		Help:      "Frames received by the gate",
	})

	framesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "frames_emitted_total",
		Help:      "Frames written to the primary sink",
	})

	bytesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "bytes_emitted_total",
		Help:      "Payload bytes written to the primary sink",
	})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "frames_dropped_total",
		Help:      "Frames dropped by the gate",
	}, []string{"reason"})

	gateRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "restarts_total",
		Help:      "Transitions into running on a keyframe",
	})

	gateEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "enabled",
		Help:      "1 when output is enabled",
	})

	prerollFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "preroll",
		Name:      "frames",
		Help:      "Frames currently held in the pre-roll buffer",
	})

	detections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recording",
		Name:      "detections_total",
		Help:      "Detection signals received",
	})

	recordingsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recording",
		Name:      "started_total",
		Help:      "Detection recordings opened",
	})

	recordingsFinished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recording",
		Name:      "finished_total",
		Help:      "Detection recordings closed and handed to the transcoder",
	})

	recordingsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recording",
		Name:      "failed_total",
		Help:      "Detection recordings that could not be opened",
	})

	recordingActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "recording",
		Name:      "active",
		Help:      "1 while a detection recording is open",
	})

	transcodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transcode",
		Name:      "jobs_total",
		Help:      "Finished conversions by result",
	}, []string{"result"})

	transcodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "transcode",
		Name:      "duration_seconds",
		Help:      "Wall time of successful conversions",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	webhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "requests_total",
		Help:      "Webhook deliveries by result",
	}, []string{"result"})
)

// RecordFrameSubmitted counts a frame entering the gate.
func RecordFrameSubmitted() { framesSubmitted.Inc() }

// RecordFrameEmitted counts a frame written to the primary sink.
func RecordFrameEmitted(size int) {
	framesEmitted.Inc()
	bytesEmitted.Add(float64(size))
}

// RecordFrameDropped counts a frame dropped for reason.
func RecordFrameDropped(reason string) { framesDropped.WithLabelValues(reason).Inc() }

// RecordGateRestart counts a restart on a keyframe.
func RecordGateRestart() { gateRestarts.Inc() }

// SetGateEnabled reports the enable flag.
func SetGateEnabled(enabled bool) { gateEnabled.Set(boolToFloat(enabled)) }

// SetPrerollFrames reports the pre-roll buffer occupancy.
func SetPrerollFrames(n int) { prerollFrames.Set(float64(n)) }

// RecordDetection counts a detection signal.
func RecordDetection() { detections.Inc() }

// RecordRecordingStarted counts an opened session and marks it active.
func RecordRecordingStarted() {
	recordingsStarted.Inc()
	recordingActive.Set(1)
}

// RecordRecordingFinished counts a closed session and clears the active flag.
func RecordRecordingFinished() {
	recordingsFinished.Inc()
	recordingActive.Set(0)
}

// RecordRecordingFailed counts a session that could not be opened.
func RecordRecordingFailed() { recordingsFailed.Inc() }

// RecordTranscode counts a finished conversion; seconds is observed on success.
func RecordTranscode(success bool, seconds float64) {
	if success {
		transcodes.WithLabelValues(ResultSuccess).Inc()
		transcodeDuration.Observe(seconds)
		return
	}
	transcodes.WithLabelValues(ResultFailure).Inc()
}

// RecordWebhook counts a webhook delivery attempt.
func RecordWebhook(success bool) {
	if success {
		webhookRequests.WithLabelValues(ResultSuccess).Inc()
		return
	}
	webhookRequests.WithLabelValues(ResultFailure).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
