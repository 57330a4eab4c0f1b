// Package nats connects framegate to a NATS broker.
//
// Detection analyzers and operators drive the gate over core NATS
// (fire-and-forget, no JetStream); recording lifecycle events flow back out
// through the Bridge. When no broker is reachable the client logs once and
// every operation becomes a no-op. An embedded Server is available for
// single-host deployments.
//
// # Subjects
//
//	framegate.detections                 # {"sequence_id": 42, "timestamp": "..."} -> NotifyDetection
//	framegate.metadata                   # {"key": "value", ...} in field order -> MetadataReady
//	framegate.control.toggle             # {"reason": "..."} (payload optional) -> Signal
//	framegate.recordings.started         # RecordingStartedEvent
//	framegate.recordings.extended        # RecordingExtendedEvent
//	framegate.recordings.finished        # RecordingFinishedEvent
//	framegate.recordings.failed          # RecordingFailedEvent
//	framegate.recordings.transcoded      # TranscodeCompletedEvent
//	framegate.recordings.transcode_failed
//
// # Debugging with nats CLI
//
// Watch everything:
//
//	nats sub "framegate.>"
//
// Trigger a detection by hand:
//
//	nats pub framegate.detections '{"sequence_id": 1}'
//
// Flip the output:
//
//	nats pub framegate.control.toggle '{"reason":"manual"}'
package nats
