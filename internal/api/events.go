package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/framegate/internal/events"
	"github.com/smazurov/framegate/internal/output"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of toggles, detections, recordings and conversions",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"output-status":       output.Status{},
		"output-toggled":      events.OutputToggledEvent{},
		"detection":           events.DetectionEvent{},
		"recording-started":   events.RecordingStartedEvent{},
		"recording-extended":  events.RecordingExtendedEvent{},
		"recording-finished":  events.RecordingFinishedEvent{},
		"recording-failed":    events.RecordingFailedEvent{},
		"transcode-completed": events.TranscodeCompletedEvent{},
		"transcode-failed":    events.TranscodeFailedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.OutputToggledEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DetectionEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RecordingStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RecordingExtendedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RecordingFinishedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RecordingFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.TranscodeCompletedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.TranscodeFailedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current state first so clients need no separate fetch.
		if err := send.Data(s.gate.Status()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
