package nats

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/smazurov/framegate/internal/events"
)

// Publisher sends raw payloads to a subject. *Client implements it.
type Publisher interface {
	Publish(subject string, data []byte)
}

// Bridge forwards recording and transcode events from the event bus to
// framegate.recordings.<kind>.
type Bridge struct {
	publisher Publisher
	eventBus  *events.Bus
	unsubs    []func()
	logger    *slog.Logger
	mu        sync.Mutex
}

// NewBridge creates a bus-to-NATS bridge.
func NewBridge(publisher Publisher, eventBus *events.Bus, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		publisher: publisher,
		eventBus:  eventBus,
		logger:    logger.With("component", "nats-bridge"),
	}
}

// Start subscribes to the bus. Calling Start twice is a no-op.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unsubs != nil {
		return
	}

	b.unsubs = []func(){
		b.eventBus.Subscribe(func(e events.RecordingStartedEvent) { b.forward(KindStarted, e) }),
		b.eventBus.Subscribe(func(e events.RecordingExtendedEvent) { b.forward(KindExtended, e) }),
		b.eventBus.Subscribe(func(e events.RecordingFinishedEvent) { b.forward(KindFinished, e) }),
		b.eventBus.Subscribe(func(e events.RecordingFailedEvent) { b.forward(KindFailed, e) }),
		b.eventBus.Subscribe(func(e events.TranscodeCompletedEvent) { b.forward(KindTranscoded, e) }),
		b.eventBus.Subscribe(func(e events.TranscodeFailedEvent) { b.forward(KindTranscodeFailed, e) }),
	}
	b.logger.Info("NATS bridge forwarding recording events", "prefix", SubjectRecordingsPrefix)
}

func (b *Bridge) forward(kind string, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Warn("Failed to marshal event", "kind", kind, "error", err)
		return
	}
	b.publisher.Publish(SubjectRecording(kind), data)
	b.logger.Debug("Forwarded event", "kind", kind)
}

// Stop unsubscribes from the bus.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}
