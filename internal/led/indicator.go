package led

import (
	"sync"

	"github.com/smazurov/framegate/internal/events"
	"github.com/smazurov/framegate/internal/logging"
)

// Indicator follows output and recording events: off while output is
// disabled, solid while enabled, blinking while a detection is recording.
type Indicator struct {
	controller Controller
	bus        *events.Bus
	logger     logging.Logger

	mu       sync.Mutex
	enabled  bool
	sessions map[string]struct{}
	current  Pattern
	unsubs   []func()
}

// NewIndicator creates an Indicator. enabled is the output state at startup.
func NewIndicator(c Controller, bus *events.Bus, enabled bool, logger logging.Logger) *Indicator {
	return &Indicator{
		controller: c,
		bus:        bus,
		logger:     logger,
		enabled:    enabled,
		sessions:   make(map[string]struct{}),
	}
}

// Start applies the initial pattern and subscribes to events.
func (i *Indicator) Start() {
	i.mu.Lock()
	i.apply()
	i.mu.Unlock()

	i.unsubs = append(i.unsubs,
		i.bus.Subscribe(func(e events.OutputToggledEvent) {
			i.update(func() { i.enabled = e.Enabled })
		}),
		i.bus.Subscribe(func(e events.RecordingStartedEvent) {
			i.update(func() { i.sessions[e.SessionID] = struct{}{} })
		}),
		i.bus.Subscribe(func(e events.RecordingFinishedEvent) {
			i.update(func() { delete(i.sessions, e.SessionID) })
		}),
	)
}

// Stop unsubscribes and turns the LED off.
func (i *Indicator) Stop() {
	for _, unsub := range i.unsubs {
		unsub()
	}
	i.unsubs = nil

	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.controller.Set(Off); err != nil {
		i.logger.Warn("Failed to turn status LED off", "error", err)
	}
	i.current = Off
}

// Pattern returns the pattern last applied.
func (i *Indicator) Pattern() Pattern {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

func (i *Indicator) update(change func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	change()
	i.apply()
}

func (i *Indicator) apply() {
	want := Off
	switch {
	case len(i.sessions) > 0:
		want = Blink
	case i.enabled:
		want = Solid
	}
	if want == i.current {
		return
	}
	if err := i.controller.Set(want); err != nil {
		i.logger.Warn("Failed to set status LED", "led", i.controller.Name(), "pattern", want, "error", err)
		return
	}
	i.logger.Debug("Status LED updated", "pattern", want)
	i.current = want
}
