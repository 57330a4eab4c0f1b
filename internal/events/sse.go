package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges a typed subscription to a channel for select-based
// consumers such as the SSE endpoint. Events are dropped when ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
