package events

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan RecordingStartedEvent, 1)

	unsub := bus.Subscribe(func(e RecordingStartedEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(RecordingStartedEvent{SessionID: "s1", Path: "/tmp/a.mjpeg", EndUs: 5_000_000})

	select {
	case got := <-received:
		if got.Path != "/tmp/a.mjpeg" || got.EndUs != 5_000_000 {
			t.Errorf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_TypesAreIsolated(t *testing.T) {
	bus := New()
	failed := make(chan TranscodeFailedEvent, 1)
	unsub := bus.Subscribe(func(e TranscodeFailedEvent) { failed <- e })
	defer unsub()

	bus.Publish(TranscodeCompletedEvent{Input: "a.mjpeg"})

	select {
	case e := <-failed:
		t.Fatalf("failure subscriber received %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan DetectionEvent, 2)

	unsub := bus.Subscribe(func(e DetectionEvent) { received <- e })
	bus.Publish(DetectionEvent{SequenceID: 1})
	<-received

	unsub()
	bus.Publish(DetectionEvent{SequenceID: 2})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_UnknownHandlerIsNoop(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)
	unsub := SubscribeToChannel[RecordingFinishedEvent](bus, ch)
	defer unsub()

	bus.Publish(RecordingFinishedEvent{Path: "/tmp/b.mjpeg", Frames: 12})

	select {
	case ev := <-ch:
		got, ok := ev.(RecordingFinishedEvent)
		if !ok || got.Frames != 12 {
			t.Errorf("got %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not forwarded to channel")
	}
}
