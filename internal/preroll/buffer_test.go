package preroll

import (
	"errors"
	"testing"

	"github.com/smazurov/framegate/internal/frame"
)

func frameAt(ts int64) frame.Frame {
	return frame.Frame{Data: []byte{byte(ts)}, TimestampUs: ts, Keyframe: ts%3 == 0}
}

func TestMaxFrames(t *testing.T) {
	tests := []struct {
		secs, fps float64
		want      int
	}{
		{2, 30, 60},
		{1.5, 29.97, 45},
		{0.1, 25, 3},
		{0, 30, 0},
		{3, 0, 0},
	}
	for _, tt := range tests {
		if got := MaxFrames(tt.secs, tt.fps); got != tt.want {
			t.Errorf("MaxFrames(%v, %v) = %d, want %d", tt.secs, tt.fps, got, tt.want)
		}
	}
}

func TestPushNeverExceedsCapacity(t *testing.T) {
	b := New(4)
	for i := range 20 {
		b.Push(frameAt(int64(i)))
		if b.Len() > b.Cap() {
			t.Fatalf("after push %d: len %d > cap %d", i, b.Len(), b.Cap())
		}
	}

	got := b.Frames()
	for i, f := range got {
		if want := int64(16 + i); f.TimestampUs != want {
			t.Errorf("frame %d ts = %d, want %d (oldest evicted first)", i, f.TimestampUs, want)
		}
	}
}

func TestPushCopiesPayload(t *testing.T) {
	b := New(2)
	data := []byte{1, 2}
	b.Push(frame.Frame{Data: data, TimestampUs: 1})
	data[0] = 7

	if b.Frames()[0].Data[0] != 1 {
		t.Error("buffer shares payload with caller")
	}
}

func TestZeroCapacityIsNoop(t *testing.T) {
	b := New(0)
	b.Push(frameAt(1))
	if b.Len() != 0 {
		t.Errorf("len = %d, want 0", b.Len())
	}
	n, err := b.Flush(100, 0, func(frame.Frame) error {
		t.Error("write called on empty buffer")
		return nil
	})
	if n != 0 || err != nil {
		t.Errorf("Flush = (%d, %v), want (0, nil)", n, err)
	}
}

func TestFlushDeliversOlderFramesInOrder(t *testing.T) {
	b := New(10)
	for _, ts := range []int64{100, 200, 300, 400, 500} {
		b.Push(frameAt(ts))
	}

	var got []int64
	n, err := b.Flush(400, 50, func(f frame.Frame) error {
		got = append(got, f.TimestampUs)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []int64{50, 150, 250}
	if n != len(want) || len(got) != len(want) {
		t.Fatalf("flushed %v (n=%d), want %v", got, n, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("flushed %v, want %v", got, want)
			break
		}
	}
	if b.Len() != 0 {
		t.Errorf("buffer holds %d frames after flush; frames at/after cutoff must be dropped", b.Len())
	}
}

func TestFlushClearsWhenNothingQualifies(t *testing.T) {
	b := New(3)
	b.Push(frameAt(900))
	b.Push(frameAt(1000))

	n, _ := b.Flush(900, 0, func(frame.Frame) error {
		t.Error("no frame is older than the cutoff")
		return nil
	})
	if n != 0 {
		t.Errorf("flushed %d, want 0", n)
	}
	if b.Len() != 0 {
		t.Errorf("len = %d after flush, want 0", b.Len())
	}
}

func TestFlushAfterWraparound(t *testing.T) {
	b := New(3)
	for ts := int64(1); ts <= 5; ts++ {
		b.Push(frameAt(ts * 10))
	}

	var got []int64
	_, _ = b.Flush(1000, 0, func(f frame.Frame) error {
		got = append(got, f.TimestampUs)
		return nil
	})
	if len(got) != 3 || got[0] != 30 || got[1] != 40 || got[2] != 50 {
		t.Errorf("flushed %v, want [30 40 50]", got)
	}
}

func TestFlushStopsOnWriteError(t *testing.T) {
	b := New(4)
	for _, ts := range []int64{1, 2, 3} {
		b.Push(frameAt(ts))
	}

	boom := errors.New("disk full")
	n, err := b.Flush(10, 0, func(f frame.Frame) error {
		if f.TimestampUs == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) || n != 1 {
		t.Errorf("Flush = (%d, %v), want (1, %v)", n, err, boom)
	}
	if b.Len() != 0 {
		t.Error("buffer should be cleared even when a write fails")
	}
}
