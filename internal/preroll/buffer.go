// Package preroll keeps a bounded history of recent frames so a recording
// triggered by a detection can include what happened just before it.
package preroll

import (
	"math"

	"github.com/smazurov/framegate/internal/frame"
)

// MaxFrames returns how many frames cover secs of video at fps.
func MaxFrames(secs, fps float64) int {
	if secs <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Ceil(secs * fps))
}

// Buffer is a fixed-capacity FIFO of frames. When full, a push evicts the
// oldest frame. Not safe for concurrent use; the output stage serializes access.
type Buffer struct {
	frames []frame.Frame
	size   int
	head   int // index of the oldest frame
	count  int
}

// New creates a buffer holding at most maxFrames frames. A zero capacity
// makes every operation a no-op.
func New(maxFrames int) *Buffer {
	if maxFrames < 0 {
		maxFrames = 0
	}
	return &Buffer{
		frames: make([]frame.Frame, maxFrames),
		size:   maxFrames,
	}
}

// Cap returns the configured capacity.
func (b *Buffer) Cap() int {
	return b.size
}

// Len returns the number of buffered frames.
func (b *Buffer) Len() int {
	return b.count
}

// Push stores a copy of f, evicting the oldest frame if the buffer is full.
func (b *Buffer) Push(f frame.Frame) {
	if b.size == 0 {
		return
	}

	tail := (b.head + b.count) % b.size
	b.frames[tail] = f.Clone()
	if b.count < b.size {
		b.count++
	} else {
		b.head = (b.head + 1) % b.size
	}
}

// Frames returns the buffered frames oldest first.
func (b *Buffer) Frames() []frame.Frame {
	out := make([]frame.Frame, 0, b.count)
	for i := range b.count {
		out = append(out, b.frames[(b.head+i)%b.size])
	}
	return out
}

// Flush hands every frame older than cutoff to write, oldest first, with its
// timestamp shifted back by offset. Delivery stops at the first frame at or
// after the cutoff. The buffer is emptied whatever happens: frames at or
// after the cutoff are dropped because the live path delivers them again.
func (b *Buffer) Flush(cutoffUs, offsetUs int64, write func(frame.Frame) error) (int, error) {
	defer b.Reset()

	flushed := 0
	for i := range b.count {
		f := b.frames[(b.head+i)%b.size]
		if f.TimestampUs >= cutoffUs {
			break
		}
		f.TimestampUs -= offsetUs
		if err := write(f); err != nil {
			return flushed, err
		}
		flushed++
	}
	return flushed, nil
}

// Reset drops every buffered frame.
func (b *Buffer) Reset() {
	clear(b.frames)
	b.head = 0
	b.count = 0
}
