// Package sink writes encoded frames to their destination.
//
// New picks the variant from the options: network outputs (udp://, tcp://),
// an in-memory circular history dumped to a file on close, a plain file
// with segment/split rotation, or a null sink that drops everything.
package sink

import (
	"errors"
	"strings"
	"time"

	"github.com/smazurov/framegate/internal/frame"
	"github.com/smazurov/framegate/internal/logging"
)

// ErrClosed is returned when writing to a sink after Close.
var ErrClosed = errors.New("sink closed")

// Sink consumes frame payloads. Write does not retain data after it returns.
type Sink interface {
	Write(data []byte, timestampUs int64, flags frame.Flags) error
	Close() error
}

// Options configures a sink.
type Options struct {
	// Output is a file path (optionally with one integer verb, e.g. "clip%04d.h264"),
	// "-" for stdout, or a udp:// / tcp:// address.
	Output string

	// Literal uses Output as the file name as-is, never as a pattern.
	Literal bool

	// Segment starts a new file at the first keyframe after this much media time.
	Segment time.Duration

	// Split starts a new file every time the gate reopens.
	Split bool

	// Wrap bounds the filename counter; 0 means no wrap.
	Wrap int

	// Flush flushes buffered bytes after every write.
	Flush bool

	// Circular keeps this many bytes of recent frames in memory and writes
	// them to Output on close. 0 disables circular mode.
	Circular int
}

// New creates the sink variant selected by opts.
func New(opts Options, logger logging.Logger) (Sink, error) {
	switch {
	case isNetworkOutput(opts.Output):
		return NewNet(opts.Output, logger)
	case opts.Circular > 0:
		return NewCircular(opts, logger)
	case opts.Output != "":
		return NewFile(opts, logger)
	default:
		return Null{}, nil
	}
}

func isNetworkOutput(output string) bool {
	return strings.HasPrefix(output, "udp://") || strings.HasPrefix(output, "tcp://")
}

// Null discards every frame.
type Null struct{}

// Write implements Sink.
func (Null) Write([]byte, int64, frame.Flags) error { return nil }

// Close implements Sink.
func (Null) Close() error { return nil }
