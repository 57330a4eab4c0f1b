package sink

import (
	"errors"

	"github.com/smazurov/framegate/internal/frame"
	"github.com/smazurov/framegate/internal/logging"
)

type circularEntry struct {
	data        []byte
	timestampUs int64
	flags       frame.Flags
}

// Circular keeps the most recent frames in memory, bounded by a byte budget,
// and writes them to its file on Close starting at the oldest keyframe held.
type Circular struct {
	file    *File
	logger  logging.Logger
	limit   int
	size    int
	entries []circularEntry
	closed  bool
}

// NewCircular creates a circular sink writing to opts.Output on close.
func NewCircular(opts Options, logger logging.Logger) (*Circular, error) {
	if opts.Circular <= 0 {
		return nil, errors.New("circular sink requires a positive size")
	}
	file, err := NewFile(Options{Output: opts.Output, Literal: opts.Literal, Flush: opts.Flush}, logger)
	if err != nil {
		return nil, err
	}
	return &Circular{file: file, logger: logger, limit: opts.Circular}, nil
}

// Write implements Sink.
func (c *Circular) Write(data []byte, timestampUs int64, flags frame.Flags) error {
	if c.closed {
		return ErrClosed
	}
	if len(data) == 0 {
		return nil
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	c.entries = append(c.entries, circularEntry{data: buf, timestampUs: timestampUs, flags: flags})
	c.size += len(buf)

	drop := 0
	for c.size > c.limit && drop < len(c.entries)-1 {
		c.size -= len(c.entries[drop].data)
		drop++
	}
	if drop > 0 {
		c.entries = append(c.entries[:0], c.entries[drop:]...)
	}
	return nil
}

// Buffered returns the number of bytes currently held.
func (c *Circular) Buffered() int {
	return c.size
}

// Close dumps the retained frames and closes the file. Safe to call more than once.
func (c *Circular) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	start := -1
	for i, e := range c.entries {
		if e.flags.Has(frame.FlagKeyframe) {
			start = i
			break
		}
	}
	if start < 0 {
		c.logger.Warn("Circular buffer holds no keyframe, nothing written", "frames", len(c.entries))
		return c.file.Close()
	}

	c.logger.Info("Writing circular buffer", "frames", len(c.entries)-start, "bytes", c.size)
	var err error
	for _, e := range c.entries[start:] {
		if err = c.file.Write(e.data, e.timestampUs, e.flags); err != nil {
			break
		}
	}
	c.entries = nil
	c.size = 0
	return errors.Join(err, c.file.Close())
}
