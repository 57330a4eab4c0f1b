package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/smazurov/framegate/internal/frame"
)

// ProducerOptions configures Produce.
type ProducerOptions struct {
	ChunkSize int           // payload bytes per frame
	Interval  time.Duration // timestamp step between frames
	GOP       int           // every GOP-th frame is a keyframe; <= 1 marks all
	Realtime  bool          // pace frames by Interval
	StartUs   int64         // timestamp of the first frame
}

// DefaultChunkSize is used when ProducerOptions.ChunkSize is unset.
const DefaultChunkSize = 64 << 10

// Produce cuts r into fixed-size frames with synthetic timestamps and
// writes them to w. The final frame may be short. It returns the number of
// frames written.
func Produce(ctx context.Context, r io.Reader, w io.Writer, opts ProducerOptions) (int, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkSize > MaxPayload {
		return 0, ErrFrameTooLarge
	}

	bw := bufio.NewWriter(w)
	buf := make([]byte, opts.ChunkSize)

	var ticker *time.Ticker
	if opts.Realtime && opts.Interval > 0 {
		ticker = time.NewTicker(opts.Interval)
		defer ticker.Stop()
	}

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		read, err := io.ReadFull(r, buf)
		if read == 0 {
			if errors.Is(err, io.EOF) {
				return n, bw.Flush()
			}
			return n, fmt.Errorf("read input: %w", err)
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return n, fmt.Errorf("read input: %w", err)
		}

		f := frame.Frame{
			Data:        buf[:read],
			TimestampUs: opts.StartUs + int64(n)*opts.Interval.Microseconds(),
			Keyframe:    opts.GOP <= 1 || n%opts.GOP == 0,
		}
		if werr := WriteFrame(bw, f); werr != nil {
			return n, werr
		}
		n++

		if ticker != nil {
			if ferr := bw.Flush(); ferr != nil {
				return n, ferr
			}
			select {
			case <-ctx.Done():
				return n, ctx.Err()
			case <-ticker.C:
			}
		}

		if errors.Is(err, io.ErrUnexpectedEOF) {
			return n, bw.Flush()
		}
	}
}

// Dial connects to an ingest address in any form NewServer accepts.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	network, address := ParseAddress(addr)
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial ingest %s: %w", addr, err)
	}
	return conn, nil
}
