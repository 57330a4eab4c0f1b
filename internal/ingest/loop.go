package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Submitter consumes decoded frames. Errors it returns are fatal.
type Submitter interface {
	SubmitFrame(data []byte, timestampUs int64, keyframe bool) error
}

// SubmitError wraps a failure returned by the Submitter, as opposed to a
// malformed or truncated stream.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string { return fmt.Sprintf("submit frame: %v", e.Err) }

func (e *SubmitError) Unwrap() error { return e.Err }

// ReadLoop feeds every frame from r to s until r is exhausted or ctx is done.
// A clean end of stream returns nil, the frame count is always reported.
func ReadLoop(ctx context.Context, r io.Reader, s Submitter) (int, error) {
	fr := NewReader(r)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		f, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("read frame %d: %w", n, err)
		}

		if err := s.SubmitFrame(f.Data, f.TimestampUs, f.Keyframe); err != nil {
			return n, &SubmitError{Err: err}
		}
		n++
	}
}
