// Package ingest receives encoded frames from an upstream producer.
//
// Each frame on the wire is a 13 byte header followed by the payload:
//
//	uint32 big-endian payload length
//	int64  big-endian timestamp in microseconds
//	uint8  flags, bit 0 set for keyframes
package ingest

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/smazurov/framegate/internal/frame"
)

// MaxPayload bounds a single frame.
const MaxPayload = 64 << 20

const headerSize = 13

const flagKeyframe = 1 << 0

// ErrFrameTooLarge is returned for a header announcing more than MaxPayload bytes.
var ErrFrameTooLarge = errors.New("frame exceeds maximum payload size")

// WriteFrame encodes f to w.
func WriteFrame(w io.Writer, f frame.Frame) error {
	if len(f.Data) > MaxPayload {
		return ErrFrameTooLarge
	}
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(f.Data)))
	binary.BigEndian.PutUint64(hdr[4:12], uint64(f.TimestampUs))
	if f.Keyframe {
		hdr[12] = flagKeyframe
	}
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(f.Data); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// Reader decodes frames from a stream, reusing one payload buffer.
type Reader struct {
	r   *bufio.Reader
	hdr [headerSize]byte
	buf []byte
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64<<10)}
}

// Next returns the next frame. Its Data is only valid until the following
// call. io.EOF is returned at a clean frame boundary, io.ErrUnexpectedEOF
// when the stream ends mid-frame.
func (r *Reader) Next() (frame.Frame, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		return frame.Frame{}, err
	}

	size := binary.BigEndian.Uint32(r.hdr[0:4])
	if size > MaxPayload {
		return frame.Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	if cap(r.buf) < int(size) {
		r.buf = make([]byte, size)
	}
	data := r.buf[:size]
	if _, err := io.ReadFull(r.r, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return frame.Frame{}, err
	}

	return frame.Frame{
		Data:        data,
		TimestampUs: int64(binary.BigEndian.Uint64(r.hdr[4:12])),
		Keyframe:    r.hdr[12]&flagKeyframe != 0,
	}, nil
}
