package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestProduceChunksAndTimestamps(t *testing.T) {
	input := bytes.Repeat([]byte("abcdefghij"), 3) // 30 bytes
	var wire bytes.Buffer

	n, err := Produce(context.Background(), bytes.NewReader(input), &wire, ProducerOptions{
		ChunkSize: 8,
		Interval:  40 * time.Millisecond,
		GOP:       2,
		StartUs:   1000,
	})
	if err != nil {
		t.Fatalf("Produce failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 frames, got %d", n)
	}

	r := NewReader(&wire)
	var got []byte
	for i := 0; i < 4; i++ {
		f, err := r.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if want := int64(1000 + i*40000); f.TimestampUs != want {
			t.Errorf("frame %d: ts = %d, want %d", i, f.TimestampUs, want)
		}
		if want := i%2 == 0; f.Keyframe != want {
			t.Errorf("frame %d: keyframe = %v, want %v", i, f.Keyframe, want)
		}
		got = append(got, f.Data...)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after last frame, got %v", err)
	}
	if !bytes.Equal(got, input) {
		t.Errorf("payload mismatch: %q", got)
	}
}

func TestProduceEmptyInput(t *testing.T) {
	var wire bytes.Buffer
	n, err := Produce(context.Background(), bytes.NewReader(nil), &wire, ProducerOptions{})
	if err != nil || n != 0 || wire.Len() != 0 {
		t.Errorf("n=%d err=%v wire=%d bytes", n, err, wire.Len())
	}
}

func TestProduceRejectsOversizedChunk(t *testing.T) {
	_, err := Produce(context.Background(), bytes.NewReader([]byte("x")), io.Discard, ProducerOptions{ChunkSize: MaxPayload + 1})
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestProduceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Produce(ctx, bytes.NewReader([]byte("data")), io.Discard, ProducerOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestProduceOverServer(t *testing.T) {
	c := &collector{}
	srv, errc, cancel := startServer(t, "127.0.0.1:0", c)
	defer cancel()

	conn, err := Dial(context.Background(), "tcp:"+srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	if _, err := Produce(context.Background(), bytes.NewReader(make([]byte, 100)), conn, ProducerOptions{ChunkSize: 50}); err != nil {
		t.Fatalf("Produce failed: %v", err)
	}
	conn.Close()

	waitFor(t, func() bool { return c.count() == 2 })

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Serve returned %v", err)
	}
}
