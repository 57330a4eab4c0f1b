package ingest

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/framegate/internal/frame"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type collector struct {
	mu     sync.Mutex
	frames []frame.Frame
	failAt int // fail on this 1-based frame, 0 never
}

func (c *collector) SubmitFrame(data []byte, ts int64, key bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt > 0 && len(c.frames)+1 == c.failAt {
		return errors.New("sink failed")
	}
	c.frames = append(c.frames, frame.Frame{Data: append([]byte(nil), data...), TimestampUs: ts, Keyframe: key})
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func encode(t *testing.T, frames ...frame.Frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func TestWireLayout(t *testing.T) {
	got := encode(t, frame.Frame{Data: []byte{0xAA, 0xBB}, TimestampUs: 0x0102030405060708, Keyframe: true})
	want := []byte{
		0, 0, 0, 2,
		1, 2, 3, 4, 5, 6, 7, 8,
		1,
		0xAA, 0xBB,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded = % x, want % x", got, want)
	}
}

func TestReadLoop(t *testing.T) {
	in := []frame.Frame{
		{Data: []byte("key"), TimestampUs: 0, Keyframe: true},
		{Data: []byte("delta"), TimestampUs: 33_333},
		{Data: []byte{}, TimestampUs: 66_666},
		{Data: []byte("neg"), TimestampUs: -5},
	}
	c := &collector{}

	n, err := ReadLoop(context.Background(), bytes.NewReader(encode(t, in...)), c)
	if err != nil {
		t.Fatalf("ReadLoop: %v", err)
	}
	if n != len(in) {
		t.Fatalf("n = %d, want %d", n, len(in))
	}
	for i, f := range c.frames {
		if string(f.Data) != string(in[i].Data) || f.TimestampUs != in[i].TimestampUs || f.Keyframe != in[i].Keyframe {
			t.Errorf("frame %d = %+v, want %+v", i, f, in[i])
		}
	}
}

func TestReadLoopTruncated(t *testing.T) {
	data := encode(t, frame.Frame{Data: []byte("abcdef"), TimestampUs: 1})
	_, err := ReadLoop(context.Background(), bytes.NewReader(data[:len(data)-2]), &collector{})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want ErrUnexpectedEOF", err)
	}

	_, err = ReadLoop(context.Background(), bytes.NewReader(data[:5]), &collector{})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("partial header err = %v, want ErrUnexpectedEOF", err)
	}
}

func TestReadLoopTooLarge(t *testing.T) {
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[:4], MaxPayload+1)

	_, err := ReadLoop(context.Background(), bytes.NewReader(hdr[:]), &collector{})
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestReadLoopSubmitError(t *testing.T) {
	data := encode(t,
		frame.Frame{Data: []byte("a"), TimestampUs: 1},
		frame.Frame{Data: []byte("b"), TimestampUs: 2},
		frame.Frame{Data: []byte("c"), TimestampUs: 3},
	)
	c := &collector{failAt: 2}

	n, err := ReadLoop(context.Background(), bytes.NewReader(data), c)
	var submitErr *SubmitError
	if !errors.As(err, &submitErr) {
		t.Fatalf("err = %v, want SubmitError", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}
}

func TestReadLoopCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadLoop(ctx, bytes.NewReader(encode(t, frame.Frame{Data: []byte("a")})), &collector{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in, network, address string
	}{
		{"unix:/run/framegate.sock", "unix", "/run/framegate.sock"},
		{"tcp:127.0.0.1:9000", "tcp", "127.0.0.1:9000"},
		{":9000", "tcp", ":9000"},
	}
	for _, tt := range tests {
		network, address := ParseAddress(tt.in)
		if network != tt.network || address != tt.address {
			t.Errorf("ParseAddress(%q) = %s %s", tt.in, network, address)
		}
	}
}

func startServer(t *testing.T, addr string, c Submitter) (*Server, <-chan error, context.CancelFunc) {
	t.Helper()
	srv := NewServer(addr, c, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-errc:
		t.Fatalf("Serve: %v", err)
	case <-time.After(time.Second):
		t.Fatal("server did not start")
	}
	return srv, errc, cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerUnixSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "ingest.sock")
	c := &collector{}
	_, errc, cancel := startServer(t, "unix:"+sock, c)

	for range 2 {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := conn.Write(encode(t,
			frame.Frame{Data: []byte("a"), TimestampUs: 1, Keyframe: true},
			frame.Frame{Data: []byte("b"), TimestampUs: 2},
		)); err != nil {
			t.Fatal(err)
		}
		conn.Close()
	}

	waitFor(t, func() bool { return c.count() == 4 })

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Serve returned %v after cancel", err)
	}
}

func TestServerStopsOnSubmitError(t *testing.T) {
	c := &collector{failAt: 1}
	srv, errc, cancel := startServer(t, "127.0.0.1:0", c)
	defer cancel()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Write(encode(t, frame.Frame{Data: []byte("a"), TimestampUs: 1})); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errc:
		var submitErr *SubmitError
		if !errors.As(err, &submitErr) {
			t.Errorf("Serve = %v, want SubmitError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop on submit error")
	}
}

func TestServerSurvivesBadProducer(t *testing.T) {
	c := &collector{}
	srv, errc, cancel := startServer(t, "tcp:127.0.0.1:0", c)

	bad, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[:4], MaxPayload+1)
	_, _ = bad.Write(hdr[:])
	bad.Close()

	good, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	_, _ = good.Write(encode(t, frame.Frame{Data: []byte("ok"), TimestampUs: 1, Keyframe: true}))
	good.Close()

	waitFor(t, func() bool { return c.count() == 1 })

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Serve = %v", err)
	}
}
