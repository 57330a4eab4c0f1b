package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/smazurov/framegate/internal/logging"
)

// Server accepts producer connections and feeds their frames to a Submitter.
// Connections are served one at a time so frames stay in order.
type Server struct {
	addr      string
	submitter Submitter
	logger    logging.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// NewServer creates a server for addr: "unix:/path/to.sock", "tcp:host:port" or "host:port".
func NewServer(addr string, s Submitter, logger logging.Logger) *Server {
	return &Server{addr: addr, submitter: s, logger: logger, ready: make(chan struct{})}
}

// ParseAddress splits addr into a network and address for net.Listen / net.Dial.
func ParseAddress(addr string) (network, address string) {
	switch {
	case strings.HasPrefix(addr, "unix:"):
		return "unix", strings.TrimPrefix(addr, "unix:")
	case strings.HasPrefix(addr, "tcp:"):
		return "tcp", strings.TrimPrefix(addr, "tcp:")
	default:
		return "tcp", addr
	}
}

// Addr returns the listening address once Serve has started, nil before.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Serve listens and processes connections until ctx is cancelled or the
// submitter fails. A submitter failure is returned as *SubmitError.
func (s *Server) Serve(ctx context.Context) error {
	network, address := ParseAddress(s.addr)
	if network == "unix" {
		if err := os.Remove(address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("ingest listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("Ingest listening", "network", network, "address", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ingest accept: %w", err)
		}

		if err := s.handle(ctx, conn); err != nil {
			return err
		}
	}
}

// handle serves one producer. Stream errors end the connection only.
func (s *Server) handle(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	remote := "local"
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" {
		remote = addr.String()
	}
	s.logger.Info("Producer connected", "remote", remote)

	n, err := ReadLoop(ctx, conn, s.submitter)

	var submitErr *SubmitError
	switch {
	case errors.As(err, &submitErr):
		s.logger.Error("Frame processing failed", "remote", remote, "frames", n, "error", err)
		return err
	case err != nil && ctx.Err() == nil:
		s.logger.Warn("Producer stream error", "remote", remote, "frames", n, "error", err)
	default:
		s.logger.Info("Producer disconnected", "remote", remote, "frames", n)
	}
	return nil
}
