package sink

import (
	"fmt"
	"net"
	"net/url"

	"github.com/smazurov/framegate/internal/frame"
	"github.com/smazurov/framegate/internal/logging"
)

// maxUDPPayload is the largest payload that fits in one IPv4 UDP datagram.
const maxUDPPayload = 65507

// Net streams frame payloads to a udp:// or tcp:// address.
type Net struct {
	conn   net.Conn
	udp    bool
	logger logging.Logger
	closed bool
}

// NewNet dials the address in output.
func NewNet(output string, logger logging.Logger) (*Net, error) {
	u, err := url.Parse(output)
	if err != nil {
		return nil, fmt.Errorf("invalid network output %q: %w", output, err)
	}
	if u.Scheme != "udp" && u.Scheme != "tcp" {
		return nil, fmt.Errorf("unsupported network scheme %q", u.Scheme)
	}

	conn, err := net.Dial(u.Scheme, u.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", output, err)
	}
	logger.Info("Network output connected", "scheme", u.Scheme, "addr", u.Host)

	return &Net{conn: conn, udp: u.Scheme == "udp", logger: logger}, nil
}

// Write implements Sink.
func (n *Net) Write(data []byte, _ int64, _ frame.Flags) error {
	if n.closed {
		return ErrClosed
	}
	if !n.udp {
		if _, err := n.conn.Write(data); err != nil {
			return fmt.Errorf("failed to send output bytes: %w", err)
		}
		return nil
	}

	for len(data) > 0 {
		chunk := data
		if len(chunk) > maxUDPPayload {
			chunk = chunk[:maxUDPPayload]
		}
		if _, err := n.conn.Write(chunk); err != nil {
			return fmt.Errorf("failed to send output datagram: %w", err)
		}
		data = data[len(chunk):]
	}
	return nil
}

// Close implements Sink. Safe to call more than once.
func (n *Net) Close() error {
	if n.closed {
		return nil
	}
	n.closed = true
	return n.conn.Close()
}
