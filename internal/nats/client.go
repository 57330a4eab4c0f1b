package nats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/framegate/internal/metadata"
)

// Client connects framegate to a NATS broker. It receives detection and
// toggle signals and publishes recording events. All methods are no-ops
// while disconnected, so the service keeps running without a broker.
type Client struct {
	url         string
	conn        *nats.Conn
	subs        []*nats.Subscription
	logger      *slog.Logger
	mu          sync.RWMutex
	onDetection func(int)
	onToggle    func()
	onMetadata  func(metadata.Entry)
	connected   bool
}

// NewClient creates a client for url. Call Connect to dial.
func NewClient(url string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		url:    url,
		logger: logger.With("component", "nats-client"),
	}
}

// Connect dials the broker. A failure is returned for logging; the client
// stays usable in offline mode.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := []nats.Option{
		nats.Name("framegate"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			} else {
				c.logger.Debug("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.mu.Lock()
			c.connected = true
			c.mu.Unlock()
			c.logger.Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(c.url, opts...)
	if err != nil {
		c.logger.Warn("Failed to connect to NATS, running in offline mode", "error", err)
		return err
	}

	c.conn = conn
	c.connected = true
	c.logger.Info("Connected to NATS", "url", c.url)

	c.subscribeLocked()
	return nil
}

// subscribeLocked (re)creates the signal subscriptions. Must hold mu.
// nats.go replays subscriptions after a reconnect, so this only runs when a
// handler or the connection changes.
func (c *Client) subscribeLocked() {
	if c.conn == nil {
		return
	}

	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil

	if c.onDetection != nil {
		handler := c.onDetection
		sub, err := c.conn.Subscribe(SubjectDetections, func(msg *nats.Msg) {
			m, err := UnmarshalDetection(msg.Data)
			if err != nil {
				c.logger.Warn("Failed to unmarshal detection", "error", err)
				return
			}
			c.logger.Debug("Received detection", "sequence_id", m.SequenceID)
			handler(m.SequenceID)
		})
		if err != nil {
			c.logger.Warn("Failed to subscribe to detections", "error", err)
		} else {
			c.subs = append(c.subs, sub)
		}
	}

	if c.onMetadata != nil {
		handler := c.onMetadata
		sub, err := c.conn.Subscribe(SubjectMetadata, func(msg *nats.Msg) {
			entry, err := metadata.DecodeJSON(msg.Data)
			if err != nil {
				c.logger.Warn("Failed to decode metadata entry", "error", err)
				return
			}
			handler(entry)
		})
		if err != nil {
			c.logger.Warn("Failed to subscribe to metadata", "error", err)
		} else {
			c.subs = append(c.subs, sub)
		}
	}

	if c.onToggle != nil {
		handler := c.onToggle
		sub, err := c.conn.Subscribe(SubjectControl("toggle"), func(msg *nats.Msg) {
			ctrl, err := UnmarshalControl(msg.Data)
			if err != nil {
				c.logger.Warn("Failed to unmarshal control message", "error", err)
				return
			}
			c.logger.Info("Received toggle command", "reason", ctrl.Reason)
			handler()
		})
		if err != nil {
			c.logger.Warn("Failed to subscribe to toggle commands", "error", err)
		} else {
			c.subs = append(c.subs, sub)
		}
	}
}

// OnDetection sets the handler for detection messages.
func (c *Client) OnDetection(fn func(sequenceID int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDetection = fn
	c.subscribeLocked()
}

// OnToggle sets the handler for toggle commands.
func (c *Client) OnToggle(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onToggle = fn
	c.subscribeLocked()
}

// OnMetadata sets the handler for per-frame metadata entries.
func (c *Client) OnMetadata(fn func(metadata.Entry)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMetadata = fn
	c.subscribeLocked()
}

// Publish sends data on subject. No-op if not connected.
func (c *Client) Publish(subject string, data []byte) {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if conn == nil || !connected {
		return
	}

	if err := conn.Publish(subject, data); err != nil {
		c.logger.Warn("Failed to publish", "subject", subject, "error", err)
	}
}

// Flush waits for the broker to acknowledge everything published so far.
func (c *Client) Flush() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nats.ErrConnectionClosed
	}
	return conn.Flush()
}

// IsConnected returns true if connected to NATS.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.conn != nil
}

// Close drops the subscriptions and the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	c.connected = false
	c.logger.Debug("NATS client closed")
}
