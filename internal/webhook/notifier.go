// Package webhook posts detection frames to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/smazurov/framegate/internal/logging"
	"github.com/smazurov/framegate/internal/metrics"
)

// HeaderTimestamp carries the frame timestamp in microseconds.
const HeaderTimestamp = "X-Frame-Timestamp"

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 5 * time.Second

// Notifier delivers a frame per detection. Failures are logged, never retried.
type Notifier struct {
	url    atomic.Pointer[string]
	client *http.Client
	logger logging.Logger
}

// New creates a Notifier. An empty url disables delivery.
func New(url string, timeout time.Duration, logger logging.Logger) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	n := &Notifier{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
	n.SetURL(url)
	return n
}

// URL returns the current endpoint.
func (n *Notifier) URL() string {
	return *n.url.Load()
}

// SetURL swaps the endpoint; safe while Notify runs.
func (n *Notifier) SetURL(url string) {
	n.url.Store(&url)
}

// Notify POSTs data with its timestamp and blocks until the request completes.
func (n *Notifier) Notify(ctx context.Context, data []byte, timestampUs int64) {
	url := n.URL()
	if url == "" {
		n.logger.Debug("Webhook not configured, skipping", "timestamp_us", timestampUs)
		return
	}

	if err := n.post(ctx, url, data, timestampUs); err != nil {
		metrics.RecordWebhook(false)
		n.logger.Warn("Webhook delivery failed", "url", url, "timestamp_us", timestampUs, "error", err)
		return
	}

	metrics.RecordWebhook(true)
	n.logger.Debug("Webhook delivered", "url", url, "timestamp_us", timestampUs, "bytes", len(data))
}

func (n *Notifier) post(ctx context.Context, url string, data []byte, timestampUs int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestampUs, 10))

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
