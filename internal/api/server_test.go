package api

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/framegate/internal/api/models"
	"github.com/smazurov/framegate/internal/events"
	"github.com/smazurov/framegate/internal/metadata"
	"github.com/smazurov/framegate/internal/output"
	"github.com/smazurov/framegate/internal/recording"
)

type fakeGate struct {
	mu         sync.Mutex
	enabled    bool
	detections []int
	recording  *recording.Status
	entries    []metadata.Entry
}

func (g *fakeGate) MetadataReady(e metadata.Entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = append(g.entries, e)
}

func (g *fakeGate) Signal() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = !g.enabled
}

func (g *fakeGate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

func (g *fakeGate) NotifyDetection(seq int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.detections = append(g.detections, seq)
	g.recording = &recording.Status{SessionID: "s1", Path: "/tmp/rec.mjpeg"}
}

func (g *fakeGate) Status() output.Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	state := output.StateDisabled
	if g.enabled {
		state = output.StateRunning
	}
	return output.Status{State: state.String(), Enabled: g.enabled, Recording: g.recording}
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeGate, *events.Bus) {
	t.Helper()
	gate := &fakeGate{enabled: true}
	bus := events.New()
	server := NewServer(&Options{
		AuthUsername: "test",
		AuthPassword: "secret",
		Gate:         gate,
		EventBus:     bus,
		PrometheusHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("framegate_up 1\n"))
		}),
	})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, gate, bus
}

func authed(t *testing.T, method, url, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.SetBasicAuth("test", "secret")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestHealthNoAuth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body models.HealthData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("expected status ok, got %q", body.Status)
	}
}

func TestMetricsNoAuth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestOutputRequiresAuth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/output")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/output", nil)
	req.SetBasicAuth("test", "wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", resp.StatusCode)
	}
}

func TestOutputStatus(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.DefaultClient.Do(authed(t, http.MethodGet, ts.URL+"/api/output", ""))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var status output.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Enabled || status.State != "running" {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestToggleOutput(t *testing.T) {
	ts, gate, _ := newTestServer(t)

	resp, err := http.DefaultClient.Do(authed(t, http.MethodPost, ts.URL+"/api/output/toggle", ""))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body models.ToggleData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Enabled || gate.Enabled() {
		t.Error("expected output disabled after toggle")
	}
}

func TestNotifyDetection(t *testing.T) {
	ts, gate, _ := newTestServer(t)

	resp, err := http.DefaultClient.Do(authed(t, http.MethodPost, ts.URL+"/api/detections", `{"sequence_id": 42}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var body models.DetectionData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SequenceID != 42 || body.Recording != "/tmp/rec.mjpeg" {
		t.Errorf("unexpected body %+v", body)
	}

	gate.mu.Lock()
	defer gate.mu.Unlock()
	if len(gate.detections) != 1 || gate.detections[0] != 42 {
		t.Errorf("expected detection 42, got %v", gate.detections)
	}
}

func TestNotifyDetectionRejectsBadBody(t *testing.T) {
	ts, gate, _ := newTestServer(t)

	resp, err := http.DefaultClient.Do(authed(t, http.MethodPost, ts.URL+"/api/detections", `{"sequence_id": "x"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 400 || resp.StatusCode >= 500 {
		t.Fatalf("expected client error, got %d", resp.StatusCode)
	}
	if len(gate.detections) != 0 {
		t.Error("detection should not reach the gate")
	}
}

func TestQueueMetadata(t *testing.T) {
	ts, gate, _ := newTestServer(t)

	resp, err := http.DefaultClient.Do(authed(t, http.MethodPost, ts.URL+"/api/metadata", `{"b": "4/3", "a": 2}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	gate.mu.Lock()
	defer gate.mu.Unlock()
	if len(gate.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(gate.entries))
	}
	want := metadata.Entry{{Key: "b", Value: "4/3"}, {Key: "a", Value: "2"}}
	for i, f := range want {
		if gate.entries[0][i] != f {
			t.Errorf("field %d = %v, want %v", i, gate.entries[0][i], f)
		}
	}
}

func TestQueueMetadataRejectsArray(t *testing.T) {
	ts, gate, _ := newTestServer(t)

	resp, err := http.DefaultClient.Do(authed(t, http.MethodPost, ts.URL+"/api/metadata", `[1, 2]`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if len(gate.entries) != 0 {
		t.Error("entry should not reach the gate")
	}
}

func TestSSEQueryAuthAndEvents(t *testing.T) {
	ts, _, bus := newTestServer(t)

	creds := base64.StdEncoding.EncodeToString([]byte("test:secret"))
	resp, err := http.Get(ts.URL + "/api/events?auth=" + creds)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	waitFor := func(prefix string) string {
		t.Helper()
		timeout := time.After(3 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed waiting for %q", prefix)
				}
				if strings.HasPrefix(line, prefix) {
					return line
				}
			case <-timeout:
				t.Fatalf("timeout waiting for %q", prefix)
			}
		}
	}

	waitFor("event: output-status")
	waitFor("data: ")

	bus.Publish(events.RecordingStartedEvent{SessionID: "abc", Path: "/tmp/x.mjpeg"})

	waitFor("event: recording-started")
	data := waitFor("data: ")
	if !strings.Contains(data, `"session_id":"abc"`) {
		t.Errorf("unexpected event data %q", data)
	}
}

func TestSSEAuthFailure(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	creds := base64.StdEncoding.EncodeToString([]byte("wrong:wrong"))
	resp, err = http.Get(ts.URL + "/api/events?auth=" + creds)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong auth, got %d", resp.StatusCode)
	}
}

func TestRequestCredentials(t *testing.T) {
	good := base64.StdEncoding.EncodeToString([]byte("a:b:c"))

	tests := []struct {
		name     string
		header   string
		query    string
		wantUser string
		wantPass string
		wantErr  error
	}{
		{"header", "Basic " + good, "", "a", "b:c", nil},
		{"query fallback", "", good, "a", "b:c", nil},
		{"header wins", "Basic " + good, "garbage", "a", "b:c", nil},
		{"missing", "", "", "", "", errAuthRequired},
		{"bearer", "Bearer xyz", "", "", "", errAuthType},
		{"bad base64", "Basic !!!", "", "", "", errAuthFormat},
		{"no colon", "Basic " + base64.StdEncoding.EncodeToString([]byte("abc")), "", "", "", errAuthFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, pass, err := requestCredentials(tt.header, tt.query)
			if err != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if user != tt.wantUser || pass != tt.wantPass {
				t.Errorf("expected %q/%q, got %q/%q", tt.wantUser, tt.wantPass, user, pass)
			}
		})
	}
}

func TestRequestLevel(t *testing.T) {
	tests := []struct {
		method string
		path   string
		status int
		want   slog.Level
	}{
		{"GET", "/api/output", 200, slog.LevelInfo},
		{"OPTIONS", "/api/output", 204, slog.LevelDebug},
		{"GET", "/metrics", 200, slog.LevelDebug},
		{"POST", "/api/detections", 400, slog.LevelWarn},
		{"GET", "/metrics", 500, slog.LevelError},
	}
	for _, tt := range tests {
		if got := requestLevel(tt.method, tt.path, tt.status); got != tt.want {
			t.Errorf("requestLevel(%s %s %d) = %v, want %v", tt.method, tt.path, tt.status, got, tt.want)
		}
	}
}
