package ffmpeg

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[info] Input #0, mjpeg, from 'a.mjpeg':", "info", "Input #0, mjpeg, from 'a.mjpeg':"},
		{"[error] Conversion failed!", "error", "Conversion failed!"},
		{"[mjpeg @ 0x55d1c2a0] [warning] unable to decode APP fields", "warning", "[mjpeg @ 0x55d1c2a0] unable to decode APP fields"},
		{"[libx264 @ 0x1] frame I:1", "info", "[libx264 @ 0x1] frame I:1"},
		{"plain line", "info", "plain line"},
		{"[x", "info", "[x"},
	}

	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}
