package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string `help:"Config file path"`

	Output           string        `toml:"output.path" env:"OUTPUT"`
	Pause            bool          `toml:"output.pause" env:"PAUSE"`
	Wrap             int           `toml:"output.wrap" env:"WRAP"`
	Framerate        float64       `toml:"detection.framerate" env:"FRAMERATE"`
	PreDetectionSecs float64       `toml:"detection.pre_seconds" env:"PRE_DETECTION_SECS"`
	RecordDuration   time.Duration `toml:"detection.record_duration" env:"RECORD_DURATION"`
	Tags             []string      `toml:"tags" env:"TAGS"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "framegate.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
tags = ["a", "b"]

[output]
path = "/tmp/out%03d.h264"
pause = true
wrap = 8

[detection]
framerate = 29.97
pre_seconds = 2
record_duration = "15s"
`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Output != "/tmp/out%03d.h264" {
		t.Errorf("Output = %q", opts.Output)
	}
	if !opts.Pause {
		t.Error("Expected Pause to be true")
	}
	if opts.Wrap != 8 {
		t.Errorf("Wrap = %d, want 8", opts.Wrap)
	}
	if opts.Framerate != 29.97 {
		t.Errorf("Framerate = %v, want 29.97", opts.Framerate)
	}
	if opts.PreDetectionSecs != 2 {
		t.Errorf("PreDetectionSecs = %v, want 2 (integer TOML into float field)", opts.PreDetectionSecs)
	}
	if opts.RecordDuration != 15*time.Second {
		t.Errorf("RecordDuration = %v, want 15s", opts.RecordDuration)
	}
	if !reflect.DeepEqual(opts.Tags, []string{"a", "b"}) {
		t.Errorf("Tags = %v", opts.Tags)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("FRAMEGATE_OUTPUT", "tcp://127.0.0.1:9000")
	t.Setenv("FRAMEGATE_PAUSE", "true")
	t.Setenv("FRAMEGATE_WRAP", "3")
	t.Setenv("FRAMEGATE_FRAMERATE", "25")
	t.Setenv("FRAMEGATE_RECORD_DURATION", "2.5")
	t.Setenv("FRAMEGATE_TAGS", " x , y ")

	opts := &testOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Output != "tcp://127.0.0.1:9000" {
		t.Errorf("Output = %q", opts.Output)
	}
	if !opts.Pause {
		t.Error("Expected Pause to be true")
	}
	if opts.Wrap != 3 {
		t.Errorf("Wrap = %d", opts.Wrap)
	}
	if opts.Framerate != 25 {
		t.Errorf("Framerate = %v", opts.Framerate)
	}
	if opts.RecordDuration != 2500*time.Millisecond {
		t.Errorf("RecordDuration = %v, want 2.5s", opts.RecordDuration)
	}
	if !reflect.DeepEqual(opts.Tags, []string{"x", "y"}) {
		t.Errorf("Tags = %v", opts.Tags)
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	path := writeConfig(t, `
[output]
path = "from-toml"
wrap = 4
`)
	t.Setenv("FRAMEGATE_OUTPUT", "from-env")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Output != "from-env" {
		t.Errorf("Output = %q, want env value", opts.Output)
	}
	if opts.Wrap != 4 {
		t.Errorf("Wrap = %d, want TOML value", opts.Wrap)
	}
}

func TestLoadConfigCLIFlagWins(t *testing.T) {
	path := writeConfig(t, `
[output]
path = "from-toml"

[detection]
framerate = 60.0
`)
	t.Setenv("FRAMEGATE_OUTPUT", "from-env")

	opts := &testOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.Output, "output", "", "")
	cmd.Flags().Float64Var(&opts.Framerate, "framerate", 30, "")
	if err := cmd.Flags().Parse([]string{"--output", "from-cli"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Output != "from-cli" {
		t.Errorf("Output = %q, want CLI value", opts.Output)
	}
	if opts.Framerate != 60 {
		t.Errorf("Framerate = %v, want TOML value for an unchanged flag", opts.Framerate)
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"level1": map[string]any{
			"level2": map[string]any{
				"value": "nested_value",
			},
			"simple": "simple_value",
		},
		"root": "root_value",
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"root", "root_value"},
		{"level1.simple", "simple_value"},
		{"level1.level2.value", "nested_value"},
		{"nonexistent", nil},
		{"level1.nonexistent", nil},
		{"root.child", nil},
	}

	for _, test := range tests {
		result := getNestedValue(data, test.path)
		if result != test.expected {
			t.Errorf("getNestedValue(%q) = %v, expected %v", test.path, result, test.expected)
		}
	}
}

func TestSetFieldValueIgnoresMismatchedTypes(t *testing.T) {
	s := &testOptions{Wrap: 5, Output: "keep"}
	v := reflect.ValueOf(s).Elem()

	setFieldValue(v.FieldByName("Wrap"), "not a number")
	setFieldValue(v.FieldByName("Output"), int64(3))
	setFieldValueFromString(v.FieldByName("Wrap"), "nope")
	setFieldValueFromString(v.FieldByName("RecordDuration"), "later")

	if s.Wrap != 5 || s.Output != "keep" || s.RecordDuration != 0 {
		t.Errorf("Fields changed on mismatched input: %+v", s)
	}
}

func TestSetFieldValueDurationForms(t *testing.T) {
	tests := []struct {
		value any
		want  time.Duration
	}{
		{"1m30s", 90 * time.Second},
		{int64(10), 10 * time.Second},
		{0.5, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		s := &testOptions{}
		setFieldValue(reflect.ValueOf(s).Elem().FieldByName("RecordDuration"), tt.value)
		if s.RecordDuration != tt.want {
			t.Errorf("setFieldValue(%v) = %v, want %v", tt.value, s.RecordDuration, tt.want)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "nonexistent.toml")}

	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeConfig(t, `
[output
invalid toml syntax
`)

	if err := LoadConfig(&testOptions{Config: path}, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "warn"
format = "json"
output = "debug"
webhook = "error"
`)

	cfg := LoadLoggingConfig(path)

	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("Level/Format = %q/%q", cfg.Level, cfg.Format)
	}
	if cfg.Modules["output"] != "debug" || cfg.Modules["webhook"] != "error" {
		t.Errorf("Modules = %v", cfg.Modules)
	}
	if _, ok := cfg.Modules["level"]; ok {
		t.Error("level must not be treated as a module")
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.toml")} {
		cfg := LoadLoggingConfig(path)
		if cfg.Level != "info" || cfg.Format != "text" || len(cfg.Modules) != 0 {
			t.Errorf("LoadLoggingConfig(%q) = %+v, want defaults", path, cfg)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":              "port",
		"PreDetection":      "pre-detection",
		"NatsURL":           "nats-url",
		"TranscodeCRF":      "transcode-crf",
		"WebhookURLTimeout": "webhook-url-timeout",
		"Segment2":          "segment2",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReloaderKeepsCLIFlags(t *testing.T) {
	path := writeConfig(t, `
[output]
path = "from-toml"

[detection]
framerate = 60.0
`)

	base := testOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&base.Output, "output", "", "")
	cmd.Flags().Float64Var(&base.Framerate, "framerate", 30, "")
	if err := cmd.Flags().Parse([]string{"--output", "from-cli"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	reload := Reloader(base, cmd)

	// The file changes after startup; the CLI value must still win.
	if err := os.WriteFile(path, []byte("[output]\npath = \"edited\"\n[detection]\nframerate = 25.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := reload(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got.Output != "from-cli" {
		t.Errorf("Output = %q, want CLI value after reload", got.Output)
	}
	if got.Framerate != 25 {
		t.Errorf("Framerate = %v, want reloaded TOML value", got.Framerate)
	}
	if got.Config != path {
		t.Errorf("Config = %q, want %q", got.Config, path)
	}
}
