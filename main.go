package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/smazurov/framegate/cmd"
	"github.com/smazurov/framegate/internal/config"
	"github.com/smazurov/framegate/internal/ffmpeg"
	"github.com/smazurov/framegate/internal/logging"
	"github.com/smazurov/framegate/internal/transcode"
	"github.com/smazurov/framegate/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `doc:"Path to configuration file" short:"c" default:"framegate.toml"`

	// Ingest settings
	Listen string `doc:"Frame ingest address (unix:/path or tcp:host:port); frames are read from stdin when empty" toml:"ingest.listen" env:"INGEST_LISTEN"`

	// Primary output settings
	Output         string        `doc:"Primary output: file path (one printf integer for the counter), - for stdout, tcp:// or udp://" short:"o" toml:"output.path" env:"OUTPUT"`
	Segment        time.Duration `doc:"Start a new output file at the first keyframe after this much media time" toml:"output.segment" env:"OUTPUT_SEGMENT"`
	Split          bool          `doc:"Start a new output file each time output is re-enabled" toml:"output.split" env:"OUTPUT_SPLIT"`
	Wrap           int           `doc:"Wrap the output file counter at this value" toml:"output.wrap" env:"OUTPUT_WRAP"`
	Circular       int           `doc:"Keep this many bytes of recent frames in memory and write them on exit" toml:"output.circular" env:"OUTPUT_CIRCULAR"`
	Flush          bool          `doc:"Flush output files after every frame" toml:"output.flush" env:"OUTPUT_FLUSH"`
	Pause          bool          `doc:"Start with output disabled" toml:"output.pause" env:"OUTPUT_PAUSE"`
	SaveTimestamps string        `doc:"Write a timecode v2 file for the emitted frames" toml:"output.timestamps" env:"OUTPUT_TIMESTAMPS"`
	Metadata       string        `doc:"Mirror per-frame metadata to this file, - for stdout" toml:"metadata.path" env:"METADATA"`
	MetadataFormat string        `doc:"Metadata format (txt, json)" default:"json" toml:"metadata.format" env:"METADATA_FORMAT"`

	// Detection settings
	DetectionDir   string        `doc:"Base directory for detection recordings (default: XDG videos directory)" toml:"detection.dir" env:"DETECTION_DIR"`
	RecordDuration time.Duration `doc:"Recording window after each detection" default:"10s" toml:"detection.record_duration" env:"DETECTION_RECORD_DURATION"`
	PreDetection   time.Duration `doc:"History kept for the start of each detection recording" toml:"detection.pre_roll" env:"DETECTION_PRE_ROLL"`
	Framerate      int           `doc:"Nominal input framerate, sizes the pre-roll buffer" default:"30" toml:"detection.framerate" env:"DETECTION_FRAMERATE"`
	RawExt         string        `doc:"Extension of raw detection recordings" default:"mjpeg" toml:"detection.raw_ext" env:"DETECTION_RAW_EXT"`

	// Webhook settings
	WebhookURL     string        `doc:"POST the detection frame to this URL" toml:"webhook.url" env:"WEBHOOK_URL"`
	WebhookTimeout time.Duration `doc:"Webhook request timeout" default:"5s" toml:"webhook.timeout" env:"WEBHOOK_TIMEOUT"`

	// Conversion settings
	TranscodeContainer   string `doc:"Container extension for converted recordings" default:"mp4" toml:"transcode.container" env:"TRANSCODE_CONTAINER"`
	TranscodeCommand     string `doc:"Custom conversion command with {input} and {output} placeholders" toml:"transcode.command" env:"TRANSCODE_COMMAND"`
	TranscodeInputFormat string `doc:"ffmpeg input format of raw recordings (probed when empty)" toml:"transcode.input_format" env:"TRANSCODE_INPUT_FORMAT"`
	TranscodeCodec       string `doc:"Video codec" default:"libx264" toml:"transcode.codec" env:"TRANSCODE_CODEC"`
	TranscodePreset      string `doc:"Encoder preset" default:"medium" toml:"transcode.preset" env:"TRANSCODE_PRESET"`
	TranscodeCRF         int    `doc:"Constant rate factor" default:"23" toml:"transcode.crf" env:"TRANSCODE_CRF"`
	TranscodeConcurrency int    `doc:"Conversions allowed to run at once" default:"1" toml:"transcode.concurrency" env:"TRANSCODE_CONCURRENCY"`

	// Server settings
	Port string `doc:"Control API listen address, empty to disable" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `doc:"Basic auth username, auth is off when empty" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `doc:"Basic auth password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// NATS settings
	NatsURL      string `doc:"NATS server URL, empty to disable" toml:"nats.url" env:"NATS_URL"`
	NatsEmbedded bool   `doc:"Run an embedded NATS server and connect to it" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NatsPort     int    `doc:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`

	// Status LED
	LED string `doc:"Status LED: sysfs LED name, auto to pick by board, empty to disable" toml:"led.name" env:"LED"`

	// Logging settings
	LoggingLevel     string `doc:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `doc:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingOutput    string `doc:"Gate logging level" default:"info" toml:"logging.output" env:"LOGGING_OUTPUT"`
	LoggingRecording string `doc:"Detection recording logging level" default:"info" toml:"logging.recording" env:"LOGGING_RECORDING"`
	LoggingTranscode string `doc:"Conversion logging level" default:"info" toml:"logging.transcode" env:"LOGGING_TRANSCODE"`
	LoggingWebhook   string `doc:"Webhook logging level" default:"info" toml:"logging.webhook" env:"LOGGING_WEBHOOK"`
	LoggingIngest    string `doc:"Ingest logging level" default:"info" toml:"logging.ingest" env:"LOGGING_INGEST"`
	LoggingAPI       string `doc:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

// usesStdout reports whether frame or metadata bytes go to stdout, in
// which case logs move to stderr.
func (o *Options) usesStdout() bool {
	return o.Output == "-" || o.Metadata == "-"
}

func (o *Options) transcodeConfig() transcode.Config {
	return transcode.Config{
		Container: o.TranscodeContainer,
		Command:   o.TranscodeCommand,
		Params: ffmpeg.TranscodeParams{
			InputFormat: o.TranscodeInputFormat,
			Codec:       o.TranscodeCodec,
			Preset:      o.TranscodePreset,
			CRF:         o.TranscodeCRF,
		},
		MaxConcurrent: o.TranscodeConcurrency,
	}
}

func initLogging(opts *Options) {
	loggingConfig := logging.Config{
		Level:  opts.LoggingLevel,
		Format: opts.LoggingFormat,
		Modules: map[string]string{
			"output":    opts.LoggingOutput,
			"recording": opts.LoggingRecording,
			"transcode": opts.LoggingTranscode,
			"webhook":   opts.LoggingWebhook,
			"ingest":    opts.LoggingIngest,
			"api":       opts.LoggingAPI,
		},
	}
	if opts.usesStdout() {
		loggingConfig.Output = os.Stderr
	}
	logging.Initialize(loggingConfig)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}

	var cli humacli.CLI
	var opts *Options

	cli = humacli.New(func(hooks humacli.Hooks, parsed *Options) {
		opts = parsed

		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		if opts.DetectionDir == "" {
			opts.DetectionDir = filepath.Join(xdg.UserDirs.Videos, "framegate")
		}

		initLogging(opts)

		// The pipeline is only built for the root command; subcommands
		// share the parsed options.
		a := newApp(opts, cli.Root())
		hooks.OnStart(a.run)
		hooks.OnStop(a.stop)
	})

	root := cli.Root()
	root.Use = "framegate"
	root.Short = "Gate, retime and record an encoded frame stream"
	root.Version = version.String()

	root.AddCommand(cmd.CreateTranscodeCmd(func() transcode.Config { return opts.transcodeConfig() }))
	root.AddCommand(cmd.CreateSendCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(c *cobra.Command, _ []string) {
			c.Println(version.String())
		},
	})

	cli.Run()
}
