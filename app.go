package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/smazurov/framegate/internal/api"
	"github.com/smazurov/framegate/internal/config"
	"github.com/smazurov/framegate/internal/events"
	"github.com/smazurov/framegate/internal/ingest"
	"github.com/smazurov/framegate/internal/led"
	"github.com/smazurov/framegate/internal/logging"
	"github.com/smazurov/framegate/internal/metadata"
	"github.com/smazurov/framegate/internal/metrics/exporters"
	"github.com/smazurov/framegate/internal/nats"
	"github.com/smazurov/framegate/internal/output"
	"github.com/smazurov/framegate/internal/recording"
	"github.com/smazurov/framegate/internal/sink"
	"github.com/smazurov/framegate/internal/transcode"
	"github.com/smazurov/framegate/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

// app owns the serve pipeline for one run of the root command.
type app struct {
	opts   *Options
	root   *cobra.Command
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newApp(opts *Options, root *cobra.Command) *app {
	ctx, cancel := context.WithCancel(context.Background())
	return &app{
		opts:   opts,
		root:   root,
		logger: logging.GetLogger("main"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// run is the humacli start hook. A fatal frame error exits non-zero.
func (a *app) run() {
	err := a.serve(a.ctx)
	close(a.done)
	if err != nil {
		a.logger.Error("framegate stopped", "error", err)
		os.Exit(1)
	}
	a.logger.Info("framegate stopped")
}

// stop is the humacli stop hook, called on SIGINT/SIGTERM.
func (a *app) stop() {
	a.logger.Info("Shutting down")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.cancel()
	select {
	case <-a.done:
	case <-time.After(shutdownTimeout):
		a.logger.Warn("Shutdown timed out", "timeout", shutdownTimeout)
	}
}

func (a *app) serve(ctx context.Context) error {
	opts := a.opts
	bus := events.New()

	var metadataFormat metadata.Format
	if opts.Metadata != "" {
		f, err := metadata.ParseFormat(opts.MetadataFormat)
		if err != nil {
			return err
		}
		metadataFormat = f
	}

	primary, err := sink.New(sink.Options{
		Output:   opts.Output,
		Segment:  opts.Segment,
		Split:    opts.Split,
		Wrap:     opts.Wrap,
		Flush:    opts.Flush,
		Circular: opts.Circular,
	}, logging.GetLogger("sink"))
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	tcCfg := opts.transcodeConfig()
	tcCfg.Params.Framerate = float64(opts.Framerate)
	transcoder := transcode.New(tcCfg, bus, logging.GetLogger("transcode"))
	defer transcoder.Close()

	recorder := recording.NewManager(recording.Config{
		BaseDir:        opts.DetectionDir,
		RecordDuration: opts.RecordDuration,
		RawExt:         opts.RawExt,
		Flush:          opts.Flush,
	}, transcoder, bus, logging.GetLogger("recording"))

	notifier := webhook.New(opts.WebhookURL, opts.WebhookTimeout, logging.GetLogger("webhook"))

	out, err := output.New(output.Config{
		Pause:            opts.Pause,
		PreDetectionSecs: opts.PreDetection.Seconds(),
		Framerate:        float64(opts.Framerate),
		TimestampPath:    opts.SaveTimestamps,
		MetadataPath:     opts.Metadata,
		MetadataFormat:   metadataFormat,
		Flush:            opts.Flush,
	}, output.Components{
		Sink:      primary,
		Recorder:  recorder,
		Notifier:  notifier,
		Publisher: bus,
		Logger:    logging.GetLogger("output"),
	})
	if err != nil {
		_ = primary.Close()
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil {
			a.logger.Error("Failed to close output", "error", closeErr)
		}
	}()

	if a.opts.LED != "" {
		indicator := led.NewIndicator(led.New(a.opts.LED, a.logger), bus, out.Enabled(), logging.GetLogger("led"))
		indicator.Start()
		defer indicator.Stop()
	}

	if stopWatch := a.watchConfig(out); stopWatch != nil {
		defer stopWatch()
	}

	if stopAPI := a.startAPI(out, bus); stopAPI != nil {
		defer stopAPI()
	}

	if stopNATS := a.startNATS(out, bus); stopNATS != nil {
		defer stopNATS()
	}

	return a.ingest(ctx, out)
}

// ingest feeds frames from the configured source until it ends, ctx is
// cancelled, or the gate reports a fatal error.
func (a *app) ingest(ctx context.Context, out *output.Output) error {
	ingestLogger := logging.GetLogger("ingest")

	if a.opts.Listen != "" {
		srv := ingest.NewServer(a.opts.Listen, out, ingestLogger)
		go func() {
			select {
			case <-srv.Ready():
				a.notifyReady()
			case <-ctx.Done():
			}
		}()
		return srv.Serve(ctx)
	}

	// A blocked stdin read only returns once the descriptor is closed.
	stop := context.AfterFunc(ctx, func() { _ = os.Stdin.Close() })
	defer stop()

	a.notifyReady()
	ingestLogger.Info("Reading frames from stdin")
	n, err := ingest.ReadLoop(ctx, os.Stdin, out)

	var submitErr *ingest.SubmitError
	switch {
	case errors.As(err, &submitErr):
		return err
	case err != nil && ctx.Err() == nil:
		return err
	}
	ingestLogger.Info("Input ended", "frames", n)
	return nil
}

func (a *app) notifyReady() {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.logger.Warn("Failed to notify systemd", "error", err)
	} else if ok {
		a.logger.Debug("Notified systemd ready")
	}
}

// watchConfig applies webhook and record-duration changes from the config
// file while running.
func (a *app) watchConfig(out *output.Output) func() {
	if a.opts.Config == "" {
		return nil
	}
	if _, err := os.Stat(a.opts.Config); err != nil {
		return nil
	}

	// Flags given at startup keep precedence over later file edits.
	loader := config.Reloader(*a.opts, a.root)
	watcher := config.NewWatcher(a.opts.Config, loader, logging.GetLogger("config"))
	watcher.OnReload(func(o Options) {
		out.UpdateSettings(output.Settings{
			WebhookURL:     o.WebhookURL,
			RecordDuration: o.RecordDuration,
		})
	})
	if err := watcher.Start(); err != nil {
		a.logger.Warn("Config hot reload disabled", "error", err)
		return nil
	}
	return func() { _ = watcher.Stop() }
}

func (a *app) startAPI(out *output.Output, bus *events.Bus) func() {
	if a.opts.Port == "" {
		return nil
	}

	server := api.NewServer(&api.Options{
		AuthUsername:      a.opts.AuthUsername,
		AuthPassword:      a.opts.AuthPassword,
		Gate:              out,
		EventBus:          bus,
		PrometheusHandler: exporters.HTTPHandler(),
	})

	go func() {
		if err := server.Start(a.opts.Port); err != nil {
			a.logger.Error("API server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			a.logger.Error("Error stopping API server", "error", err)
		}
	}
}

func (a *app) startNATS(out *output.Output, bus *events.Bus) func() {
	url := a.opts.NatsURL
	natsLogger := logging.GetLogger("nats")

	var embedded *nats.Server
	if a.opts.NatsEmbedded {
		opts := nats.DefaultServerOptions()
		opts.Port = a.opts.NatsPort
		opts.Logger = natsLogger
		embedded = nats.NewServer(opts)
		if err := embedded.Start(); err != nil {
			a.logger.Warn("Embedded NATS server failed to start", "error", err)
			embedded = nil
		} else if url == "" {
			url = embedded.ClientURL()
		}
	}

	if url == "" {
		if embedded != nil {
			return embedded.Stop
		}
		return nil
	}

	client := nats.NewClient(url, natsLogger)
	_ = client.Connect() // logged; the client degrades to a no-op
	client.OnDetection(out.NotifyDetection)
	client.OnToggle(out.Signal)
	client.OnMetadata(out.MetadataReady)

	bridge := nats.NewBridge(client, bus, natsLogger)
	bridge.Start()

	return func() {
		bridge.Stop()
		client.Close()
		if embedded != nil {
			embedded.Stop()
		}
	}
}
