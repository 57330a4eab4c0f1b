// Package logging provides structured logging with per-module log levels.
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"recording": "debug",
//			"webhook":   "warn",
//		},
//	})
//
//	logger := logging.GetLogger("recording")
//	logger.Info("Recording started", "path", path)
//
// Records go to stdout (text or json) and, when journald is reachable, to the
// systemd journal as well:
//
//	journalctl -t framegate MODULE=transcode
//
// Module levels can also be changed at runtime with SetModuleLevel.
package logging
