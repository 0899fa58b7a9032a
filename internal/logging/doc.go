// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Retains recent entries in memory, served over the HTTP API
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"camera": "debug",   // Per-module overrides
//			"server": "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("camera")
//	logger.Info("Starting up", "device", "/dev/video0")
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("camera").With("facing", "back")
//	logger.Info("Camera opened")  // Includes facing in all logs
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t camview              # All camview logs
//	journalctl -t camview -f           # Follow live
//	journalctl -t camview --since "5m" # Last 5 minutes
//	journalctl -t camview -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t camview MODULE=camera
//	journalctl -t camview FACING=front
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	camera = "debug"
//	server = "warn"
//	devices = "error"
package logging
