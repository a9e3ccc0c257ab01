// Package logging provides structured logging with per-module log levels.
//
// # Overview
//
// Records go through log/slog and are routed to every available output:
//   - the systemd journal when journald is reachable
//   - stdout when a terminal, pipe, socket or file is connected
//   - an in-memory ring buffer served by GET /api/logs
//
// # Usage
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"acq":   "debug",
//			"hwdrv": "warn",
//		},
//	})
//
// Get a logger for a module:
//
//	logger := logging.GetLogger("acq")
//	logger.Info("Acquisition started", "source_index", 0)
//
// Loggers obtained before Initialize are updated in place, so packages may
// keep them in package-level variables.
//
// # Modules
//
//	main    daemon lifecycle
//	acq     acquisition controller, scanner and sessions
//	hwdrv   PCI I/O layers
//	chips   chip families and register control
//	api     HTTP API
//	peer    NATS peer coordination
//	config  configuration loading and file watching
//	led     acquisition indicator LED
//	mdns    service advertisement
//
// # Viewing Logs
//
//	journalctl -t vbinode -f
//	journalctl -t vbinode MODULE=acq
//	journalctl -t vbinode SESSION_ID=<id>
//
// # Configuration
//
// Keys of the [logging] table other than level and format are module levels:
//
//	[logging]
//	level = "info"
//	format = "text"
//	acq = "debug"
package logging
