// Package logging provides structured logging for ledhttpd.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used throughout bring-up and serving. It provides general logging
// functions plus a few domain helpers for stages, cleanups and HTTP traffic.
//
// # Log Levels
//
//   - Debug: Detailed info (ledger registrations, event deliveries, headers)
//   - Info: Normal operations (stage start/complete, requests, address acquired)
//   - Warn: Non-fatal issues (cleanup failures, unexpected network events)
//   - Error: Fatal issues (bring-up failure, listener errors)
//
// # Structured Logging
//
//	logging.Info("Address acquired",
//	    zap.String("owner", "sta0"),
//	    zap.String("address", "192.168.1.20"),
//	)
//
// # Specialized Logging
//
// Stage logging:
//
//	logging.LogStage("associate-network", "started", 0)
//	logging.LogStage("associate-network", "completed", elapsed)
//
// Cleanup logging:
//
//	logging.LogCleanup("stop-server", err)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given the LEDHTTPD_LOG_LEVEL environment variable is
// consulted; if that is empty too, logging is silent.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
