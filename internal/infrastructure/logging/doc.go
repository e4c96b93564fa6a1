// Package logging provides structured logging for homesim.
//
// It wraps log/slog so every component logs the same way:
//
//   - JSON output for production, text for development
//   - Default fields (service, version) on all entries
//   - Level filtering (debug, info, warn, error)
//   - Child loggers per component and per session
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("scheduler").Info("started", "interval", "3s")
//	logger.ForSession(id).Warn("command rejected", "error", err)
//
// Never log the JWT secret, login password or bearer tokens.
package logging
