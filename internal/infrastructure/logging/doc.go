// Package logging provides structured logging for the toio bridge.
//
// It wraps log/slog with the bridge's defaults:
//
//   - JSON output by default, text for development
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - stderr only; stdout belongs to the MCP stdio transport
//
// # Configuration
//
//	logging:
//	  level: "error"     # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stderr"   # stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("cube connected", "cube_id", id)
//
// Never log secrets, tokens or passwords.
package logging
