// Package logging provides structured logging for the MDM core.
//
// It wraps log/slog: JSON output for production, text for development,
// default service and version fields on every entry, and level filtering.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("device checked in", "udid", udid, "message_type", "TokenUpdate")
//
// Push tokens, push magic and unlock tokens are credentials. Log them only
// through Redact.
package logging
