// Package logging provides structured logging for the I/O node.
//
// It wraps the standard log/slog package so every component logs with
// the same default fields (service, version) and level filtering.
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
//	logger.Info("link connected", "addr", addr)
//
// Payloads received from the broker are logged verbatim at debug level only.
package logging
