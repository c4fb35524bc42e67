// Package logging provides structured logging for presence-core.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	store.SetLogger(logger.Component("presence"))
//	logger.Info("starting service", "port", 3001)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
