// Package logging builds the service's slog logger.
//
// Every entry carries the service name and build version. Format is JSON
// (default) or text, the level is one of debug/info/warn/error, and output
// goes to stdout or stderr:
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stdout"
//
// Components derive child loggers so lines can be filtered by subsystem:
//
//	log := logging.New(cfg.Logging, version)
//	verifier.SetLogger(log.Component("verify"))
//
// Broker credentials are never logged. Device IDs and client IDs are safe.
package logging
