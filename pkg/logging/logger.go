// Package logging provides structured logging for dqsync using zerolog.
//
// A process-wide default logger is configured once by the CLI. Components
// receive a logger through the context, enriched with run, dataset and check
// fields as the reconciliation descends:
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithDataset(ctx, ds.ID, ds.Name)
//	logging.FromContext(ctx).Warn().Msg("No table asset found")
package logging

import (
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var defaultLogger atomic.Pointer[zerolog.Logger]

func init() {
	logger := NewLoggerFromConfig(ConfigFromEnv())
	defaultLogger.Store(&logger)
}

// Default returns the process-wide logger used when a context carries none.
func Default() *zerolog.Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the process-wide logger. zerolog's global log.Logger
// follows it so third-party code logging through it lands in the same sink.
func SetDefault(logger zerolog.Logger) {
	defaultLogger.Store(&logger)
	log.Logger = logger
}

// Configure replaces the process-wide logger with one built from cfg.
func Configure(cfg *Config) {
	SetDefault(NewLoggerFromConfig(cfg))
}
