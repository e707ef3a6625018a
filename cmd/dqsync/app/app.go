// Package app wires the dqsync commands to configuration, logging and the
// service clients.
package app

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/agentstation/dqsync/internal/collibra"
	"github.com/agentstation/dqsync/internal/config"
	"github.com/agentstation/dqsync/internal/soda"
	"github.com/agentstation/dqsync/pkg/logging"
	"github.com/agentstation/dqsync/pkg/metrics"
)

// App holds build information, global settings and the logger shared by
// every command.
type App struct {
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger
}

// Option customizes an App.
type Option func(*App) error

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = &logger
		return nil
	}
}

// New creates an App with the given build information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	a := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		config:  LoadConfig(),
	}
	logger := NewLogger(a.config)
	a.logger = &logger

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Version returns the version string.
func (a *App) Version() string { return a.version }

// Config returns the global settings.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

func (a *App) context(ctx context.Context) context.Context {
	return logging.WithLogger(ctx, a.logger)
}

// services are the clients of one command invocation.
type services struct {
	cfg       *config.Config
	source    *soda.Client
	catalog   *collibra.Client
	collector *metrics.Collector
	recorder  *metrics.Recorder
}

// services loads the integration config and builds both clients with a
// shared collector as their call observer.
func (a *App) services(ctx context.Context) (*services, error) {
	cfg, err := config.Load(a.config.ConfigFile)
	if err != nil {
		return nil, err
	}
	recorder := metrics.NewRecorder()
	collector := metrics.NewCollector(metrics.WithRecorder(recorder))

	source, err := soda.New(cfg.SodaClient(), soda.WithObserver(collector))
	if err != nil {
		return nil, err
	}
	catalog, err := collibra.New(ctx, cfg.CollibraClient(), collibra.WithObserver(collector))
	if err != nil {
		return nil, err
	}
	return &services{
		cfg:       cfg,
		source:    source,
		catalog:   catalog,
		collector: collector,
		recorder:  recorder,
	}, nil
}

func (a *App) write(w io.Writer, data any) error {
	return newFormatter(a.config.Format).Format(w, data)
}
