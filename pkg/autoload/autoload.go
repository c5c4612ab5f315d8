// Package autoload is the workload-facing bootstrap entry point. A serving
// process links it in (the webhook injects the configuration that drives
// it) and calls Install once at startup; from then on the profiler attaches
// itself automatically when the target module loads.
package autoload

import (
	"github.com/rs/zerolog"

	"github.com/periscope-mesh/periscope/internal/constants"
	"github.com/periscope-mesh/periscope/internal/intercept"
	"github.com/periscope-mesh/periscope/internal/logging"
	"github.com/periscope-mesh/periscope/internal/profiler"
)

// Controller exposes the resolved state of an installed profiling
// controller.
type Controller struct {
	cfg    *profiler.Config
	logger zerolog.Logger
}

// Config returns the resolved configuration snapshot.
func (c *Controller) Config() *profiler.Config { return c.cfg }

// Option customizes Install.
type Option func(*options)

type options struct {
	configPath string
	logger     *zerolog.Logger
}

// WithConfigPath overrides the profiler config document location.
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithLogger supplies a pre-built logger instead of the default one.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// Install resolves configuration and registers the one-shot module-load
// hook that wraps the target method slot. Everything past this point is
// best-effort: a missing module, symbol or mismatched slot type degrades
// to a logged warning and the workload proceeds unprofiled. Install never
// panics into the caller.
//
// Installing more than once is harmless; the slot-level idempotency key
// prevents double wrapping.
func Install(reg *intercept.Registry, opts ...Option) *Controller {
	var o options
	o.configPath = constants.DefaultConfigPath
	for _, opt := range opts {
		opt(&o)
	}

	cfg := profiler.NewResolver(o.configPath).Resolve(bootLogger(o))
	logger := controllerLogger(o, cfg)

	reg.OnLoad(cfg.TargetModule, func(m *intercept.Module) {
		attach(m, cfg, logger)
	})

	logger.Info().
		Str("module", cfg.TargetModule).
		Str("symbol", cfg.TargetSymbol).
		Msg("Profiling controller installed, waiting for target module")

	return &Controller{cfg: cfg, logger: logger}
}

func attach(m *intercept.Module, cfg *profiler.Config, logger zerolog.Logger) {
	sym, err := m.Lookup(cfg.TargetSymbol)
	if err != nil {
		logger.Warn().Err(err).
			Str("module", m.Name()).
			Msg("Target symbol not found, workload proceeds unprofiled")
		return
	}

	wp, ok := sym.(intercept.WrapPoint)
	if !ok {
		logger.Warn().
			Str("module", m.Name()).
			Str("symbol", cfg.TargetSymbol).
			Msg("Target symbol is not a wrappable slot, workload proceeds unprofiled")
		return
	}

	if err := profiler.Attach(wp, cfg, logger); err != nil {
		logger.Warn().Err(err).Msg("Profiler attach failed, workload proceeds unprofiled")
	}
}

// bootLogger is used during config resolution, before the debug flag is
// known.
func bootLogger(o options) zerolog.Logger {
	if o.logger != nil {
		return *o.logger
	}
	return logging.New(logging.DefaultConfig())
}

func controllerLogger(o options, cfg *profiler.Config) zerolog.Logger {
	if o.logger != nil {
		return *o.logger
	}

	logCfg := logging.DefaultConfig()
	if cfg.Debug {
		logCfg.Level = "debug"
	}
	return logging.NewWithComponent(logCfg, "profiling-controller")
}
