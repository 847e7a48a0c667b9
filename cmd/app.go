package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	appconfig "github.com/ca-srg/leakscope/internal/config"
	"github.com/ca-srg/leakscope/internal/logger"
	"github.com/ca-srg/leakscope/internal/metrics"
	"github.com/ca-srg/leakscope/internal/observability"
	"github.com/ca-srg/leakscope/internal/search"
	"github.com/ca-srg/leakscope/internal/source"
	"github.com/ca-srg/leakscope/internal/types"
)

type (
	appConfigLoader  func() (*types.Config, error)
	sourceDefsLoader func(path string) ([]appconfig.SourceDefinition, error)
	registryFactory  func(defs []appconfig.SourceDefinition, cfg *types.Config, log *zap.Logger) (*source.Registry, error)
	loggerFactory    func(env, level string) (*zap.Logger, error)
	telemetryInit    func(ctx context.Context, cfg *types.Config, log *zap.Logger) (observability.ShutdownFunc, error)
	statsInit        func(cfg *types.Config, log *zap.Logger) error
)

// Factories are package variables so command tests can swap in fakes.
var (
	loadAppConfig  appConfigLoader  = appconfig.Load
	loadSourceDefs sourceDefsLoader = func(path string) ([]appconfig.SourceDefinition, error) {
		file, err := appconfig.LoadSources(path)
		if err != nil {
			return nil, err
		}
		return file.Sources, nil
	}
	buildRegistry registryFactory = source.Build
	newAppLogger  loggerFactory   = logger.New
	initTelemetry telemetryInit   = observability.Init
	initStats     statsInit       = func(cfg *types.Config, log *zap.Logger) error {
		path := cfg.MetricsDBPath
		if path == "" {
			p, err := metrics.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		if err := metrics.Init(path, log); err != nil {
			return err
		}
		return metrics.InitOTelMetrics()
	}
)

// app is the wiring shared by every command that searches.
type app struct {
	cfg      *types.Config
	logger   *zap.Logger
	registry *source.Registry
	engine   *search.Engine
	shutdown observability.ShutdownFunc
}

// newApp loads configuration, installs logging, telemetry and the stats
// store, then builds the source registry and search engine.
func newApp(ctx context.Context) (*app, error) {
	envErr := godotenv.Load(envFile)

	cfg, err := loadAppConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if sourcesFile != "" {
		cfg.SourcesFile = sourcesFile
	}

	log, err := newAppLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.Warn("failed to load env file", zap.String("path", envFile), zap.Error(envErr))
	}

	shutdown, err := initTelemetry(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a := &app{cfg: cfg, logger: log, shutdown: shutdown}

	if err := initStats(cfg, log); err != nil {
		log.Warn("invocation statistics disabled", zap.Error(err))
	}

	defs, err := loadSourceDefs(cfg.SourcesFile)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.registry, err = buildRegistry(defs, cfg, log)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to configure sources: %w", err)
	}
	a.engine, err = search.NewEngine(a.registry, search.ConfigFromTypes(cfg), log)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	log.Debug("application ready",
		zap.String("env", cfg.Env),
		zap.Strings("sources", a.registry.Names()))
	return a, nil
}

// Close releases source clients, the stats store and telemetry providers.
func (a *app) Close(ctx context.Context) {
	if a.registry != nil {
		a.registry.Close()
	}
	if err := metrics.Close(); err != nil {
		a.logger.Warn("failed to close stats store", zap.Error(err))
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
