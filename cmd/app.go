package cmd

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/user/credit-sentinel/pkg/adk"
	"github.com/user/credit-sentinel/pkg/cache"
	"github.com/user/credit-sentinel/pkg/config"
	"github.com/user/credit-sentinel/pkg/engine"
	"github.com/user/credit-sentinel/pkg/logging"
	"github.com/user/credit-sentinel/pkg/monitor"
	"github.com/user/credit-sentinel/pkg/store"
)

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(ConfigPath)
}

// app holds the components shared by the commands that touch covenants
type app struct {
	cfg        *config.Config
	extractor  engine.Extractor
	calculator *engine.Calculator
	store      store.Store
	service    *monitor.Service
	closers    []io.Closer
}

// newApp wires the configured extraction strategy, cache, calculator and store
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log := logging.Log
	a := &app{cfg: cfg}

	var provider adk.LLMProvider
	if cfg.ExtractionStrategy() == config.StrategyModel {
		provider, err = adk.NewProvider(ctx, cfg.SelectedProvider, cfg.GetAPIKey(cfg.SelectedProvider), cfg.SelectedModel)
		if err != nil {
			return nil, fmt.Errorf("initializing %s provider: %w", cfg.SelectedProvider, err)
		}
		if c, ok := provider.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
	}

	x, err := engine.NewExtractor(cfg, provider, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	c, err := cache.FromConfig(ctx, cfg.Cache, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	if c != nil {
		if closer, ok := c.(io.Closer); ok {
			a.closers = append(a.closers, closer)
		}
		x = engine.NewCachedExtractor(x, c, cfg.Cache.TTL, engine.ExtractorFingerprint(cfg), log)
	}
	a.extractor = x
	logging.Debugf("Extraction strategy selected: %s", cfg.ExtractionStrategy())

	a.store, err = store.FromConfig(cfg.Store, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.store)

	a.calculator = engine.NewCalculatorFromConfig(cfg, log)
	a.service = monitor.NewService(a.extractor, a.calculator, a.store,
		monitor.WithConcurrency(cfg.BatchConcurrency),
		monitor.WithLogger(log),
	)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logging.Log.Warn("Failed to close resource", zap.Error(err))
		}
	}
}
