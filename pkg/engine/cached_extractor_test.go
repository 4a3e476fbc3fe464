package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/credit-sentinel/pkg/config"
	"github.com/user/credit-sentinel/pkg/covenant"
)

type mapCache struct {
	data    map[string][]byte
	getErr  error
	setErr  error
	lastTTL time.Duration
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (m *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.lastTTL = ttl
	return nil
}

type countingExtractor struct {
	defs  []covenant.Definition
	calls int
}

func (c *countingExtractor) Extract(context.Context, string) []covenant.Definition {
	c.calls++
	return c.defs
}

func TestCachedExtractorHit(t *testing.T) {
	inner := &countingExtractor{defs: DemoCovenants()}
	c := newMapCache()
	x := NewCachedExtractor(inner, c, time.Hour, "", nil)

	first := x.Extract(context.Background(), "agreement")
	second := x.Extract(context.Background(), "agreement")

	assert.Equal(t, DemoCovenants(), first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, time.Hour, c.lastTTL)
	assert.Contains(t, c.data, cacheKey("", "agreement"))

	x.Extract(context.Background(), "another agreement")
	assert.Equal(t, 2, inner.calls)
}

func TestCachedExtractorSkipsEmptyResults(t *testing.T) {
	inner := &countingExtractor{}
	c := newMapCache()
	x := NewCachedExtractor(inner, c, time.Hour, "", nil)

	x.Extract(context.Background(), "nothing here")
	x.Extract(context.Background(), "nothing here")

	assert.Equal(t, 2, inner.calls)
	assert.Empty(t, c.data)
}

func TestCachedExtractorSurvivesCacheFailures(t *testing.T) {
	inner := &countingExtractor{defs: DemoCovenants()}
	c := newMapCache()
	c.getErr = errors.New("connection refused")
	c.setErr = errors.New("connection refused")

	defs := NewCachedExtractor(inner, c, time.Hour, "", nil).Extract(context.Background(), "agreement")
	assert.Equal(t, DemoCovenants(), defs)
}

func TestCachedExtractorDiscardsCorruptEntry(t *testing.T) {
	inner := &countingExtractor{defs: DemoCovenants()}
	c := newMapCache()
	c.data[cacheKey("", "agreement")] = []byte("{not json")

	defs := NewCachedExtractor(inner, c, time.Hour, "", nil).Extract(context.Background(), "agreement")
	assert.Equal(t, DemoCovenants(), defs)
	assert.Equal(t, 1, inner.calls)
}

func TestNewExtractorStrategies(t *testing.T) {
	cfg := &config.Config{SelectedProvider: "gemini"}

	cfg.Extraction.Strategy = config.StrategyPattern
	x, err := NewExtractor(cfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &PatternExtractor{}, x)

	cfg.Extraction.Strategy = config.StrategyModel
	_, err = NewExtractor(cfg, nil, nil)
	assert.Error(t, err)

	x, err = NewExtractor(cfg, &fakeProvider{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ModelExtractor{}, x)

	cfg.Extraction.Strategy = "telepathy"
	_, err = NewExtractor(cfg, nil, nil)
	assert.Error(t, err)
}

func TestNewExtractorAutoFollowsKey(t *testing.T) {
	cfg := &config.Config{SelectedProvider: "gemini"}

	x, err := NewExtractor(cfg, &fakeProvider{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &PatternExtractor{}, x)

	cfg.SetAPIKey("gemini", "k")
	x, err = NewExtractor(cfg, &fakeProvider{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ModelExtractor{}, x)
}

func TestNewExtractorMissingRulesDir(t *testing.T) {
	cfg := &config.Config{}
	cfg.Extraction.Strategy = config.StrategyPattern
	cfg.Extraction.RulesDir = "/does/not/exist"

	_, err := NewExtractor(cfg, nil, nil)
	assert.Error(t, err)
}

func TestCachedExtractorNeverCachesDemoFallback(t *testing.T) {
	c := newMapCache()
	text := "This agreement contains no financial covenants."

	demo := NewCachedExtractor(NewPatternExtractor(WithDemoCovenants(true)), c, time.Hour, "", nil)
	assert.Equal(t, DemoCovenants(), demo.Extract(context.Background(), text))
	assert.Empty(t, c.data)

	strict := NewCachedExtractor(NewPatternExtractor(), c, time.Hour, "", nil)
	assert.Empty(t, strict.Extract(context.Background(), text))
}

func TestCachedExtractorScopesEntriesByConfiguration(t *testing.T) {
	c := newMapCache()

	patternCfg := &config.Config{}
	patternCfg.Extraction.Strategy = config.StrategyPattern
	modelCfg := &config.Config{SelectedProvider: "gemini", SelectedModel: "gemini-1.5-pro"}
	modelCfg.Extraction.Strategy = config.StrategyModel

	fromPattern := &countingExtractor{defs: []covenant.Definition{
		{Name: covenant.DebtToEBITDA, Threshold: 3.5, Operator: covenant.OpLessEqual, Category: covenant.CategoryFinancial},
	}}
	fromModel := &countingExtractor{defs: []covenant.Definition{
		{Name: covenant.CurrentRatio, Threshold: 1.25, Operator: covenant.OpGreaterEqual, Category: covenant.CategoryFinancial},
	}}
	a := NewCachedExtractor(fromPattern, c, time.Hour, ExtractorFingerprint(patternCfg), nil)
	b := NewCachedExtractor(fromModel, c, time.Hour, ExtractorFingerprint(modelCfg), nil)

	assert.Equal(t, fromPattern.defs, a.Extract(context.Background(), "agreement"))
	assert.Equal(t, fromModel.defs, b.Extract(context.Background(), "agreement"))
	assert.Equal(t, 1, fromModel.calls)
	assert.Len(t, c.data, 2)

	assert.Equal(t, fromPattern.defs, a.Extract(context.Background(), "agreement"))
	assert.Equal(t, 1, fromPattern.calls)
}

func TestExtractorFingerprint(t *testing.T) {
	base := func() *config.Config {
		cfg := &config.Config{SelectedProvider: "gemini", SelectedModel: "gemini-1.5-pro"}
		cfg.Extraction.Strategy = config.StrategyPattern
		return cfg
	}
	assert.Equal(t, ExtractorFingerprint(base()), ExtractorFingerprint(base()))

	demo := base()
	demo.Extraction.DemoFallback = true
	assert.NotEqual(t, ExtractorFingerprint(base()), ExtractorFingerprint(demo))

	model := base()
	model.Extraction.Strategy = config.StrategyModel
	otherModel := base()
	otherModel.Extraction.Strategy = config.StrategyModel
	otherModel.SelectedModel = "gemini-1.5-flash"
	assert.NotEqual(t, ExtractorFingerprint(base()), ExtractorFingerprint(model))
	assert.NotEqual(t, ExtractorFingerprint(model), ExtractorFingerprint(otherModel))

	withRules := base()
	withRules.Extraction.RulesDir = t.TempDir()
	assert.NotEqual(t, ExtractorFingerprint(base()), ExtractorFingerprint(withRules))
}
