package engine

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/user/credit-sentinel/pkg/adk"
	"github.com/user/credit-sentinel/pkg/config"
)

// NewExtractor builds the extraction strategy chosen by configuration. The
// decision is made once here; callers never branch on document content.
// provider is only used by the model strategy and may be nil otherwise.
func NewExtractor(cfg *config.Config, provider adk.LLMProvider, log *zap.Logger) (Extractor, error) {
	switch strategy := cfg.ExtractionStrategy(); strategy {
	case config.StrategyModel:
		if provider == nil {
			return nil, fmt.Errorf("model extraction needs an LLM provider (%s)", cfg.SelectedProvider)
		}
		return NewModelExtractor(provider,
			WithMaxChars(cfg.Extraction.MaxChars),
			WithRetry(cfg.Extraction.Attempts, cfg.Extraction.RetryDelay),
			WithTimeout(cfg.Extraction.Timeout),
			WithModelLogger(log),
		), nil
	case config.StrategyPattern:
		opts := []PatternOption{
			WithDemoCovenants(cfg.Extraction.DemoFallback),
			WithPatternLogger(log),
		}
		if cfg.Extraction.RulesDir != "" {
			extra, err := LoadRulePacks(cfg.Extraction.RulesDir)
			if err != nil {
				return nil, fmt.Errorf("loading rule packs: %w", err)
			}
			opts = append(opts, WithExtraRules(extra))
		}
		return NewPatternExtractor(opts...), nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", strategy)
	}
}

// ExtractorFingerprint identifies the extraction configuration NewExtractor
// would build from cfg. Cached results are scoped by it.
func ExtractorFingerprint(cfg *config.Config) string {
	strategy := cfg.ExtractionStrategy()
	parts := []string{"strategy=" + strategy}

	switch strategy {
	case config.StrategyModel:
		parts = append(parts,
			"provider="+cfg.SelectedProvider,
			"model="+cfg.SelectedModel,
			"max_chars="+strconv.Itoa(cfg.Extraction.MaxChars),
		)
	case config.StrategyPattern:
		parts = append(parts, "demo="+strconv.FormatBool(cfg.Extraction.DemoFallback))
		if cfg.Extraction.RulesDir != "" {
			parts = append(parts, "rules_dir="+cfg.Extraction.RulesDir)
			if extra, err := LoadRulePacks(cfg.Extraction.RulesDir); err == nil {
				for _, r := range extra {
					parts = append(parts, fmt.Sprintf("rule=%s|%s|%s", r.Name, r.Operator, r.re.String()))
				}
			}
		}
	}
	return strings.Join(parts, ";")
}

// NewCalculatorFromConfig builds a calculator honouring the ratios section
func NewCalculatorFromConfig(cfg *config.Config, log *zap.Logger) *Calculator {
	return NewCalculator(WithDemoRatios(cfg.Ratios.DemoFallback), WithCalculatorLogger(log))
}
