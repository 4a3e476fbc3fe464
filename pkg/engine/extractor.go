package engine

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/user/credit-sentinel/pkg/covenant"
	"github.com/user/credit-sentinel/pkg/logging"
)

// Extractor turns agreement text into covenant definitions. Implementations
// never fail: anything they cannot recognise is simply absent from the
// result, and an empty result means "no covenants found".
type Extractor interface {
	Extract(ctx context.Context, text string) []covenant.Definition
}

// DemoCovenants is the illustrative pair returned by a pattern extractor
// with the demo fallback enabled.
func DemoCovenants() []covenant.Definition {
	return []covenant.Definition{
		{Name: covenant.DebtToEBITDA, Threshold: 3.5, Operator: covenant.OpLessEqual, Category: covenant.CategoryFinancial},
		{Name: covenant.InterestCoverage, Threshold: 2.0, Operator: covenant.OpGreaterEqual, Category: covenant.CategoryFinancial},
	}
}

// PatternExtractor applies an ordered list of regex rules to the text
type PatternExtractor struct {
	rules        []Rule
	demoFallback bool
	log          *zap.Logger
}

// PatternOption configures a PatternExtractor
type PatternOption func(*PatternExtractor)

// WithRules replaces the built-in rules
func WithRules(rules []Rule) PatternOption {
	return func(p *PatternExtractor) { p.rules = rules }
}

// WithExtraRules appends rules after the built-in ones
func WithExtraRules(rules []Rule) PatternOption {
	return func(p *PatternExtractor) { p.rules = append(p.rules, rules...) }
}

// WithDemoCovenants returns DemoCovenants when no rule matched
func WithDemoCovenants(enabled bool) PatternOption {
	return func(p *PatternExtractor) { p.demoFallback = enabled }
}

// WithPatternLogger sets the logger
func WithPatternLogger(l *zap.Logger) PatternOption {
	return func(p *PatternExtractor) { p.log = logging.OrNop(l) }
}

// NewPatternExtractor creates an extractor over the built-in rule pack
func NewPatternExtractor(opts ...PatternOption) *PatternExtractor {
	p := &PatternExtractor{rules: DefaultRules(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract keeps the first match of each rule. A covenant name already
// produced by an earlier rule is not produced again.
func (p *PatternExtractor) Extract(ctx context.Context, text string) []covenant.Definition {
	defs, _ := p.extract(ctx, text)
	return defs
}

func (p *PatternExtractor) extract(_ context.Context, text string) ([]covenant.Definition, bool) {
	var out []covenant.Definition
	seen := make(map[string]bool)

	for _, r := range p.rules {
		if seen[r.Name] {
			continue
		}
		m := r.re.FindStringSubmatchIndex(text)
		if m == nil || m[2] < 0 {
			continue
		}
		threshold, err := strconv.ParseFloat(text[m[2]:m[3]], 64)
		if err != nil {
			p.log.Debug("unparseable threshold", zap.String("rule", r.Name), zap.Error(err))
			continue
		}
		seen[r.Name] = true
		out = append(out, covenant.Definition{
			Name:         r.Name,
			Threshold:    threshold,
			Operator:     r.Operator,
			Category:     r.Category,
			SourceClause: text[m[0]:m[1]],
		})
	}

	if len(out) == 0 && p.demoFallback {
		p.log.Warn("no covenant language recognised, returning demo covenants")
		return DemoCovenants(), true
	}
	p.log.Debug("pattern extraction finished", zap.Int("covenants", len(out)))
	return out, false
}
