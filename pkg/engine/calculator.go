package engine

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/user/credit-sentinel/pkg/covenant"
	"github.com/user/credit-sentinel/pkg/logging"
)

// ErrNoRatios is returned when a snapshot yields no computable ratio and the
// demo fallback is disabled.
var ErrNoRatios = errors.New("no ratios computable from snapshot")

// DemoRatios is the illustrative set returned by a calculator with the demo
// fallback enabled.
func DemoRatios() covenant.RatioSet {
	return covenant.RatioSet{
		covenant.DebtToEBITDA:     3.2,
		covenant.InterestCoverage: 2.5,
		covenant.CurrentRatio:     1.2,
	}
}

// Calculator turns a financial snapshot into named ratios
type Calculator struct {
	demoFallback bool
	log          *zap.Logger
}

// CalculatorOption configures a Calculator
type CalculatorOption func(*Calculator)

// WithDemoRatios makes Calculate return DemoRatios instead of ErrNoRatios
// when nothing could be computed.
func WithDemoRatios(enabled bool) CalculatorOption {
	return func(c *Calculator) { c.demoFallback = enabled }
}

// WithCalculatorLogger sets the logger used for fallback diagnostics
func WithCalculatorLogger(l *zap.Logger) CalculatorOption {
	return func(c *Calculator) { c.log = logging.OrNop(l) }
}

// NewCalculator creates a calculator. The demo fallback is off by default.
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate computes every ratio whose inputs are present with a non-zero
// denominator. Each ratio is independent: a missing input only omits that
// ratio.
func (c *Calculator) Calculate(s covenant.Snapshot) (covenant.RatioSet, error) {
	ratios := make(covenant.RatioSet)

	if v, ok := divide(s, covenant.KeyTotalDebt, covenant.KeyEBITDA); ok {
		ratios[covenant.DebtToEBITDA] = v
	}
	if v, ok := divide(s, covenant.KeyEBITDA, covenant.KeyInterest); ok {
		ratios[covenant.InterestCoverage] = v
	}
	if v, ok := divide(s, covenant.KeyCurrentAssets, covenant.KeyCurrentLiabilities); ok {
		ratios[covenant.CurrentRatio] = v
	}

	if len(ratios) > 0 {
		return ratios, nil
	}
	if c.demoFallback {
		c.log.Warn("no ratios computable, returning demo ratios", zap.Int("columns", len(s)))
		return DemoRatios(), nil
	}
	return nil, ErrNoRatios
}

func divide(s covenant.Snapshot, num, den string) (float64, bool) {
	n, ok := s[num]
	if !ok {
		return 0, false
	}
	d, ok := s[den]
	if !ok || d == 0 {
		return 0, false
	}
	q := n / d
	if math.IsInf(q, 0) || math.IsNaN(q) {
		return 0, false
	}
	return round(q, 2), true
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
