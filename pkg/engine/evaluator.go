package engine

import "github.com/user/credit-sentinel/pkg/covenant"

// Warning band multipliers: a compliant value within 10% of its threshold is
// reported as Warning.
const (
	ceilingWarnFactor = 0.9
	floorWarnFactor   = 1.1
)

// Evaluate classifies value against a covenant. It is pure: the result only
// depends on (threshold, operator, value).
//
// With a zero threshold the warning band collapses onto the breach edge, so
// Warning is never produced.
func Evaluate(def covenant.Definition, value float64) covenant.Result {
	return covenant.Result{
		Status:       classify(def.Operator, def.Threshold, value),
		CurrentValue: value,
		Threshold:    def.Threshold,
	}
}

func classify(op covenant.Operator, t, v float64) covenant.Status {
	switch op {
	case covenant.OpLessEqual:
		if v > t {
			return covenant.StatusBreach
		}
		if v > ceilingWarnFactor*t {
			return covenant.StatusWarning
		}
	case covenant.OpLess:
		if v >= t {
			return covenant.StatusBreach
		}
		if v > ceilingWarnFactor*t {
			return covenant.StatusWarning
		}
	case covenant.OpGreaterEqual:
		if v < t {
			return covenant.StatusBreach
		}
		if v < floorWarnFactor*t {
			return covenant.StatusWarning
		}
	case covenant.OpGreater:
		if v <= t {
			return covenant.StatusBreach
		}
		if v < floorWarnFactor*t {
			return covenant.StatusWarning
		}
	case covenant.OpEqual:
		if v != t {
			return covenant.StatusBreach
		}
	}
	return covenant.StatusCompliant
}
