package covenant

import (
	"math"
	"strings"
)

// Ratio names shared by extracted covenants and computed ratios.
// Matching between the two is exact string equality on these values.
const (
	DebtToEBITDA     = "Debt-to-EBITDA"
	InterestCoverage = "Interest Coverage"
	CurrentRatio     = "Current Ratio"
)

// Column aliases looked up in a normalized financial snapshot
const (
	KeyEBITDA             = "ebitda"
	KeyTotalDebt          = "total_debt"
	KeyInterest           = "interest"
	KeyCurrentAssets      = "current_assets"
	KeyCurrentLiabilities = "current_liabilities"
)

// Operator is the comparison a covenant imposes on its ratio
type Operator string

const (
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpEqual        Operator = "="
)

// Valid reports whether o is one of the known operators
func (o Operator) Valid() bool {
	switch o {
	case OpLessEqual, OpGreaterEqual, OpLess, OpGreater, OpEqual:
		return true
	}
	return false
}

// Category groups covenants by the kind of obligation they describe
type Category string

const (
	CategoryFinancial Category = "Financial"
	CategoryReporting Category = "Reporting"
)

// Status is the three-tier compliance outcome
type Status string

const (
	StatusCompliant Status = "Compliant"
	StatusWarning   Status = "Warning"
	StatusBreach    Status = "Breach"
)

// Severity ranks statuses so that a higher value is worse.
func (s Status) Severity() int {
	switch s {
	case StatusWarning:
		return 1
	case StatusBreach:
		return 2
	default:
		return 0
	}
}

// Definition represents a single covenant extracted from a loan agreement.
// Values are immutable once extracted; persistence layers convert to and from
// this type at their boundary.
type Definition struct {
	Name         string   `json:"name" yaml:"name" validate:"required"`
	Threshold    float64  `json:"threshold" yaml:"threshold"`
	Operator     Operator `json:"operator" yaml:"operator" validate:"required,oneof=<= >= < > ="`
	Category     Category `json:"category" yaml:"category" validate:"required,oneof=Financial Reporting"`
	SourceClause string   `json:"clause,omitempty" yaml:"clause,omitempty"`
}

// Result is the outcome of evaluating one covenant against one value
type Result struct {
	Status       Status  `json:"status"`
	CurrentValue float64 `json:"current_value"`
	Threshold    float64 `json:"threshold"`
}

// Snapshot holds one period of financial figures keyed by lower-cased,
// trimmed column name.
type Snapshot map[string]float64

// NewSnapshot normalizes raw figures into a Snapshot. Keys are trimmed and
// lower-cased; NaN and infinite values are dropped.
func NewSnapshot(figures map[string]float64) Snapshot {
	s := make(Snapshot, len(figures))
	for k, v := range figures {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		key := NormalizeKey(k)
		if key == "" {
			continue
		}
		s[key] = v
	}
	return s
}

// NormalizeKey applies the snapshot column-name normalization.
func NormalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// RatioSet maps a ratio name to its computed value (rounded to 2 decimals)
type RatioSet map[string]float64
