package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/credit-sentinel/pkg/covenant"
)

func TestPatternExtractSingleCovenant(t *testing.T) {
	defs := NewPatternExtractor().Extract(context.Background(), "Debt/EBITDA ratio shall not exceed 3.5x")

	require.Len(t, defs, 1)
	assert.Equal(t, covenant.DebtToEBITDA, defs[0].Name)
	assert.Equal(t, 3.5, defs[0].Threshold)
	assert.Equal(t, covenant.OpLessEqual, defs[0].Operator)
	assert.Equal(t, covenant.CategoryFinancial, defs[0].Category)
	assert.Equal(t, "Debt/EBITDA ratio shall not exceed 3.5", defs[0].SourceClause)
}

func TestPatternExtractFullAgreement(t *testing.T) {
	text := `SECTION 7.1 FINANCIAL COVENANTS.
(a) Leverage. The Total Debt to EBITDA Ratio, tested quarterly, shall not exceed 4.25 to 1.00.
(b) Coverage. The Interest Coverage Ratio shall be at least 2.0x as of the last day of each fiscal quarter.
(c) Liquidity. The Borrower shall maintain a Current Ratio of not less than 1.25.`

	defs := NewPatternExtractor().Extract(context.Background(), text)

	require.Len(t, defs, 3)
	assert.Equal(t, covenant.DebtToEBITDA, defs[0].Name)
	assert.Equal(t, 4.25, defs[0].Threshold)
	assert.Equal(t, covenant.OpLessEqual, defs[0].Operator)

	assert.Equal(t, covenant.InterestCoverage, defs[1].Name)
	assert.Equal(t, 2.0, defs[1].Threshold)
	assert.Equal(t, covenant.OpGreaterEqual, defs[1].Operator)

	assert.Equal(t, covenant.CurrentRatio, defs[2].Name)
	assert.Equal(t, 1.25, defs[2].Threshold)
	assert.Equal(t, covenant.OpGreaterEqual, defs[2].Operator)
}

func TestPatternExtractKeepsFirstMatch(t *testing.T) {
	text := "Current Ratio minimum 1.5. In year two the Current Ratio minimum 1.1."
	defs := NewPatternExtractor().Extract(context.Background(), text)

	require.Len(t, defs, 1)
	assert.Equal(t, 1.5, defs[0].Threshold)
}

func TestPatternExtractIsCaseInsensitive(t *testing.T) {
	defs := NewPatternExtractor().Extract(context.Background(), "EBITDA / INTEREST EXPENSE MINIMUM 3")
	require.Len(t, defs, 1)
	assert.Equal(t, covenant.InterestCoverage, defs[0].Name)
	assert.Equal(t, 3.0, defs[0].Threshold)
}

func TestPatternExtractNoCovenantLanguage(t *testing.T) {
	text := "This agreement is governed by the laws of the State of New York."

	assert.Empty(t, NewPatternExtractor().Extract(context.Background(), text))

	demo := NewPatternExtractor(WithDemoCovenants(true)).Extract(context.Background(), text)
	assert.Equal(t, DemoCovenants(), demo)
}

func TestPatternDemoFallbackOnlyWhenNothingMatched(t *testing.T) {
	defs := NewPatternExtractor(WithDemoCovenants(true)).Extract(context.Background(), "Current Ratio at least 1.3")
	require.Len(t, defs, 1)
	assert.Equal(t, covenant.CurrentRatio, defs[0].Name)
}

func TestLoadRulePacks(t *testing.T) {
	dir := t.TempDir()
	pack := `pack: extra
rules:
  - name: Fixed Charge Coverage
    bound: floor
    pattern: 'fixed\s+charge\s+coverage[^.\d]{0,40}?at\s+least\s*(\d+(?:\.\d+)?)'
  - name: Capex
    category: Reporting
    bound: ceiling
    pattern: 'capital\s+expenditures[^.\d]{0,40}?not\s+exceed\s*(\d+(?:\.\d+)?)'
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(pack), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	rules, err := LoadRulePacks(dir)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, covenant.CategoryFinancial, rules[0].Category)
	assert.Equal(t, covenant.OpGreaterEqual, rules[0].Operator)
	assert.Equal(t, covenant.CategoryReporting, rules[1].Category)
	assert.Equal(t, covenant.OpLessEqual, rules[1].Operator)

	x := NewPatternExtractor(WithExtraRules(rules))
	defs := x.Extract(context.Background(), "The Fixed Charge Coverage Ratio shall be at least 1.1. Debt/EBITDA maximum 3.")
	require.Len(t, defs, 2)
	assert.Equal(t, covenant.DebtToEBITDA, defs[0].Name)
	assert.Equal(t, "Fixed Charge Coverage", defs[1].Name)
	assert.Equal(t, 1.1, defs[1].Threshold)
}

func TestRulePackCompileErrors(t *testing.T) {
	tests := map[string]RulePack{
		"bad bound":     {Pack: "p", Rules: []RuleSpec{{Name: "x", Bound: "sideways", Pattern: `(\d+)`}}},
		"no capture":    {Pack: "p", Rules: []RuleSpec{{Name: "x", Bound: BoundFloor, Pattern: `\d+`}}},
		"invalid regex": {Pack: "p", Rules: []RuleSpec{{Name: "x", Bound: BoundFloor, Pattern: `(\d+`}}},
		"missing name":  {Pack: "p", Rules: []RuleSpec{{Bound: BoundFloor, Pattern: `(\d+)`}}},
	}
	for name, p := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := p.Compile()
			assert.Error(t, err)
		})
	}
}

func TestDefaultRulesOrder(t *testing.T) {
	rules := DefaultRules()
	require.Len(t, rules, 3)
	assert.Equal(t, []string{covenant.DebtToEBITDA, covenant.InterestCoverage, covenant.CurrentRatio},
		[]string{rules[0].Name, rules[1].Name, rules[2].Name})
}
