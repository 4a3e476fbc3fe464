package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/credit-sentinel/pkg/covenant"
)

// fakeProvider answers GenerateText from a queue of canned replies
type fakeProvider struct {
	mu      sync.Mutex
	replies []fakeReply
	prompts []string
	block   bool
}

type fakeReply struct {
	text string
	err  error
}

func (f *fakeProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	if f.block {
		f.mu.Unlock()
		<-ctx.Done()
		return "", ctx.Err()
	}
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return "", errors.New("no reply queued")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.text, r.err
}

func (f *fakeProvider) ListModels(context.Context) ([]string, error) {
	return []string{"fake-1"}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

const leverageJSON = `[{"name": "Debt-to-EBITDA", "threshold": 3.5, "operator": "<=", "category": "Financial", "clause": "shall not exceed 3.5x"}]`

func TestModelExtractParsesFencedJSON(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{{text: "```json\n" + leverageJSON + "\n```"}}}
	defs := NewModelExtractor(p, WithRetry(3, 0)).Extract(context.Background(), "agreement")

	require.Len(t, defs, 1)
	assert.Equal(t, covenant.Definition{
		Name:         covenant.DebtToEBITDA,
		Threshold:    3.5,
		Operator:     covenant.OpLessEqual,
		Category:     covenant.CategoryFinancial,
		SourceClause: "shall not exceed 3.5x",
	}, defs[0])
	assert.Equal(t, 1, p.calls())
}

func TestModelExtractRetriesThenSucceeds(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{
		{err: errors.New("503 unavailable")},
		{text: "I could not find any covenants, sorry"},
		{text: leverageJSON},
	}}
	defs := NewModelExtractor(p, WithRetry(3, 0)).Extract(context.Background(), "agreement")

	require.Len(t, defs, 1)
	assert.Equal(t, 3, p.calls())
}

func TestModelExtractExhaustedReturnsEmpty(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{
		{err: errors.New("boom")},
		{err: errors.New("boom")},
		{err: errors.New("boom")},
		{text: leverageJSON},
	}}
	defs := NewModelExtractor(p, WithRetry(3, 0)).Extract(context.Background(), "agreement")

	assert.NotNil(t, defs)
	assert.Empty(t, defs)
	assert.Equal(t, 3, p.calls())
}

func TestModelExtractHonoursOverallDeadline(t *testing.T) {
	p := &fakeProvider{block: true}
	x := NewModelExtractor(p, WithRetry(3, time.Second), WithTimeout(50*time.Millisecond))

	start := time.Now()
	defs := x.Extract(context.Background(), "agreement")

	assert.Empty(t, defs)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, p.calls())
}

func TestModelExtractTruncatesDocument(t *testing.T) {
	p := &fakeProvider{replies: []fakeReply{{text: "[]"}}}
	doc := strings.Repeat("é", 50) + "TAIL"

	defs := NewModelExtractor(p, WithMaxChars(50), WithRetry(1, 0)).Extract(context.Background(), doc)

	assert.Empty(t, defs)
	require.Equal(t, 1, p.calls())
	assert.Contains(t, p.prompts[0], strings.Repeat("é", 50))
	assert.NotContains(t, p.prompts[0], "TAIL")
}

func TestParseModelResponseDropsIncompleteEntries(t *testing.T) {
	resp := `[
		{"name": "Current Ratio", "threshold": 1.25, "operator": ">="},
		{"name": "", "threshold": 2, "operator": ">="},
		{"name": "Tangible Net Worth", "operator": ">="},
		{"name": "Capex", "threshold": 10, "operator": "~"},
		{"name": "Annual Audit", "threshold": 120, "operator": "<=", "category": "Reporting"},
		{"name": "Fixed Charge", "threshold": 0, "operator": ">", "category": "Other"}
	]`

	defs, err := ParseModelResponse(resp)
	require.NoError(t, err)
	require.Len(t, defs, 3)

	assert.Equal(t, covenant.CurrentRatio, defs[0].Name)
	assert.Equal(t, covenant.CategoryFinancial, defs[0].Category)
	assert.Equal(t, covenant.CategoryReporting, defs[1].Category)
	assert.Equal(t, 0.0, defs[2].Threshold)
	assert.Equal(t, covenant.OpGreater, defs[2].Operator)
	assert.Equal(t, covenant.CategoryFinancial, defs[2].Category)
}

func TestParseModelResponseMalformed(t *testing.T) {
	_, err := ParseModelResponse(`{"name": "not an array"}`)
	assert.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"[]":                   "[]",
		"  []  ":               "[]",
		"```\n[1]\n```":        "[1]",
		"```json\n[1]\n```":    "[1]",
		"```json [1] ```":      "[1]",
		"```JSON\n[{}]\n```\n": "[{}]",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripCodeFence(in), "%q", in)
	}
}

func TestTruncateIsRuneSafe(t *testing.T) {
	assert.Equal(t, "héé", truncate("hééllo", 3))
	assert.Equal(t, "short", truncate("short", 10))
}
