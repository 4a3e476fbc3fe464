package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/user/credit-sentinel/pkg/adk"
	"github.com/user/credit-sentinel/pkg/covenant"
	"github.com/user/credit-sentinel/pkg/logging"
)

const (
	DefaultMaxPromptChars = 8000
	DefaultAttempts       = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultModelTimeout   = 60 * time.Second
)

// ModelExtractor asks a text-generation provider for a JSON array of
// covenants. All attempts together are bounded by an overall deadline.
type ModelExtractor struct {
	provider   adk.LLMProvider
	maxChars   int
	attempts   int
	retryDelay time.Duration
	timeout    time.Duration
	log        *zap.Logger
}

// ModelOption configures a ModelExtractor
type ModelOption func(*ModelExtractor)

// WithMaxChars limits how much of the document is sent to the provider
func WithMaxChars(n int) ModelOption {
	return func(m *ModelExtractor) {
		if n > 0 {
			m.maxChars = n
		}
	}
}

// WithRetry sets the attempt budget and the fixed delay between attempts
func WithRetry(attempts int, delay time.Duration) ModelOption {
	return func(m *ModelExtractor) {
		if attempts > 0 {
			m.attempts = attempts
		}
		if delay >= 0 {
			m.retryDelay = delay
		}
	}
}

// WithTimeout bounds the whole retry sequence
func WithTimeout(d time.Duration) ModelOption {
	return func(m *ModelExtractor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithModelLogger sets the logger
func WithModelLogger(l *zap.Logger) ModelOption {
	return func(m *ModelExtractor) { m.log = logging.OrNop(l) }
}

func NewModelExtractor(provider adk.LLMProvider, opts ...ModelOption) *ModelExtractor {
	m := &ModelExtractor{
		provider:   provider,
		maxChars:   DefaultMaxPromptChars,
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
		timeout:    DefaultModelTimeout,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Extract returns an empty slice when every attempt failed; the failure is
// logged, not returned.
func (m *ModelExtractor) Extract(ctx context.Context, text string) []covenant.Definition {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	prompt := adk.ExtractionPrompt(truncate(text, m.maxChars))

	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		defs, err := m.attempt(ctx, prompt)
		if err == nil {
			m.log.Debug("model extraction finished", zap.Int("attempt", attempt), zap.Int("covenants", len(defs)))
			return defs
		}
		lastErr = err
		m.log.Warn("model extraction attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == m.attempts {
			break
		}
		if err := sleep(ctx, m.retryDelay); err != nil {
			lastErr = err
			break
		}
	}

	m.log.Error("model extraction gave up", zap.Int("attempts", m.attempts), zap.Error(lastErr))
	return []covenant.Definition{}
}

func (m *ModelExtractor) attempt(ctx context.Context, prompt string) ([]covenant.Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := m.provider.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseModelResponse(resp)
}

type modelCovenant struct {
	Name      string   `json:"name"`
	Threshold *float64 `json:"threshold"`
	Operator  string   `json:"operator"`
	Category  string   `json:"category"`
	Clause    string   `json:"clause"`
}

// ParseModelResponse decodes a provider answer into definitions. Markdown
// code fences around the JSON are removed first. Entries without a name,
// threshold or known operator are dropped; a missing or unknown category
// becomes Financial.
func ParseModelResponse(resp string) ([]covenant.Definition, error) {
	var raw []modelCovenant
	if err := json.Unmarshal([]byte(StripCodeFence(resp)), &raw); err != nil {
		return nil, fmt.Errorf("malformed model response: %w", err)
	}

	defs := make([]covenant.Definition, 0, len(raw))
	for _, r := range raw {
		op := covenant.Operator(strings.TrimSpace(r.Operator))
		name := strings.TrimSpace(r.Name)
		if name == "" || r.Threshold == nil || !op.Valid() {
			continue
		}
		category := covenant.Category(strings.TrimSpace(r.Category))
		if category != covenant.CategoryReporting {
			category = covenant.CategoryFinancial
		}
		defs = append(defs, covenant.Definition{
			Name:         name,
			Threshold:    *r.Threshold,
			Operator:     op,
			Category:     category,
			SourceClause: strings.TrimSpace(r.Clause),
		})
	}
	return defs, nil
}

// StripCodeFence removes a surrounding ``` or ```json fence
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
