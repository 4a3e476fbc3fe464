package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/credit-sentinel/pkg/covenant"
	"github.com/user/credit-sentinel/pkg/monitor"
)

// Memory keeps covenants and reports in process memory
type Memory struct {
	mu        sync.RWMutex
	covenants map[string][]covenant.Definition
	reports   map[string][]monitor.Report
}

func NewMemory() *Memory {
	return &Memory{
		covenants: make(map[string][]covenant.Definition),
		reports:   make(map[string][]monitor.Report),
	}
}

func (m *Memory) SaveCovenants(_ context.Context, loanID string, defs []covenant.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.covenants[loanID] = append([]covenant.Definition(nil), defs...)
	return nil
}

func (m *Memory) Covenants(_ context.Context, loanID string) ([]covenant.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]covenant.Definition{}, m.covenants[loanID]...), nil
}

func (m *Memory) SaveReport(_ context.Context, r monitor.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.LoanID] = append(m.reports[r.LoanID], r)
	return nil
}

func (m *Memory) LatestReport(_ context.Context, loanID string) (monitor.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reports := m.reports[loanID]
	if len(reports) == 0 {
		return monitor.Report{}, fmt.Errorf("%w: %s", monitor.ErrNoReport, loanID)
	}
	return reports[len(reports)-1], nil
}

func (m *Memory) Reports(_ context.Context, loanID string) ([]monitor.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]monitor.Report{}, m.reports[loanID]...), nil
}

func (m *Memory) Close() error { return nil }
