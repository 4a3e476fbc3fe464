package monitor

import (
	"context"

	"github.com/user/credit-sentinel/pkg/covenant"
)

// Repository persists covenant sets and analysis reports per loan.
// Implementations must be safe for concurrent use.
type Repository interface {
	// SaveCovenants replaces the covenant set of a loan
	SaveCovenants(ctx context.Context, loanID string, defs []covenant.Definition) error
	// Covenants returns the loan's covenants in extraction order, or an
	// empty slice for an unknown loan
	Covenants(ctx context.Context, loanID string) ([]covenant.Definition, error)
	SaveReport(ctx context.Context, r Report) error
	// LatestReport returns ErrNoReport when the loan was never analysed
	LatestReport(ctx context.Context, loanID string) (Report, error)
	// Reports returns every report of the loan, oldest first
	Reports(ctx context.Context, loanID string) ([]Report, error)
}
