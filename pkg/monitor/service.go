package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/credit-sentinel/pkg/covenant"
	"github.com/user/credit-sentinel/pkg/engine"
	"github.com/user/credit-sentinel/pkg/id"
	"github.com/user/credit-sentinel/pkg/logging"
)

const defaultConcurrency = 4

// Service ties extraction, ratio calculation and evaluation to a repository
type Service struct {
	extractor   engine.Extractor
	calculator  *engine.Calculator
	repo        Repository
	concurrency int
	now         func() time.Time
	log         *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithConcurrency bounds the number of loans analysed in parallel by AnalyzeBatch
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = logging.OrNop(l) }
}

// WithClock overrides the time source used to stamp reports
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(extractor engine.Extractor, calculator *engine.Calculator, repo Repository, opts ...Option) *Service {
	s := &Service{
		extractor:   extractor,
		calculator:  calculator,
		repo:        repo,
		concurrency: defaultConcurrency,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestAgreement extracts covenants from the agreement text and stores them
// as the loan's covenant set. Extracted covenants that fail validation are
// logged and skipped.
func (s *Service) IngestAgreement(ctx context.Context, loanID, text string) ([]covenant.Definition, error) {
	extracted := s.extractor.Extract(ctx, text)

	defs := make([]covenant.Definition, 0, len(extracted))
	for _, def := range extracted {
		if err := covenant.Validate(def); err != nil {
			s.log.Warn("Skipping invalid covenant", zap.String("loan_id", loanID), zap.String("name", def.Name), zap.Error(err))
			continue
		}
		defs = append(defs, def)
	}

	if err := s.repo.SaveCovenants(ctx, loanID, defs); err != nil {
		return nil, fmt.Errorf("failed to save covenants for loan %s: %w", loanID, err)
	}
	s.log.Info("Agreement ingested", zap.String("loan_id", loanID), zap.Int("covenants", len(defs)))
	return defs, nil
}

// SetCovenants stores a manually supplied covenant set. Unlike
// IngestAgreement, a single invalid definition rejects the whole set.
func (s *Service) SetCovenants(ctx context.Context, loanID string, defs []covenant.Definition) error {
	for i, def := range defs {
		if err := covenant.Validate(def); err != nil {
			return fmt.Errorf("%w: #%d %q: %v", ErrInvalidCovenant, i, def.Name, err)
		}
	}
	if err := s.repo.SaveCovenants(ctx, loanID, defs); err != nil {
		return fmt.Errorf("failed to save covenants for loan %s: %w", loanID, err)
	}
	return nil
}

// Covenants returns the stored covenant set of a loan
func (s *Service) Covenants(ctx context.Context, loanID string) ([]covenant.Definition, error) {
	return s.repo.Covenants(ctx, loanID)
}

// Analyze computes ratios from the snapshot, evaluates the loan's covenants
// against them and stores the resulting report.
func (s *Service) Analyze(ctx context.Context, loanID string, snapshot covenant.Snapshot) (Report, error) {
	defs, err := s.repo.Covenants(ctx, loanID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load covenants for loan %s: %w", loanID, err)
	}
	if len(defs) == 0 {
		return Report{}, fmt.Errorf("%w: %s", ErrNoCovenants, loanID)
	}

	ratios, err := s.calculator.Calculate(snapshot)
	if err != nil {
		return Report{}, fmt.Errorf("loan %s: %w", loanID, err)
	}

	lines, unmatched := Match(defs, ratios)
	report := Report{
		ID:          id.New(),
		LoanID:      loanID,
		GeneratedAt: s.now().UTC(),
		Ratios:      ratios,
		Lines:       lines,
		Unmatched:   unmatched,
	}
	if len(unmatched) > 0 {
		s.log.Debug("Covenants without ratio", zap.String("loan_id", loanID), zap.Strings("names", unmatched))
	}

	if err := s.repo.SaveReport(ctx, report); err != nil {
		return Report{}, fmt.Errorf("failed to save report for loan %s: %w", loanID, err)
	}
	s.log.Info("Loan analysed",
		zap.String("loan_id", loanID),
		zap.String("report_id", report.ID),
		zap.String("overall", string(report.Worst())),
	)
	return report, nil
}

// Job is one loan to analyse in a batch
type Job struct {
	LoanID   string
	Snapshot covenant.Snapshot
}

// BatchResult carries the outcome of one Job; Err is set instead of Report
// when that loan failed.
type BatchResult struct {
	LoanID string
	Report Report
	Err    error
}

// AnalyzeBatch analyses the jobs on a bounded pool of workers. A failing loan
// does not stop the others; the returned error is non-nil only when ctx was
// cancelled. Results keep the order of jobs.
func (s *Service) AnalyzeBatch(ctx context.Context, jobs []Job) ([]BatchResult, error) {
	results := make([]BatchResult, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := s.Analyze(ctx, job.LoanID, job.Snapshot)
			results[i] = BatchResult{LoanID: job.LoanID, Report: report, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.log.Error("Batch analysis interrupted", zap.Error(err))
		return results, fmt.Errorf("batch analysis interrupted: %w", err)
	}
	s.log.Info("Batch analysis completed", zap.Int("loans", len(jobs)))
	return results, nil
}

// LatestReport returns the most recent report of a loan
func (s *Service) LatestReport(ctx context.Context, loanID string) (Report, error) {
	return s.repo.LatestReport(ctx, loanID)
}

// Reports returns the report history of a loan, oldest first
func (s *Service) Reports(ctx context.Context, loanID string) ([]Report, error) {
	return s.repo.Reports(ctx, loanID)
}

// Diff compares the two most recent reports of a loan
func (s *Service) Diff(ctx context.Context, loanID string) (Diff, error) {
	reports, err := s.repo.Reports(ctx, loanID)
	if err != nil {
		return Diff{}, err
	}
	if len(reports) < 2 {
		return Diff{}, fmt.Errorf("%w: loan %s has %d report(s)", ErrNoBaseline, loanID, len(reports))
	}
	return Compare(reports[len(reports)-2], reports[len(reports)-1]), nil
}
