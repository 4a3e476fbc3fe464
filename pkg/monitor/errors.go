package monitor

import "errors"

var (
	// ErrNoReport is returned when a loan has never been analysed
	ErrNoReport = errors.New("no report for loan")
	// ErrNoBaseline is returned by Diff when fewer than two reports exist
	ErrNoBaseline = errors.New("no baseline report to compare against")
	// ErrNoCovenants is returned by Analyze for a loan without covenants
	ErrNoCovenants = errors.New("loan has no covenants")
	// ErrInvalidCovenant wraps validation failures of manually supplied covenants
	ErrInvalidCovenant = errors.New("invalid covenant")
)
