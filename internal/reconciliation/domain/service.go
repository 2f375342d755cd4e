package domain

import (
	"context"
	"errors"
)

type SummaryStatus string

const (
	SummaryStatusOK     SummaryStatus = "ok"
	SummaryStatusFailed SummaryStatus = "failed"
)

// SummaryResult carries a summary that is always present. When Status is
// failed the summary is zero-filled and Err holds the cause.
type SummaryResult struct {
	Summary FinancialSummary `json:"summary"`
	Status  SummaryStatus    `json:"status"`
	Err     error            `json:"-"`
	Error   string           `json:"error,omitempty"`
}

type Service interface {
	// FinancialSummary never fails. Lookup or aggregation failures produce a
	// zero summary with status failed.
	FinancialSummary(ctx context.Context, reference string) SummaryResult
	// CalculateFinancialSummary returns failures to the caller.
	CalculateFinancialSummary(ctx context.Context, reference string) (FinancialSummary, error)
	// BatchFinancialSummaries summarizes every procedure, keyed by reference,
	// from a single consistent read of the source tables.
	BatchFinancialSummaries(ctx context.Context) (map[string]FinancialSummary, error)
}

var ErrSummaryFailed = errors.New("summary_failed")
