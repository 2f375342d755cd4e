package domain

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/customsledger/internal/money"
)

// AllocationState is the derived part of an IncomingPayment.
type AllocationState struct {
	AmountDistributed  decimal.Decimal
	RemainingBalance   decimal.Decimal
	DistributionStatus DistributionStatus
}

// RecomputeStatus derives the allocation state of a payment from its total
// and the amounts of its live distributions. It depends on nothing else, so
// calling it twice on the same input yields the same state.
//
// The remaining balance never goes below zero. An over-allocated payment is
// therefore reported as fully distributed.
func RecomputeStatus(total decimal.Decimal, distributed []decimal.Decimal, tolerance decimal.Decimal) AllocationState {
	amountDistributed := money.Sum(distributed...)
	remaining := money.FloorZero(total.Sub(amountDistributed))

	status := StatusPartiallyDistributed
	switch {
	case !amountDistributed.IsPositive():
		status = StatusPendingDistribution
	case money.IsSettled(remaining, tolerance):
		status = StatusFullyDistributed
	}

	return AllocationState{
		AmountDistributed:  amountDistributed,
		RemainingBalance:   remaining,
		DistributionStatus: status,
	}
}

// DistributionAmounts extracts the distributed amounts.
func DistributionAmounts(items []*PaymentDistribution) []decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(items))
	for _, item := range items {
		if item != nil {
			amounts = append(amounts, item.DistributedAmount)
		}
	}
	return amounts
}

// Apply copies state onto the payment.
func (p *IncomingPayment) Apply(state AllocationState) {
	p.AmountDistributed = state.AmountDistributed
	p.RemainingBalance = state.RemainingBalance
	p.DistributionStatus = state.DistributionStatus
}
