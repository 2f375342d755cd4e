package domain

import "github.com/shopspring/decimal"

// PaymentSource is money counted toward a procedure's payments. A procedure
// is paid either by direct Payment rows or by distributions of incoming
// payments; both reduce to a category and an amount.
type PaymentSource interface {
	Contribution() (PaymentType, decimal.Decimal)
	isPaymentSource()
}

type DirectSource struct {
	Payment Payment
}

func (s DirectSource) Contribution() (PaymentType, decimal.Decimal) {
	return s.Payment.PaymentType, s.Payment.Amount
}

func (DirectSource) isPaymentSource() {}

type DistributedSource struct {
	Distribution PaymentDistribution
}

func (s DistributedSource) Contribution() (PaymentType, decimal.Decimal) {
	return s.Distribution.PaymentType, s.Distribution.DistributedAmount
}

func (DistributedSource) isPaymentSource() {}

// Sources wraps direct payments and distributions as payment sources.
func Sources(direct []*Payment, distributed []*PaymentDistribution) []PaymentSource {
	sources := make([]PaymentSource, 0, len(direct)+len(distributed))
	for _, payment := range direct {
		if payment != nil {
			sources = append(sources, DirectSource{Payment: *payment})
		}
	}
	for _, distribution := range distributed {
		if distribution != nil {
			sources = append(sources, DistributedSource{Distribution: *distribution})
		}
	}
	return sources
}

// PaymentTotals is the advance/balance split of a set of payment sources.
type PaymentTotals struct {
	Advance decimal.Decimal
	Balance decimal.Decimal
}

func (t PaymentTotals) Total() decimal.Decimal {
	return t.Advance.Add(t.Balance)
}

// SumSources splits the sources by payment type. Sources with an unknown type
// are skipped.
func SumSources(sources []PaymentSource) PaymentTotals {
	totals := PaymentTotals{Advance: decimal.Zero, Balance: decimal.Zero}
	for _, source := range sources {
		paymentType, amount := source.Contribution()
		switch paymentType {
		case PaymentTypeAdvance:
			totals.Advance = totals.Advance.Add(amount)
		case PaymentTypeBalance:
			totals.Balance = totals.Balance.Add(amount)
		}
	}
	return totals
}
