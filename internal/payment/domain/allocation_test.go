package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/customsledger/internal/money"
	"github.com/stretchr/testify/assert"
)

func amounts(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.RequireFromString(v))
	}
	return out
}

func TestRecomputeStatus(t *testing.T) {
	total := decimal.NewFromInt(1000)
	cases := []struct {
		name        string
		distributed []decimal.Decimal
		status      DistributionStatus
		remaining   string
	}{
		{name: "none", distributed: nil, status: StatusPendingDistribution, remaining: "1000"},
		{name: "partial", distributed: amounts("400"), status: StatusPartiallyDistributed, remaining: "600"},
		{name: "full", distributed: amounts("400", "600"), status: StatusFullyDistributed, remaining: "0"},
		{name: "within tolerance", distributed: amounts("999.991"), status: StatusFullyDistributed, remaining: "0.009"},
		{name: "over", distributed: amounts("700", "700"), status: StatusFullyDistributed, remaining: "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := RecomputeStatus(total, tc.distributed, money.SettlementTolerance)
			assert.Equal(t, tc.status, state.DistributionStatus)
			assert.True(t, decimal.RequireFromString(tc.remaining).Equal(state.RemainingBalance), state.RemainingBalance.String())
			assert.False(t, state.RemainingBalance.IsNegative())

			again := RecomputeStatus(total, tc.distributed, money.SettlementTolerance)
			assert.Equal(t, state.DistributionStatus, again.DistributionStatus)
			assert.True(t, state.AmountDistributed.Equal(again.AmountDistributed))
		})
	}
}

func TestSumSourcesMixesDirectAndDistributed(t *testing.T) {
	sources := Sources(
		[]*Payment{{PaymentType: PaymentTypeAdvance, Amount: decimal.NewFromInt(400)}},
		[]*PaymentDistribution{{PaymentType: PaymentTypeBalance, DistributedAmount: decimal.NewFromInt(300)}},
	)
	totals := SumSources(sources)
	assert.True(t, decimal.NewFromInt(400).Equal(totals.Advance))
	assert.True(t, decimal.NewFromInt(300).Equal(totals.Balance))
	assert.True(t, decimal.NewFromInt(700).Equal(totals.Total()))
}
