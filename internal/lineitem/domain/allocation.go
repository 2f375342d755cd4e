package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/customsledger/internal/money"
)

// AllocationInput is everything cost allocation reads. Items must already be
// in allocation order.
type AllocationInput struct {
	Items    []*InvoiceLineItem
	Rate     decimal.Decimal
	Overhead decimal.Decimal
	Method   DistributionMethod
}

// ItemAllocation is the computed cost of one line item. Local amounts are in
// the local currency, the rest in the invoice currency.
type ItemAllocation struct {
	ItemID           snowflake.ID
	ValueLocal       decimal.Decimal
	ShareLocal       decimal.Decimal
	FinalCostLocal   decimal.Decimal
	FinalCost        decimal.Decimal
	FinalCostPerItem decimal.Decimal
}

type Allocation struct {
	Method              DistributionMethod
	TotalLineValueLocal decimal.Decimal
	TotalOverheadLocal  decimal.Decimal
	// TotalCostLocal is line value plus the overhead actually spread. It
	// equals line value plus TotalOverheadLocal unless a proportional
	// allocation had no line value to weight by.
	TotalCostLocal decimal.Decimal
	TotalCost      decimal.Decimal
	Multiplier     decimal.Decimal
	Items          []ItemAllocation
	// FinalCostSum is the sum of the rounded per-item final costs.
	FinalCostSum decimal.Decimal
}

// Drift is how far the persisted per-item costs miss the total.
func (a Allocation) Drift() decimal.Decimal {
	return a.FinalCostSum.Sub(a.TotalCost).Abs()
}

// Allocate spreads overhead over the items. Shares are computed for every
// item before any result is produced, in item order. Stored values are
// rounded to money.StorageScale.
func Allocate(in AllocationInput) Allocation {
	values := make([]decimal.Decimal, len(in.Items))
	lineValue := decimal.Zero
	for i, item := range in.Items {
		values[i] = item.TotalPrice.Mul(in.Rate)
		lineValue = lineValue.Add(values[i])
	}

	count := decimal.NewFromInt(int64(len(in.Items)))
	shares := make([]decimal.Decimal, len(in.Items))
	allocated := decimal.Zero
	for i := range in.Items {
		switch in.Method {
		case MethodEqual:
			shares[i] = money.SafeDiv(in.Overhead, count)
		default:
			shares[i] = in.Overhead.Mul(money.SafeDiv(values[i], lineValue))
		}
		allocated = allocated.Add(shares[i])
	}

	totalCostLocal := lineValue.Add(allocated)
	out := Allocation{
		Method:              in.Method,
		TotalLineValueLocal: lineValue,
		TotalOverheadLocal:  in.Overhead,
		TotalCostLocal:      totalCostLocal,
		TotalCost:           money.SafeDiv(totalCostLocal, in.Rate),
		Multiplier:          money.SafeDiv(totalCostLocal, lineValue).Round(money.StorageScale),
		Items:               make([]ItemAllocation, 0, len(in.Items)),
		FinalCostSum:        decimal.Zero,
	}

	for i, item := range in.Items {
		finalLocal := values[i].Add(shares[i])
		finalUSD := money.SafeDiv(finalLocal, in.Rate)
		finalCost := finalUSD.Round(money.StorageScale)
		out.Items = append(out.Items, ItemAllocation{
			ItemID:           item.ID,
			ValueLocal:       values[i],
			ShareLocal:       shares[i],
			FinalCostLocal:   finalLocal,
			FinalCost:        finalCost,
			FinalCostPerItem: money.SafeDiv(finalUSD, item.Quantity).Round(money.StorageScale),
		})
		out.FinalCostSum = out.FinalCostSum.Add(finalCost)
	}
	return out
}
