package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type CreateLineItemRequest struct {
	Style       *string          `json:"style,omitempty"`
	Description string           `json:"description"`
	HTSCode     *string          `json:"hts_code,omitempty"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TotalPrice  *decimal.Decimal `json:"total_price,omitempty"`
}

type AllocationResult struct {
	ProcedureReference  string             `json:"procedure_reference"`
	ItemCount           int                `json:"item_count"`
	Multiplier          decimal.Decimal    `json:"multiplier"`
	Policy              DistributionMethod `json:"policy"`
	TotalLineValueLocal decimal.Decimal    `json:"total_line_value_local"`
	TotalOverheadLocal  decimal.Decimal    `json:"total_overhead_local"`
	TotalCostUSD        decimal.Decimal    `json:"total_cost_usd"`
	FinalCostSum        decimal.Decimal    `json:"final_cost_sum"`
	UpdatedItems        []InvoiceLineItem  `json:"updated_items"`
}

type Service interface {
	// AllocateLineItemCosts spreads the procedure's import expenses, service
	// invoices, taxes and freight over its line items and stores the loaded
	// cost of every item.
	AllocateLineItemCosts(ctx context.Context, reference string) (AllocationResult, error)
	// CreateLineItems appends items after the existing ones, keeping the
	// request order.
	CreateLineItems(ctx context.Context, reference string, items []CreateLineItemRequest) ([]InvoiceLineItem, error)
	ListLineItems(ctx context.Context, reference string) ([]InvoiceLineItem, error)
	UpsertConfig(ctx context.Context, reference string, method string) (InvoiceLineItemsConfig, error)
	// GetConfig returns the stored config, or an unsaved one carrying the
	// configured default method.
	GetConfig(ctx context.Context, reference string) (InvoiceLineItemsConfig, error)
}

var (
	ErrMissingRate               = errors.New("missing_rate")
	ErrNoLineItems               = errors.New("no_line_items")
	ErrInvalidDistributionMethod = errors.New("invalid_distribution_method")
	ErrInvalidQuantity           = errors.New("invalid_quantity")
	ErrInvalidPrice              = errors.New("invalid_price")
	ErrInvalidDescription        = errors.New("invalid_description")
	ErrAllocationInProgress      = errors.New("allocation_in_progress")
)
