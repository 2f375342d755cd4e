package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CreateCostRequest struct {
	Category       string          `json:"category"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	DocumentNumber *string         `json:"document_number,omitempty"`
	IssuedAt       *time.Time      `json:"issued_at,omitempty"`
}

type UpsertTaxRequest struct {
	CustomsTax           decimal.Decimal `json:"customs_tax"`
	AdditionalCustomsTax decimal.Decimal `json:"additional_customs_tax"`
	KKDF                 decimal.Decimal `json:"kkdf"`
	VAT                  decimal.Decimal `json:"vat"`
	StampTax             decimal.Decimal `json:"stamp_tax"`
}

type Service interface {
	CreateImportExpense(ctx context.Context, reference string, req CreateCostRequest) (ImportExpense, error)
	ListImportExpenses(ctx context.Context, reference string) ([]ImportExpense, error)
	// DeleteImportExpense reports false when id does not exist.
	DeleteImportExpense(ctx context.Context, id snowflake.ID) (bool, error)

	CreateServiceInvoice(ctx context.Context, reference string, req CreateCostRequest) (ServiceInvoice, error)
	ListServiceInvoices(ctx context.Context, reference string) ([]ServiceInvoice, error)
	DeleteServiceInvoice(ctx context.Context, id snowflake.ID) (bool, error)

	UpsertTax(ctx context.Context, reference string, req UpsertTaxRequest) (Tax, error)
	// GetTax returns a zero tax row when none has been recorded.
	GetTax(ctx context.Context, reference string) (Tax, error)
}

var (
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidCurrency = errors.New("invalid_currency")
)
