package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/customsledger/pkg/db/pagination"
)

type CreateIncomingPaymentRequest struct {
	PaymentID    string          `json:"payment_id"`
	PayerName    string          `json:"payer_name"`
	PayerInfo    *string         `json:"payer_info,omitempty"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Currency     string          `json:"currency"`
	DateReceived time.Time       `json:"date_received"`
}

type ListIncomingPaymentRequest struct {
	pagination.Pagination
	Status string `form:"status"`
}

type ListIncomingPaymentResponse struct {
	pagination.PageInfo
	IncomingPayments []IncomingPaymentView `json:"incoming_payments"`
}

type CreateDistributionRequest struct {
	IncomingPaymentID  snowflake.ID    `json:"incoming_payment_id"`
	ProcedureReference string          `json:"procedure_reference"`
	DistributedAmount  decimal.Decimal `json:"distributed_amount"`
	PaymentType        string          `json:"payment_type"`
	DistributionDate   *time.Time      `json:"distribution_date,omitempty"`
	Notes              *string         `json:"notes,omitempty"`
}

type CreateDistributionResponse struct {
	Distribution PaymentDistribution `json:"distribution"`
	Payment      IncomingPaymentView `json:"incoming_payment"`
}

type ListDistributionsRequest struct {
	IncomingPaymentID  snowflake.ID
	ProcedureReference string
}

type ResetResult struct {
	Count         int64 `json:"count"`
	PaymentsReset int64 `json:"payments_reset"`
}

type CreateDirectPaymentRequest struct {
	PaymentType string          `json:"payment_type"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Description *string         `json:"description,omitempty"`
}

type Service interface {
	CreateIncomingPayment(ctx context.Context, req CreateIncomingPaymentRequest) (IncomingPaymentView, error)
	GetIncomingPayment(ctx context.Context, id snowflake.ID) (IncomingPaymentView, error)
	ListIncomingPayments(ctx context.Context, req ListIncomingPaymentRequest) (ListIncomingPaymentResponse, error)
	// DeleteIncomingPayment refuses with a *HasDistributionsError while any
	// distribution references the payment.
	DeleteIncomingPayment(ctx context.Context, id snowflake.ID) error

	CreateDistribution(ctx context.Context, req CreateDistributionRequest) (CreateDistributionResponse, error)
	// DeleteDistribution reports false when id does not exist.
	DeleteDistribution(ctx context.Context, id snowflake.ID) (bool, error)
	// DeleteAllDistributions removes every distribution and resets every
	// incoming payment in one transaction.
	DeleteAllDistributions(ctx context.Context) (ResetResult, error)
	ListDistributions(ctx context.Context, req ListDistributionsRequest) ([]PaymentDistribution, error)
	// RecomputeStatus rederives and stores the allocation state of one payment.
	RecomputeStatus(ctx context.Context, incomingPaymentID snowflake.ID) (IncomingPaymentView, error)

	CreateDirectPayment(ctx context.Context, reference string, req CreateDirectPaymentRequest) (Payment, error)
	ListDirectPayments(ctx context.Context, reference string) ([]Payment, error)
}

var (
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidPaymentType     = errors.New("invalid_payment_type")
	ErrInvalidPaymentID       = errors.New("invalid_payment_id")
	ErrInvalidPayerName       = errors.New("invalid_payer_name")
	ErrInvalidCurrency        = errors.New("invalid_currency")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidPageToken       = errors.New("invalid_page_token")
	ErrPaymentNotFound        = errors.New("payment_not_found")
	ErrDuplicatePaymentID     = errors.New("duplicate_payment_id")
	ErrHasDistributions       = errors.New("has_distributions")
	ErrConcurrentModification = errors.New("concurrent_modification")
)

// HasDistributionsError blocks deletion of an incoming payment that still has
// distributions. It matches ErrHasDistributions with errors.Is.
type HasDistributionsError struct {
	Count int64
}

func (e *HasDistributionsError) Error() string {
	return fmt.Sprintf("%s: %d distribution(s) reference this payment", ErrHasDistributions, e.Count)
}

func (e *HasDistributionsError) Is(target error) bool {
	return target == ErrHasDistributions
}
