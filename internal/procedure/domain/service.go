package domain

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/customsledger/pkg/db/pagination"
)

type CreateProcedureRequest struct {
	Reference      string           `json:"reference"`
	Amount         decimal.Decimal  `json:"amount"`
	Currency       string           `json:"currency"`
	USDToLocalRate *decimal.Decimal `json:"usd_to_local_rate,omitempty"`
	FreightAmount  *decimal.Decimal `json:"freight_amount,omitempty"`
}

type ListProcedureRequest struct {
	pagination.Pagination
}

type ListProcedureResponse struct {
	pagination.PageInfo
	Procedures []Procedure `json:"procedures"`
}

type Service interface {
	Create(ctx context.Context, req CreateProcedureRequest) (Procedure, error)
	Get(ctx context.Context, reference string) (Procedure, error)
	List(ctx context.Context, req ListProcedureRequest) (ListProcedureResponse, error)
	SetExchangeRate(ctx context.Context, reference string, rate decimal.Decimal) (Procedure, error)
	// SetFreight sets the local-currency freight amount; nil clears it.
	SetFreight(ctx context.Context, reference string, amount *decimal.Decimal) (Procedure, error)
}

const maxReferenceLength = 64

var (
	ErrInvalidReference   = errors.New("invalid_reference")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidRate        = errors.New("invalid_rate")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
	ErrProcedureNotFound  = errors.New("procedure_not_found")
	ErrDuplicateReference = errors.New("duplicate_reference")
)

// NormalizeReference trims a reference and checks it can be a business key.
func NormalizeReference(reference string) (string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" || len(reference) > maxReferenceLength {
		return "", ErrInvalidReference
	}
	if strings.IndexFunc(reference, unicode.IsControl) >= 0 {
		return "", ErrInvalidReference
	}
	return reference, nil
}
