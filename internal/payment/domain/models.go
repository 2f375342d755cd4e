package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type DistributionStatus string

const (
	StatusPendingDistribution  DistributionStatus = "pending_distribution"
	StatusPartiallyDistributed DistributionStatus = "partially_distributed"
	StatusFullyDistributed     DistributionStatus = "fully_distributed"
)

func ParseDistributionStatus(value string) (DistributionStatus, error) {
	switch status := DistributionStatus(strings.TrimSpace(value)); status {
	case StatusPendingDistribution, StatusPartiallyDistributed, StatusFullyDistributed:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

type PaymentType string

const (
	PaymentTypeAdvance PaymentType = "advance"
	PaymentTypeBalance PaymentType = "balance"
)

func ParsePaymentType(value string) (PaymentType, error) {
	switch paymentType := PaymentType(strings.ToLower(strings.TrimSpace(value))); paymentType {
	case PaymentTypeAdvance, PaymentTypeBalance:
		return paymentType, nil
	default:
		return "", ErrInvalidPaymentType
	}
}

// IncomingPayment is money received from an external payer before it is split
// across procedures. AmountDistributed, RemainingBalance and
// DistributionStatus are derived from the live distributions and are only
// written by the allocator.
type IncomingPayment struct {
	ID                 snowflake.ID       `gorm:"primaryKey" json:"id"`
	PaymentID          string             `gorm:"type:text;not null;uniqueIndex" json:"payment_id"`
	PayerName          string             `gorm:"type:text;not null" json:"payer_name"`
	PayerInfo          *string            `gorm:"type:text" json:"payer_info,omitempty"`
	TotalAmount        decimal.Decimal    `gorm:"type:numeric(20,6);not null" json:"total_amount"`
	Currency           string             `gorm:"type:text;not null" json:"currency"`
	DateReceived       time.Time          `gorm:"not null" json:"date_received"`
	AmountDistributed  decimal.Decimal    `gorm:"type:numeric(20,6);not null;default:0" json:"amount_distributed"`
	RemainingBalance   decimal.Decimal    `gorm:"type:numeric(20,6);not null;default:0" json:"remaining_balance"`
	DistributionStatus DistributionStatus `gorm:"type:text;not null;index" json:"distribution_status"`
	Version            int64              `gorm:"not null;default:0" json:"version"`
	CreatedAt          time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"not null" json:"updated_at"`
}

func (IncomingPayment) TableName() string { return "incoming_payments" }

// OverAllocated reports whether more has been distributed than was received.
func (p IncomingPayment) OverAllocated() bool {
	return p.AmountDistributed.GreaterThan(p.TotalAmount)
}

// IncomingPaymentView is the API representation, carrying derived flags.
type IncomingPaymentView struct {
	IncomingPayment
	OverAllocated bool `json:"over_allocated"`
}

func NewIncomingPaymentView(p IncomingPayment) IncomingPaymentView {
	return IncomingPaymentView{IncomingPayment: p, OverAllocated: p.OverAllocated()}
}

// PaymentDistribution assigns part of an incoming payment to one procedure
// under one payment category.
type PaymentDistribution struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	IncomingPaymentID snowflake.ID    `gorm:"not null;index" json:"incoming_payment_id"`
	ProcedureID       snowflake.ID    `gorm:"not null;index" json:"procedure_id"`
	DistributedAmount decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"distributed_amount"`
	PaymentType       PaymentType     `gorm:"type:text;not null" json:"payment_type"`
	DistributionDate  time.Time       `gorm:"not null" json:"distribution_date"`
	Notes             *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
}

func (PaymentDistribution) TableName() string { return "payment_distributions" }

// Payment is a payment recorded directly against a procedure, predating
// incoming payment distribution. Both kinds count toward the procedure's
// payments.
type Payment struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	ProcedureID snowflake.ID    `gorm:"not null;index" json:"procedure_id"`
	PaymentType PaymentType     `gorm:"type:text;not null" json:"payment_type"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"amount"`
	PaymentDate time.Time       `gorm:"not null" json:"payment_date"`
	Description *string         `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }
