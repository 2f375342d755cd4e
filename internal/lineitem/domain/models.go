package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type DistributionMethod string

const (
	MethodProportional DistributionMethod = "proportional"
	MethodEqual        DistributionMethod = "equal"
)

func ParseDistributionMethod(value string) (DistributionMethod, error) {
	switch method := DistributionMethod(strings.ToLower(strings.TrimSpace(value))); method {
	case MethodProportional, MethodEqual:
		return method, nil
	default:
		return "", ErrInvalidDistributionMethod
	}
}

// InvoiceLineItem is one merchandise line of a procedure's commercial
// invoice. Prices are in the invoice currency. FinalCost, FinalCostPerItem and
// CostMultiplier are written by cost allocation only.
type InvoiceLineItem struct {
	ID               snowflake.ID     `gorm:"primaryKey" json:"id"`
	ProcedureID      snowflake.ID     `gorm:"not null;index" json:"procedure_id"`
	Style            *string          `gorm:"type:text" json:"style,omitempty"`
	Description      string           `gorm:"type:text;not null" json:"description"`
	HTSCode          *string          `gorm:"column:hts_code;type:text" json:"hts_code,omitempty"`
	Quantity         decimal.Decimal  `gorm:"type:numeric(20,6);not null" json:"quantity"`
	UnitPrice        decimal.Decimal  `gorm:"type:numeric(20,6);not null" json:"unit_price"`
	TotalPrice       decimal.Decimal  `gorm:"type:numeric(20,6);not null" json:"total_price"`
	SortOrder        *int             `json:"sort_order,omitempty"`
	FinalCost        *decimal.Decimal `gorm:"type:numeric(20,6)" json:"final_cost,omitempty"`
	FinalCostPerItem *decimal.Decimal `gorm:"type:numeric(20,6)" json:"final_cost_per_item,omitempty"`
	CostMultiplier   *decimal.Decimal `gorm:"type:numeric(20,6)" json:"cost_multiplier,omitempty"`
	CreatedAt        time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null" json:"updated_at"`
}

func (InvoiceLineItem) TableName() string { return "invoice_line_items" }

// InvoiceLineItemsConfig selects how overhead is spread over a procedure's
// line items.
type InvoiceLineItemsConfig struct {
	ID                 snowflake.ID       `gorm:"primaryKey" json:"id"`
	ProcedureID        snowflake.ID       `gorm:"not null;uniqueIndex" json:"procedure_id"`
	DistributionMethod DistributionMethod `gorm:"type:text;not null" json:"distribution_method"`
	CreatedAt          time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"not null" json:"updated_at"`
}

func (InvoiceLineItemsConfig) TableName() string { return "invoice_line_items_configs" }
