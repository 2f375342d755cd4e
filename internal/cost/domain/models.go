package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/customsledger/internal/money"
)

// DefaultLocalCurrency is assumed for cost rows recorded without a currency.
// Costs are always in the procedure's local currency.
const DefaultLocalCurrency = "TRY"

// ImportExpense is a cost paid to a third party while importing the goods,
// such as warehousing, port handling or inland transport.
type ImportExpense struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	ProcedureID    snowflake.ID    `gorm:"not null;index" json:"procedure_id"`
	Category       string          `gorm:"type:text;not null" json:"category"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"amount"`
	Currency       string          `gorm:"type:text;not null" json:"currency"`
	DocumentNumber *string         `gorm:"type:text" json:"document_number,omitempty"`
	IssuedAt       *time.Time      `json:"issued_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
}

func (ImportExpense) TableName() string { return "import_expenses" }

// ServiceInvoice is a fee billed by the brokerage itself.
type ServiceInvoice struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	ProcedureID    snowflake.ID    `gorm:"not null;index" json:"procedure_id"`
	Category       string          `gorm:"type:text;not null" json:"category"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"amount"`
	Currency       string          `gorm:"type:text;not null" json:"currency"`
	DocumentNumber *string         `gorm:"type:text" json:"document_number,omitempty"`
	IssuedAt       *time.Time      `json:"issued_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
}

func (ServiceInvoice) TableName() string { return "service_invoices" }

// Tax holds the customs duties assessed on a procedure. At most one row
// exists per procedure.
type Tax struct {
	ID                   snowflake.ID    `gorm:"primaryKey" json:"id"`
	ProcedureID          snowflake.ID    `gorm:"not null;uniqueIndex" json:"procedure_id"`
	CustomsTax           decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"customs_tax"`
	AdditionalCustomsTax decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"additional_customs_tax"`
	KKDF                 decimal.Decimal `gorm:"column:kkdf;type:numeric(20,6);not null;default:0" json:"kkdf"`
	VAT                  decimal.Decimal `gorm:"column:vat;type:numeric(20,6);not null;default:0" json:"vat"`
	StampTax             decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"stamp_tax"`
	CreatedAt            time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"not null" json:"updated_at"`
}

func (Tax) TableName() string { return "taxes" }

// Total is customs + additional customs + KKDF + VAT + stamp tax.
func (t Tax) Total() decimal.Decimal {
	return money.Sum(t.CustomsTax, t.AdditionalCustomsTax, t.KKDF, t.VAT, t.StampTax)
}

// SumExpenses adds the amounts of the given import expenses.
func SumExpenses(items []*ImportExpense) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item != nil {
			total = total.Add(item.Amount)
		}
	}
	return total
}

// SumServiceInvoices adds the amounts of the given service invoices.
func SumServiceInvoices(items []*ServiceInvoice) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item != nil {
			total = total.Add(item.Amount)
		}
	}
	return total
}

// TaxTotal is the tax total of a possibly missing tax row.
func TaxTotal(tax *Tax) decimal.Decimal {
	if tax == nil {
		return decimal.Zero
	}
	return tax.Total()
}
