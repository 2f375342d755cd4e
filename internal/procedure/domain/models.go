package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Procedure is one customs import file. Reference is the business key clerks
// use; it never changes after creation. Child rows point at ID.
type Procedure struct {
	ID             snowflake.ID     `gorm:"primaryKey" json:"id"`
	Reference      string           `gorm:"type:text;not null;uniqueIndex" json:"reference"`
	Amount         decimal.Decimal  `gorm:"type:numeric(20,6);not null;default:0" json:"amount"`
	Currency       string           `gorm:"type:text;not null" json:"currency"`
	USDToLocalRate *decimal.Decimal `gorm:"column:usd_to_local_rate;type:numeric(20,6)" json:"usd_to_local_rate,omitempty"`
	FreightAmount  *decimal.Decimal `gorm:"type:numeric(20,6)" json:"freight_amount,omitempty"`
	CreatedAt      time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"not null" json:"updated_at"`
}

func (Procedure) TableName() string { return "procedures" }

// HasRate reports whether a usable exchange rate is set.
func (p Procedure) HasRate() bool {
	return p.USDToLocalRate != nil && p.USDToLocalRate.IsPositive()
}
