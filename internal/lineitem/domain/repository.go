package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	// ListByProcedure returns items by sort_order with nulls last, then by
	// created_at, then by id.
	ListByProcedure(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) ([]*InvoiceLineItem, error)
	// MaxSortOrder reports the highest sort_order of the procedure, or false
	// when no item has one.
	MaxSortOrder(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) (int, bool, error)
	BatchInsert(ctx context.Context, db *gorm.DB, items []*InvoiceLineItem) error
	UpdateCosts(ctx context.Context, db *gorm.DB, id snowflake.ID, finalCost, perItem, multiplier decimal.Decimal, now time.Time) error

	FindConfig(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) (*InvoiceLineItemsConfig, error)
	UpsertConfig(ctx context.Context, db *gorm.DB, cfg *InvoiceLineItemsConfig) error
}
