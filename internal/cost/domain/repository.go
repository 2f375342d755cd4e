package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertImportExpense(ctx context.Context, db *gorm.DB, item *ImportExpense) error
	ListImportExpenses(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) ([]*ImportExpense, error)
	ListAllImportExpenses(ctx context.Context, db *gorm.DB) ([]*ImportExpense, error)
	DeleteImportExpense(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)

	InsertServiceInvoice(ctx context.Context, db *gorm.DB, item *ServiceInvoice) error
	ListServiceInvoices(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) ([]*ServiceInvoice, error)
	ListAllServiceInvoices(ctx context.Context, db *gorm.DB) ([]*ServiceInvoice, error)
	DeleteServiceInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)

	UpsertTax(ctx context.Context, db *gorm.DB, tax *Tax) error
	FindTax(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) (*Tax, error)
	ListAllTaxes(ctx context.Context, db *gorm.DB) ([]*Tax, error)
}
