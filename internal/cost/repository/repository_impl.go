package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/customsledger/internal/cost/domain"
	"github.com/smallbiznis/customsledger/pkg/db/option"
	"github.com/smallbiznis/customsledger/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

var byCreation = option.WithOrder("created_at asc, id asc")

func (r *repo) InsertImportExpense(ctx context.Context, db *gorm.DB, item *domain.ImportExpense) error {
	return repository.ProvideStore[domain.ImportExpense](db).Create(ctx, item)
}

func (r *repo) ListImportExpenses(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) ([]*domain.ImportExpense, error) {
	return repository.ProvideStore[domain.ImportExpense](db).Find(ctx, &domain.ImportExpense{ProcedureID: procedureID}, byCreation)
}

func (r *repo) ListAllImportExpenses(ctx context.Context, db *gorm.DB) ([]*domain.ImportExpense, error) {
	return repository.ProvideStore[domain.ImportExpense](db).Find(ctx, &domain.ImportExpense{}, byCreation)
}

func (r *repo) DeleteImportExpense(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	return repository.ProvideStore[domain.ImportExpense](db).Delete(ctx, id)
}

func (r *repo) InsertServiceInvoice(ctx context.Context, db *gorm.DB, item *domain.ServiceInvoice) error {
	return repository.ProvideStore[domain.ServiceInvoice](db).Create(ctx, item)
}

func (r *repo) ListServiceInvoices(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) ([]*domain.ServiceInvoice, error) {
	return repository.ProvideStore[domain.ServiceInvoice](db).Find(ctx, &domain.ServiceInvoice{ProcedureID: procedureID}, byCreation)
}

func (r *repo) ListAllServiceInvoices(ctx context.Context, db *gorm.DB) ([]*domain.ServiceInvoice, error) {
	return repository.ProvideStore[domain.ServiceInvoice](db).Find(ctx, &domain.ServiceInvoice{}, byCreation)
}

func (r *repo) DeleteServiceInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	return repository.ProvideStore[domain.ServiceInvoice](db).Delete(ctx, id)
}

// UpsertTax inserts the tax row or overwrites the components of the existing
// row for the same procedure.
func (r *repo) UpsertTax(ctx context.Context, db *gorm.DB, tax *domain.Tax) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "procedure_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customs_tax",
			"additional_customs_tax",
			"kkdf",
			"vat",
			"stamp_tax",
			"updated_at",
		}),
	}).Create(tax).Error
}

func (r *repo) FindTax(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) (*domain.Tax, error) {
	return repository.ProvideStore[domain.Tax](db).FindOne(ctx, &domain.Tax{ProcedureID: procedureID})
}

func (r *repo) ListAllTaxes(ctx context.Context, db *gorm.DB) ([]*domain.Tax, error) {
	return repository.ProvideStore[domain.Tax](db).Find(ctx, &domain.Tax{})
}
