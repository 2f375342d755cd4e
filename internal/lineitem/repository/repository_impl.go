package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/customsledger/internal/lineitem/domain"
	"github.com/smallbiznis/customsledger/pkg/db/option"
	"github.com/smallbiznis/customsledger/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

var allocationOrder = option.WithOrder("CASE WHEN sort_order IS NULL THEN 1 ELSE 0 END, sort_order asc, created_at asc, id asc")

func (r *repo) ListByProcedure(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) ([]*domain.InvoiceLineItem, error) {
	if procedureID == 0 {
		return nil, nil
	}
	return repository.ProvideStore[domain.InvoiceLineItem](db).Find(ctx, &domain.InvoiceLineItem{ProcedureID: procedureID}, allocationOrder)
}

func (r *repo) MaxSortOrder(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) (int, bool, error) {
	var highest sql.NullInt64
	err := db.WithContext(ctx).
		Model(&domain.InvoiceLineItem{}).
		Where("procedure_id = ?", procedureID).
		Select("MAX(sort_order)").
		Scan(&highest).Error
	if err != nil {
		return 0, false, err
	}
	if !highest.Valid {
		return 0, false, nil
	}
	return int(highest.Int64), true, nil
}

func (r *repo) BatchInsert(ctx context.Context, db *gorm.DB, items []*domain.InvoiceLineItem) error {
	return repository.ProvideStore[domain.InvoiceLineItem](db).BatchCreate(ctx, items)
}

func (r *repo) UpdateCosts(ctx context.Context, db *gorm.DB, id snowflake.ID, finalCost, perItem, multiplier decimal.Decimal, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.InvoiceLineItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"final_cost":          finalCost,
			"final_cost_per_item": perItem,
			"cost_multiplier":     multiplier,
			"updated_at":          now,
		}).Error
}

func (r *repo) FindConfig(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) (*domain.InvoiceLineItemsConfig, error) {
	if procedureID == 0 {
		return nil, nil
	}
	return repository.ProvideStore[domain.InvoiceLineItemsConfig](db).FindOne(ctx, &domain.InvoiceLineItemsConfig{ProcedureID: procedureID})
}

func (r *repo) UpsertConfig(ctx context.Context, db *gorm.DB, cfg *domain.InvoiceLineItemsConfig) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "procedure_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"distribution_method", "updated_at"}),
	}).Create(cfg).Error
}
