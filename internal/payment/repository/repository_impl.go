package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/customsledger/internal/payment/domain"
	"github.com/smallbiznis/customsledger/pkg/db"
	"github.com/smallbiznis/customsledger/pkg/db/option"
	"github.com/smallbiznis/customsledger/pkg/db/pagination"
	"github.com/smallbiznis/customsledger/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

var byCreation = option.WithOrder("created_at asc, id asc")

func payments(db *gorm.DB) repository.Repository[domain.IncomingPayment] {
	return repository.ProvideStore[domain.IncomingPayment](db)
}

func distributions(db *gorm.DB) repository.Repository[domain.PaymentDistribution] {
	return repository.ProvideStore[domain.PaymentDistribution](db)
}

func (r *repo) InsertIncomingPayment(ctx context.Context, db *gorm.DB, payment *domain.IncomingPayment) error {
	return payments(db).Create(ctx, payment)
}

func (r *repo) FindIncomingPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.IncomingPayment, error) {
	if id == 0 {
		return nil, nil
	}
	return payments(db).FindOne(ctx, &domain.IncomingPayment{ID: id})
}

func (r *repo) LockIncomingPayment(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.IncomingPayment, error) {
	if id == 0 {
		return nil, nil
	}
	return payments(db.ForUpdate(tx)).FindOne(ctx, &domain.IncomingPayment{ID: id})
}

func (r *repo) ListIncomingPayments(ctx context.Context, tx *gorm.DB, filter domain.ListIncomingPaymentFilter, page pagination.Pagination, cursor *pagination.Cursor) ([]*domain.IncomingPayment, error) {
	opts := []option.QueryOption{}
	if filter.Status != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "distribution_status",
			Operator: option.EQ,
			Value:    string(filter.Status),
		}))
	}
	if cursor != nil {
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, err
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.CreatedBefore(createdAt, int64(id)))
	}
	opts = append(opts,
		option.WithOrder("created_at desc, id desc"),
		option.ApplyPagination(page),
	)
	return payments(tx).Find(ctx, &domain.IncomingPayment{}, opts...)
}

func (r *repo) DeleteIncomingPayment(ctx context.Context, tx *gorm.DB, id snowflake.ID) (int64, error) {
	return payments(tx).Delete(ctx, id)
}

func (r *repo) UpdateAllocation(ctx context.Context, tx *gorm.DB, id snowflake.ID, version int64, state domain.AllocationState, now time.Time) (int64, error) {
	res := tx.WithContext(ctx).
		Model(&domain.IncomingPayment{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]any{
			"amount_distributed":  state.AmountDistributed,
			"remaining_balance":   state.RemainingBalance,
			"distribution_status": string(state.DistributionStatus),
			"version":             gorm.Expr("version + 1"),
			"updated_at":          now,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) ResetAllIncomingPayments(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	res := tx.WithContext(ctx).
		Model(&domain.IncomingPayment{}).
		Where("1 = 1").
		Updates(map[string]any{
			"amount_distributed":  decimal.Zero,
			"remaining_balance":   gorm.Expr("total_amount"),
			"distribution_status": string(domain.StatusPendingDistribution),
			"version":             gorm.Expr("version + 1"),
			"updated_at":          now,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) InsertDistribution(ctx context.Context, tx *gorm.DB, distribution *domain.PaymentDistribution) error {
	return distributions(tx).Create(ctx, distribution)
}

func (r *repo) FindDistribution(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.PaymentDistribution, error) {
	if id == 0 {
		return nil, nil
	}
	return distributions(tx).FindOne(ctx, &domain.PaymentDistribution{ID: id})
}

func (r *repo) ListDistributionsByPayment(ctx context.Context, tx *gorm.DB, incomingPaymentID snowflake.ID) ([]*domain.PaymentDistribution, error) {
	if incomingPaymentID == 0 {
		return nil, nil
	}
	return distributions(tx).Find(ctx, &domain.PaymentDistribution{IncomingPaymentID: incomingPaymentID}, byCreation)
}

func (r *repo) ListDistributionsByProcedure(ctx context.Context, tx *gorm.DB, procedureID snowflake.ID) ([]*domain.PaymentDistribution, error) {
	if procedureID == 0 {
		return nil, nil
	}
	return distributions(tx).Find(ctx, &domain.PaymentDistribution{ProcedureID: procedureID}, byCreation)
}

func (r *repo) ListAllDistributions(ctx context.Context, tx *gorm.DB) ([]*domain.PaymentDistribution, error) {
	return distributions(tx).Find(ctx, &domain.PaymentDistribution{}, byCreation)
}

func (r *repo) CountDistributionsByPayment(ctx context.Context, tx *gorm.DB, incomingPaymentID snowflake.ID) (int64, error) {
	if incomingPaymentID == 0 {
		return 0, nil
	}
	return distributions(tx).Count(ctx, &domain.PaymentDistribution{IncomingPaymentID: incomingPaymentID})
}

func (r *repo) DeleteDistribution(ctx context.Context, tx *gorm.DB, id snowflake.ID) (int64, error) {
	return distributions(tx).Delete(ctx, id)
}

func (r *repo) DeleteAllDistributions(ctx context.Context, tx *gorm.DB) (int64, error) {
	res := tx.WithContext(ctx).Where("1 = 1").Delete(&domain.PaymentDistribution{})
	return res.RowsAffected, res.Error
}

func (r *repo) InsertDirectPayment(ctx context.Context, tx *gorm.DB, payment *domain.Payment) error {
	return repository.ProvideStore[domain.Payment](tx).Create(ctx, payment)
}

func (r *repo) ListDirectPaymentsByProcedure(ctx context.Context, tx *gorm.DB, procedureID snowflake.ID) ([]*domain.Payment, error) {
	if procedureID == 0 {
		return nil, nil
	}
	return repository.ProvideStore[domain.Payment](tx).Find(ctx, &domain.Payment{ProcedureID: procedureID}, byCreation)
}

func (r *repo) ListAllDirectPayments(ctx context.Context, tx *gorm.DB) ([]*domain.Payment, error) {
	return repository.ProvideStore[domain.Payment](tx).Find(ctx, &domain.Payment{}, byCreation)
}
