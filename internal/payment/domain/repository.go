package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/customsledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListIncomingPaymentFilter struct {
	Status DistributionStatus
}

type Repository interface {
	InsertIncomingPayment(ctx context.Context, db *gorm.DB, payment *IncomingPayment) error
	FindIncomingPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*IncomingPayment, error)
	// LockIncomingPayment loads the row FOR UPDATE where the dialect supports it.
	LockIncomingPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*IncomingPayment, error)
	ListIncomingPayments(ctx context.Context, db *gorm.DB, filter ListIncomingPaymentFilter, page pagination.Pagination, cursor *pagination.Cursor) ([]*IncomingPayment, error)
	DeleteIncomingPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	// UpdateAllocation writes state only if the stored version still equals
	// version, and bumps it. It returns the number of rows written.
	UpdateAllocation(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, state AllocationState, now time.Time) (int64, error)
	ResetAllIncomingPayments(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)

	InsertDistribution(ctx context.Context, db *gorm.DB, distribution *PaymentDistribution) error
	FindDistribution(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentDistribution, error)
	ListDistributionsByPayment(ctx context.Context, db *gorm.DB, incomingPaymentID snowflake.ID) ([]*PaymentDistribution, error)
	ListDistributionsByProcedure(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) ([]*PaymentDistribution, error)
	ListAllDistributions(ctx context.Context, db *gorm.DB) ([]*PaymentDistribution, error)
	CountDistributionsByPayment(ctx context.Context, db *gorm.DB, incomingPaymentID snowflake.ID) (int64, error)
	DeleteDistribution(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	DeleteAllDistributions(ctx context.Context, db *gorm.DB) (int64, error)

	InsertDirectPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListDirectPaymentsByProcedure(ctx context.Context, db *gorm.DB, procedureID snowflake.ID) ([]*Payment, error)
	ListAllDirectPayments(ctx context.Context, db *gorm.DB) ([]*Payment, error)
}
