package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/customsledger/internal/audit/domain"
	auditrepository "github.com/smallbiznis/customsledger/internal/audit/repository"
	auditservice "github.com/smallbiznis/customsledger/internal/audit/service"
	"github.com/smallbiznis/customsledger/internal/clock"
	"github.com/smallbiznis/customsledger/internal/payment/domain"
	"github.com/smallbiznis/customsledger/internal/payment/repository"
	procdomain "github.com/smallbiznis/customsledger/internal/procedure/domain"
	procrepository "github.com/smallbiznis/customsledger/internal/procedure/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	svc   domain.Service
	clock *clock.FakeClock
}

func setupPayment(t *testing.T) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&procdomain.Procedure{},
		&domain.IncomingPayment{},
		&domain.PaymentDistribution{},
		&domain.Payment{},
		&auditdomain.AuditLog{},
	))

	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, ref := range []string{"IMP-1", "IMP-2"} {
		require.NoError(t, db.Create(&procdomain.Procedure{
			ID: snowflake.ID(500 + i), Reference: ref, Currency: "USD", CreatedAt: now, UpdatedAt: now,
		}).Error)
	}

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(now)

	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepository.Provide(),
		Clock: clk,
	})

	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          repository.Provide(),
		ProcedureRepo: procrepository.Provide(),
		AuditSvc:      audit,
		Clock:         clk,
	})
	return fixture{db: db, svc: svc, clock: clk}
}

func createIncoming(t *testing.T, f fixture, paymentID string, total int64) domain.IncomingPaymentView {
	t.Helper()
	view, err := f.svc.CreateIncomingPayment(context.Background(), domain.CreateIncomingPaymentRequest{
		PaymentID:   paymentID,
		PayerName:   "Acme Textiles Ltd",
		TotalAmount: decimal.NewFromInt(total),
	})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return view
}

func distribute(t *testing.T, f fixture, paymentID snowflake.ID, reference string, amount string, paymentType string) domain.CreateDistributionResponse {
	t.Helper()
	resp, err := f.svc.CreateDistribution(context.Background(), domain.CreateDistributionRequest{
		IncomingPaymentID:  paymentID,
		ProcedureReference: reference,
		DistributedAmount:  decimal.RequireFromString(amount),
		PaymentType:        paymentType,
	})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return resp
}

func TestCreateIncomingPayment(t *testing.T) {
	f := setupPayment(t)
	ctx := context.Background()

	view := createIncoming(t, f, "PAY-001", 1000)
	assert.Equal(t, domain.StatusPendingDistribution, view.DistributionStatus)
	assert.True(t, decimal.NewFromInt(1000).Equal(view.RemainingBalance))
	assert.True(t, view.AmountDistributed.IsZero())
	assert.Equal(t, "USD", view.Currency)

	_, err := f.svc.CreateIncomingPayment(ctx, domain.CreateIncomingPaymentRequest{
		PaymentID:   "PAY-001",
		PayerName:   "Other",
		TotalAmount: decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, domain.ErrDuplicatePaymentID)

	_, err = f.svc.CreateIncomingPayment(ctx, domain.CreateIncomingPaymentRequest{
		PaymentID:   "PAY-002",
		PayerName:   "Other",
		TotalAmount: decimal.NewFromInt(-5),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.CreateIncomingPayment(ctx, domain.CreateIncomingPaymentRequest{
		PaymentID:   "  ",
		PayerName:   "Other",
		TotalAmount: decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentID)
}

func TestCreateIncomingPaymentAcceptsZeroTotal(t *testing.T) {
	f := setupPayment(t)

	view := createIncoming(t, f, "PAY-ZERO", 0)
	assert.Equal(t, domain.StatusPendingDistribution, view.DistributionStatus)
	assert.True(t, view.TotalAmount.IsZero())
	assert.True(t, view.RemainingBalance.IsZero())

	resp := distribute(t, f, view.ID, "IMP-1", "10", "advance")
	assert.True(t, resp.Payment.OverAllocated)
	assert.True(t, resp.Payment.RemainingBalance.IsZero())
	assert.Equal(t, domain.StatusFullyDistributed, resp.Payment.DistributionStatus)
}

func TestDistributionStatusTransitions(t *testing.T) {
	f := setupPayment(t)
	ctx := context.Background()
	payment := createIncoming(t, f, "PAY-100", 1000)

	first := distribute(t, f, payment.ID, "IMP-1", "400", "advance")
	assert.Equal(t, domain.StatusPartiallyDistributed, first.Payment.DistributionStatus)
	assert.True(t, decimal.NewFromInt(600).Equal(first.Payment.RemainingBalance))

	second := distribute(t, f, payment.ID, "IMP-2", "600", "balance")
	assert.Equal(t, domain.StatusFullyDistributed, second.Payment.DistributionStatus)
	assert.True(t, second.Payment.RemainingBalance.IsZero())
	assert.True(t, decimal.NewFromInt(1000).Equal(second.Payment.AmountDistributed))
	assert.False(t, second.Payment.OverAllocated)

	stored, err := f.svc.GetIncomingPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFullyDistributed, stored.DistributionStatus)
	assert.Equal(t, int64(2), stored.Version)
}

func TestDistributionWithinToleranceIsFullyDistributed(t *testing.T) {
	f := setupPayment(t)
	payment := createIncoming(t, f, "PAY-101", 1000)

	resp := distribute(t, f, payment.ID, "IMP-1", "999.995", "advance")
	assert.Equal(t, domain.StatusFullyDistributed, resp.Payment.DistributionStatus)
}

func TestDistributionReversibility(t *testing.T) {
	f := setupPayment(t)
	ctx := context.Background()
	payment := createIncoming(t, f, "PAY-200", 1000)

	resp := distribute(t, f, payment.ID, "IMP-1", "300", "advance")
	assert.Equal(t, domain.StatusPartiallyDistributed, resp.Payment.DistributionStatus)
	assert.True(t, decimal.NewFromInt(700).Equal(resp.Payment.RemainingBalance))

	deleted, err := f.svc.DeleteDistribution(ctx, resp.Distribution.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	stored, err := f.svc.GetIncomingPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingDistribution, stored.DistributionStatus)
	assert.True(t, decimal.NewFromInt(1000).Equal(stored.RemainingBalance))
	assert.True(t, stored.AmountDistributed.IsZero())

	deleted, err = f.svc.DeleteDistribution(ctx, resp.Distribution.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRecomputeStatusIsIdempotent(t *testing.T) {
	f := setupPayment(t)
	ctx := context.Background()
	payment := createIncoming(t, f, "PAY-300", 1000)
	distribute(t, f, payment.ID, "IMP-1", "250.5", "advance")

	first, err := f.svc.RecomputeStatus(ctx, payment.ID)
	require.NoError(t, err)
	second, err := f.svc.RecomputeStatus(ctx, payment.ID)
	require.NoError(t, err)

	assert.Equal(t, first.DistributionStatus, second.DistributionStatus)
	assert.True(t, first.AmountDistributed.Equal(second.AmountDistributed))
	assert.True(t, first.RemainingBalance.Equal(second.RemainingBalance))
	assert.True(t, decimal.RequireFromString("749.5").Equal(second.RemainingBalance))

	_, err = f.svc.RecomputeStatus(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestOverAllocationIsFlaggedAndFloored(t *testing.T) {
	f := setupPayment(t)
	payment := createIncoming(t, f, "PAY-400", 1000)

	distribute(t, f, payment.ID, "IMP-1", "800", "advance")
	resp := distribute(t, f, payment.ID, "IMP-2", "500", "balance")

	assert.True(t, resp.Payment.OverAllocated)
	assert.True(t, resp.Payment.RemainingBalance.IsZero())
	assert.Equal(t, domain.StatusFullyDistributed, resp.Payment.DistributionStatus)
	assert.True(t, decimal.NewFromInt(1300).Equal(resp.Payment.AmountDistributed))
}

func TestCreateDistributionValidation(t *testing.T) {
	f := setupPayment(t)
	ctx := context.Background()
	payment := createIncoming(t, f, "PAY-500", 1000)

	cases := []struct {
		name string
		req  domain.CreateDistributionRequest
		want error
	}{
		{
			name: "zero amount",
			req:  domain.CreateDistributionRequest{IncomingPaymentID: payment.ID, ProcedureReference: "IMP-1", DistributedAmount: decimal.Zero, PaymentType: "advance"},
			want: domain.ErrInvalidAmount,
		},
		{
			name: "unknown payment type",
			req:  domain.CreateDistributionRequest{IncomingPaymentID: payment.ID, ProcedureReference: "IMP-1", DistributedAmount: decimal.NewFromInt(1), PaymentType: "deposit"},
			want: domain.ErrInvalidPaymentType,
		},
		{
			name: "unknown procedure",
			req:  domain.CreateDistributionRequest{IncomingPaymentID: payment.ID, ProcedureReference: "IMP-404", DistributedAmount: decimal.NewFromInt(1), PaymentType: "advance"},
			want: procdomain.ErrProcedureNotFound,
		},
		{
			name: "unknown payment",
			req:  domain.CreateDistributionRequest{IncomingPaymentID: 777, ProcedureReference: "IMP-1", DistributedAmount: decimal.NewFromInt(1), PaymentType: "advance"},
			want: domain.ErrPaymentNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateDistribution(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&domain.PaymentDistribution{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteIncomingPaymentBlockedByDistributions(t *testing.T) {
	f := setupPayment(t)
	ctx := context.Background()
	payment := createIncoming(t, f, "PAY-600", 1000)
	first := distribute(t, f, payment.ID, "IMP-1", "100", "advance")
	distribute(t, f, payment.ID, "IMP-2", "200", "balance")

	err := f.svc.DeleteIncomingPayment(ctx, payment.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHasDistributions)
	var blocked *domain.HasDistributionsError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, int64(2), blocked.Count)

	_, err = f.svc.DeleteDistribution(ctx, first.Distribution.ID)
	require.NoError(t, err)
	err = f.svc.DeleteIncomingPayment(ctx, payment.ID)
	var stillBlocked *domain.HasDistributionsError
	require.True(t, errors.As(err, &stillBlocked))
	assert.Equal(t, int64(1), stillBlocked.Count)

	items, err := f.svc.ListDistributions(ctx, domain.ListDistributionsRequest{IncomingPaymentID: payment.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	_, err = f.svc.DeleteDistribution(ctx, items[0].ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteIncomingPayment(ctx, payment.ID))
	_, err = f.svc.GetIncomingPayment(ctx, payment.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestDeleteAllDistributionsResetsPayments(t *testing.T) {
	f := setupPayment(t)
	ctx := context.Background()
	a := createIncoming(t, f, "PAY-700", 1000)
	b := createIncoming(t, f, "PAY-701", 500)
	distribute(t, f, a.ID, "IMP-1", "1000", "advance")
	distribute(t, f, b.ID, "IMP-1", "200", "balance")
	distribute(t, f, b.ID, "IMP-2", "100", "balance")

	result, err := f.svc.DeleteAllDistributions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Count)
	assert.Equal(t, int64(2), result.PaymentsReset)

	for _, id := range []snowflake.ID{a.ID, b.ID} {
		stored, err := f.svc.GetIncomingPayment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPendingDistribution, stored.DistributionStatus)
		assert.True(t, stored.AmountDistributed.IsZero())
		assert.True(t, stored.TotalAmount.Equal(stored.RemainingBalance))
	}

	var audits []auditdomain.AuditLog
	require.NoError(t, f.db.Where("action = ?", "payment_distribution.reset").Find(&audits).Error)
	assert.Len(t, audits, 1)
}

func TestListDistributionsByProcedure(t *testing.T) {
	f := setupPayment(t)
	ctx := context.Background()
	payment := createIncoming(t, f, "PAY-800", 1000)
	distribute(t, f, payment.ID, "IMP-1", "100", "advance")
	distribute(t, f, payment.ID, "IMP-2", "200", "balance")
	distribute(t, f, payment.ID, "IMP-1", "300", "balance")

	items, err := f.svc.ListDistributions(ctx, domain.ListDistributionsRequest{ProcedureReference: "IMP-1"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, decimal.NewFromInt(100).Equal(items[0].DistributedAmount))
	assert.True(t, decimal.NewFromInt(300).Equal(items[1].DistributedAmount))

	all, err := f.svc.ListDistributions(ctx, domain.ListDistributionsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.svc.ListDistributions(ctx, domain.ListDistributionsRequest{ProcedureReference: "IMP-404"})
	assert.ErrorIs(t, err, procdomain.ErrProcedureNotFound)
}

func TestListIncomingPaymentsPaging(t *testing.T) {
	f := setupPayment(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		createIncoming(t, f, fmt.Sprintf("PAY-9%02d", i), 100)
	}

	page, err := f.svc.ListIncomingPayments(ctx, domain.ListIncomingPaymentRequest{})
	require.NoError(t, err)
	assert.Len(t, page.IncomingPayments, 3)
	assert.Equal(t, "PAY-902", page.IncomingPayments[0].PaymentID)

	_, err = f.svc.ListIncomingPayments(ctx, domain.ListIncomingPaymentRequest{Status: "settled"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	pending, err := f.svc.ListIncomingPayments(ctx, domain.ListIncomingPaymentRequest{Status: string(domain.StatusPendingDistribution)})
	require.NoError(t, err)
	assert.Len(t, pending.IncomingPayments, 3)
}

func TestCreateDirectPayment(t *testing.T) {
	f := setupPayment(t)
	ctx := context.Background()

	created, err := f.svc.CreateDirectPayment(ctx, "IMP-1", domain.CreateDirectPaymentRequest{
		PaymentType: "Balance",
		Amount:      decimal.NewFromInt(300),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentTypeBalance, created.PaymentType)

	items, err := f.svc.ListDirectPayments(ctx, "IMP-1")
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = f.svc.CreateDirectPayment(ctx, "IMP-1", domain.CreateDirectPaymentRequest{PaymentType: "advance", Amount: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

// racingRepository bumps the stored version right after the row is locked, as
// a concurrent allocator committing first would.
type racingRepository struct {
	domain.Repository
}

func (r racingRepository) LockIncomingPayment(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.IncomingPayment, error) {
	payment, err := r.Repository.LockIncomingPayment(ctx, tx, id)
	if err != nil || payment == nil {
		return payment, err
	}
	err = tx.Model(&domain.IncomingPayment{}).Where("id = ?", id).UpdateColumn("version", gorm.Expr("version + 1")).Error
	return payment, err
}

// serializationFailureRepository fails the guarded update the way postgres
// does under SERIALIZABLE contention.
type serializationFailureRepository struct {
	domain.Repository
}

func (serializationFailureRepository) UpdateAllocation(context.Context, *gorm.DB, snowflake.ID, int64, domain.AllocationState, time.Time) (int64, error) {
	return 0, &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
}

func serviceWithRepo(t *testing.T, f fixture, repo domain.Repository) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	audit := auditservice.NewService(auditservice.Params{
		DB:    f.db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepository.Provide(),
		Clock: f.clock,
	})
	return New(Params{
		DB:            f.db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          repo,
		ProcedureRepo: procrepository.Provide(),
		AuditSvc:      audit,
		Clock:         f.clock,
	})
}

func assertNothingCommitted(t *testing.T, f fixture, paymentID snowflake.ID) {
	t.Helper()
	var distributions int64
	require.NoError(t, f.db.Model(&domain.PaymentDistribution{}).Count(&distributions).Error)
	assert.Zero(t, distributions)

	var audits int64
	require.NoError(t, f.db.Model(&auditdomain.AuditLog{}).Where("action = ?", "payment_distribution.create").Count(&audits).Error)
	assert.Zero(t, audits)

	stored, err := f.svc.GetIncomingPayment(context.Background(), paymentID)
	require.NoError(t, err)
	assert.True(t, stored.AmountDistributed.IsZero())
	assert.Equal(t, domain.StatusPendingDistribution, stored.DistributionStatus)
	assert.Zero(t, stored.Version)
}

func TestCreateDistributionStaleVersionIsConcurrentModification(t *testing.T) {
	f := setupPayment(t)
	payment := createIncoming(t, f, "PAY-RACE", 1000)
	svc := serviceWithRepo(t, f, racingRepository{Repository: repository.Provide()})

	_, err := svc.CreateDistribution(context.Background(), domain.CreateDistributionRequest{
		IncomingPaymentID:  payment.ID,
		ProcedureReference: "IMP-1",
		DistributedAmount:  decimal.NewFromInt(200),
		PaymentType:        "advance",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConcurrentModification))

	assertNothingCommitted(t, f, payment.ID)
}

func TestCreateDistributionSerializationFailureIsConcurrentModification(t *testing.T) {
	f := setupPayment(t)
	payment := createIncoming(t, f, "PAY-SERIAL", 1000)
	svc := serviceWithRepo(t, f, serializationFailureRepository{Repository: repository.Provide()})

	_, err := svc.CreateDistribution(context.Background(), domain.CreateDistributionRequest{
		IncomingPaymentID:  payment.ID,
		ProcedureReference: "IMP-1",
		DistributedAmount:  decimal.NewFromInt(200),
		PaymentType:        "advance",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConcurrentModification))

	assertNothingCommitted(t, f, payment.ID)

	_, err = svc.RecomputeStatus(context.Background(), payment.ID)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}
