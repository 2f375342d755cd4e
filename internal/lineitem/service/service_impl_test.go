package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/customsledger/internal/audit/domain"
	auditrepository "github.com/smallbiznis/customsledger/internal/audit/repository"
	auditservice "github.com/smallbiznis/customsledger/internal/audit/service"
	"github.com/smallbiznis/customsledger/internal/clock"
	"github.com/smallbiznis/customsledger/internal/config"
	costdomain "github.com/smallbiznis/customsledger/internal/cost/domain"
	costrepository "github.com/smallbiznis/customsledger/internal/cost/repository"
	"github.com/smallbiznis/customsledger/internal/lineitem/domain"
	"github.com/smallbiznis/customsledger/internal/lineitem/repository"
	"github.com/smallbiznis/customsledger/internal/lock"
	procdomain "github.com/smallbiznis/customsledger/internal/procedure/domain"
	procrepository "github.com/smallbiznis/customsledger/internal/procedure/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var epoch = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	svc    domain.Service
	node   *snowflake.Node
	clock  *clock.FakeClock
	locker *lock.MemoryLocker
}

func setupLineItems(t *testing.T, defaults config.AllocationConfig) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&procdomain.Procedure{},
		&costdomain.ImportExpense{},
		&costdomain.ServiceInvoice{},
		&costdomain.Tax{},
		&domain.InvoiceLineItem{},
		&domain.InvoiceLineItemsConfig{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	clk := clock.NewFakeClock(epoch)
	locker := lock.NewMemoryLocker()

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
		CostRepo:      costrepository.Provide(),
		AuditSvc:      audit,
		Locker:        locker,
		Allocation:    config.NewStaticAllocationConfig(defaults),
		Clock:         clk,
	})
	return fixture{db: db, svc: svc, node: node, clock: clk, locker: locker}
}

func (f fixture) procedure(t *testing.T, reference string, rate *decimal.Decimal, freight *decimal.Decimal) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.db.Create(&procdomain.Procedure{
		ID: id, Reference: reference, Currency: "USD", USDToLocalRate: rate, FreightAmount: freight, CreatedAt: epoch, UpdatedAt: epoch,
	}).Error)
	return id
}

// overhead seeds 2400 of local cost, freight excluded.
func (f fixture) overhead(t *testing.T, procedureID snowflake.ID) {
	t.Helper()
	require.NoError(t, f.db.Create(&costdomain.ImportExpense{ID: f.node.Generate(), ProcedureID: procedureID, Category: "port", Amount: decimal.NewFromInt(1000), Currency: "TRY", CreatedAt: epoch}).Error)
	require.NoError(t, f.db.Create(&costdomain.ServiceInvoice{ID: f.node.Generate(), ProcedureID: procedureID, Category: "brokerage", Amount: decimal.NewFromInt(500), Currency: "TRY", CreatedAt: epoch}).Error)
	require.NoError(t, f.db.Create(&costdomain.Tax{
		ID: f.node.Generate(), ProcedureID: procedureID,
		CustomsTax: decimal.NewFromInt(300), AdditionalCustomsTax: decimal.Zero, KKDF: decimal.Zero, VAT: decimal.Zero, StampTax: decimal.Zero,
		CreatedAt: epoch, UpdatedAt: epoch,
	}).Error)
}

func decimalPtr(value int64) *decimal.Decimal {
	d := decimal.NewFromInt(value)
	return &d
}

func lineItems() []domain.CreateLineItemRequest {
	return []domain.CreateLineItemRequest{
		{Description: "cotton shirts", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(10)},
		{Description: "denim jackets", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(100)},
	}
}

func TestAllocateLineItemCostsProportional(t *testing.T) {
	f := setupLineItems(t, config.DefaultAllocationConfig())
	ctx := context.Background()
	id := f.procedure(t, "IMP-1", decimalPtr(30), decimalPtr(600))
	f.overhead(t, id)
	_, err := f.svc.CreateLineItems(ctx, "IMP-1", lineItems())
	require.NoError(t, err)

	result, err := f.svc.AllocateLineItemCosts(ctx, "IMP-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ItemCount)
	assert.Equal(t, domain.MethodProportional, result.Policy)
	assert.True(t, decimal.RequireFromString("1.2").Equal(result.Multiplier))
	assert.True(t, decimal.NewFromInt(2400).Equal(result.TotalOverheadLocal))
	assert.True(t, decimal.NewFromInt(480).Equal(result.TotalCostUSD))
	assert.True(t, result.FinalCostSum.Equal(result.TotalCostUSD))

	require.Len(t, result.UpdatedItems, 2)
	assert.True(t, decimal.NewFromInt(120).Equal(*result.UpdatedItems[0].FinalCost))
	assert.True(t, decimal.NewFromInt(12).Equal(*result.UpdatedItems[0].FinalCostPerItem))
	assert.True(t, decimal.NewFromInt(360).Equal(*result.UpdatedItems[1].FinalCost))

	stored, err := f.svc.ListLineItems(ctx, "IMP-1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.NotNil(t, stored[1].FinalCost)
	assert.True(t, decimal.NewFromInt(360).Equal(*stored[1].FinalCost))
	require.NotNil(t, stored[1].CostMultiplier)
	assert.True(t, decimal.RequireFromString("1.2").Equal(*stored[1].CostMultiplier))
}

func TestAllocateLineItemCostsUsesStoredPolicy(t *testing.T) {
	f := setupLineItems(t, config.DefaultAllocationConfig())
	ctx := context.Background()
	id := f.procedure(t, "IMP-EQ", decimalPtr(30), decimalPtr(600))
	f.overhead(t, id)
	_, err := f.svc.CreateLineItems(ctx, "IMP-EQ", lineItems())
	require.NoError(t, err)

	cfg, err := f.svc.UpsertConfig(ctx, "IMP-EQ", "equal")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodEqual, cfg.DistributionMethod)

	result, err := f.svc.AllocateLineItemCosts(ctx, "IMP-EQ")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodEqual, result.Policy)
	assert.True(t, decimal.NewFromInt(140).Equal(*result.UpdatedItems[0].FinalCost))
	assert.True(t, decimal.NewFromInt(340).Equal(*result.UpdatedItems[1].FinalCost))

	_, err = f.svc.UpsertConfig(ctx, "IMP-EQ", "weighted")
	assert.ErrorIs(t, err, domain.ErrInvalidDistributionMethod)
}

func TestAllocateLineItemCostsDefaultPolicyFromConfig(t *testing.T) {
	defaults := config.DefaultAllocationConfig()
	defaults.DefaultMethod = config.AllocationMethodEqual
	f := setupLineItems(t, defaults)
	ctx := context.Background()
	f.procedure(t, "IMP-DEF", decimalPtr(30), nil)

	cfg, err := f.svc.GetConfig(ctx, "IMP-DEF")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodEqual, cfg.DistributionMethod)
	assert.Zero(t, cfg.ID)
}

func TestAllocateLineItemCostsWithoutLineValue(t *testing.T) {
	f := setupLineItems(t, config.DefaultAllocationConfig())
	ctx := context.Background()
	id := f.procedure(t, "IMP-ZERO", decimalPtr(30), nil)
	f.overhead(t, id)
	_, err := f.svc.CreateLineItems(ctx, "IMP-ZERO", []domain.CreateLineItemRequest{
		{Description: "samples", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.Zero},
		{Description: "swatches", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.Zero},
	})
	require.NoError(t, err)

	result, err := f.svc.AllocateLineItemCosts(ctx, "IMP-ZERO")
	require.NoError(t, err)
	assert.True(t, result.Multiplier.IsZero())
	for _, item := range result.UpdatedItems {
		assert.True(t, item.FinalCost.IsZero())
	}
}

func TestAllocateLineItemCostsPreconditions(t *testing.T) {
	f := setupLineItems(t, config.DefaultAllocationConfig())
	ctx := context.Background()
	f.procedure(t, "IMP-NORATE", nil, nil)
	f.procedure(t, "IMP-EMPTY", decimalPtr(30), nil)

	_, err := f.svc.AllocateLineItemCosts(ctx, "IMP-NORATE")
	assert.ErrorIs(t, err, domain.ErrMissingRate)

	_, err = f.svc.AllocateLineItemCosts(ctx, "IMP-EMPTY")
	assert.ErrorIs(t, err, domain.ErrNoLineItems)

	_, err = f.svc.AllocateLineItemCosts(ctx, "IMP-404")
	assert.ErrorIs(t, err, procdomain.ErrProcedureNotFound)
}

func TestAllocateLineItemCostsRejectsConcurrentRun(t *testing.T) {
	f := setupLineItems(t, config.DefaultAllocationConfig())
	ctx := context.Background()
	f.procedure(t, "IMP-BUSY", decimalPtr(30), nil)
	_, err := f.svc.CreateLineItems(ctx, "IMP-BUSY", lineItems())
	require.NoError(t, err)

	release, err := f.locker.Acquire(ctx, lockKeyPrefix+"IMP-BUSY", time.Minute)
	require.NoError(t, err)

	_, err = f.svc.AllocateLineItemCosts(ctx, "IMP-BUSY")
	assert.ErrorIs(t, err, domain.ErrAllocationInProgress)

	require.NoError(t, release(ctx))
	_, err = f.svc.AllocateLineItemCosts(ctx, "IMP-BUSY")
	assert.NoError(t, err)
}

func TestCreateLineItemsAssignsSortOrder(t *testing.T) {
	f := setupLineItems(t, config.DefaultAllocationConfig())
	ctx := context.Background()
	id := f.procedure(t, "IMP-SORT", decimalPtr(30), nil)

	first, err := f.svc.CreateLineItems(ctx, "IMP-SORT", lineItems())
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 0, *first[0].SortOrder)
	assert.Equal(t, 1, *first[1].SortOrder)

	f.clock.Advance(time.Minute)
	second, err := f.svc.CreateLineItems(ctx, "IMP-SORT", []domain.CreateLineItemRequest{
		{Description: "scarves", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(5)},
		{Description: "belts", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(5)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, *second[0].SortOrder)
	assert.Equal(t, 3, *second[1].SortOrder)

	// Items without a sort order go last.
	require.NoError(t, f.db.Create(&domain.InvoiceLineItem{
		ID: f.node.Generate(), ProcedureID: id, Description: "unsorted",
		Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1), TotalPrice: decimal.NewFromInt(1),
		CreatedAt: epoch, UpdatedAt: epoch,
	}).Error)

	items, err := f.svc.ListLineItems(ctx, "IMP-SORT")
	require.NoError(t, err)
	require.Len(t, items, 5)
	descriptions := make([]string, 0, len(items))
	for _, item := range items {
		descriptions = append(descriptions, item.Description)
	}
	assert.Equal(t, []string{"cotton shirts", "denim jackets", "scarves", "belts", "unsorted"}, descriptions)

	_, err = f.svc.CreateLineItems(ctx, "IMP-SORT", []domain.CreateLineItemRequest{
		{Description: "bad", Quantity: decimal.NewFromInt(-1), UnitPrice: decimal.NewFromInt(1)},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestAllocationAuditFollowsItemOrder(t *testing.T) {
	f := setupLineItems(t, config.DefaultAllocationConfig())
	ctx := context.Background()
	id := f.procedure(t, "IMP-AUDIT", decimalPtr(30), nil)
	f.overhead(t, id)
	_, err := f.svc.CreateLineItems(ctx, "IMP-AUDIT", lineItems())
	require.NoError(t, err)

	result, err := f.svc.AllocateLineItemCosts(ctx, "IMP-AUDIT")
	require.NoError(t, err)

	var entries []auditdomain.AuditLog
	require.NoError(t, f.db.Where("action = ?", "invoice_line_item.allocate").Order("id asc").Find(&entries).Error)
	require.Len(t, entries, len(result.UpdatedItems))
	for i, entry := range entries {
		require.NotNil(t, entry.TargetID)
		assert.Equal(t, result.UpdatedItems[i].ID.String(), *entry.TargetID)
	}
}

// writeOrderRepository records the order in which allocated costs are written.
type writeOrderRepository struct {
	domain.Repository
	written []snowflake.ID
}

func (r *writeOrderRepository) UpdateCosts(ctx context.Context, db *gorm.DB, id snowflake.ID, finalCost, perItem, multiplier decimal.Decimal, now time.Time) error {
	r.written = append(r.written, id)
	return r.Repository.UpdateCosts(ctx, db, id, finalCost, perItem, multiplier, now)
}

func TestAllocationOrderBreaksTiesByCreatedAtThenID(t *testing.T) {
	f := setupLineItems(t, config.DefaultAllocationConfig())
	ctx := context.Background()
	id := f.procedure(t, "IMP-TIES", decimalPtr(30), nil)
	f.overhead(t, id)

	sortOrder := func(v int) *int { return &v }
	seed := []struct {
		id          snowflake.ID
		description string
		sortOrder   *int
		createdAt   time.Time
	}{
		{900, "null-late", nil, epoch.Add(2 * time.Minute)},
		{950, "null-early-high-id", nil, epoch.Add(time.Minute)},
		{800, "one-late", sortOrder(1), epoch.Add(3 * time.Minute)},
		{910, "null-early-low-id", nil, epoch.Add(time.Minute)},
		{850, "one-early-high-id", sortOrder(1), epoch.Add(time.Minute)},
		{990, "zero", sortOrder(0), epoch.Add(5 * time.Minute)},
		{820, "one-early-low-id", sortOrder(1), epoch.Add(time.Minute)},
	}
	for i, item := range seed {
		price := decimal.NewFromInt(int64(10 * (i + 1)))
		require.NoError(t, f.db.Create(&domain.InvoiceLineItem{
			ID: item.id, ProcedureID: id, Description: item.description, SortOrder: item.sortOrder,
			Quantity: decimal.NewFromInt(1), UnitPrice: price, TotalPrice: price,
			CreatedAt: item.createdAt, UpdatedAt: item.createdAt,
		}).Error)
	}

	want := []snowflake.ID{990, 820, 850, 800, 910, 950, 900}

	items, err := f.svc.ListLineItems(ctx, "IMP-TIES")
	require.NoError(t, err)
	listed := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		listed = append(listed, item.ID)
	}
	assert.Equal(t, want, listed)

	recorder := &writeOrderRepository{Repository: repository.Provide()}
	svc := New(Params{
		DB:            f.db,
		Log:           zap.NewNop(),
		GenID:         f.node,
		Repo:          recorder,
		ProcedureRepo: procrepository.Provide(),
		CostRepo:      costrepository.Provide(),
		AuditSvc: auditservice.NewService(auditservice.Params{
			DB:    f.db,
			Log:   zap.NewNop(),
			GenID: f.node,
			Repo:  auditrepository.Provide(),
			Clock: f.clock,
		}),
		Locker:     f.locker,
		Allocation: config.NewStaticAllocationConfig(config.DefaultAllocationConfig()),
		Clock:      f.clock,
	})

	result, err := svc.AllocateLineItemCosts(ctx, "IMP-TIES")
	require.NoError(t, err)
	assert.Equal(t, want, recorder.written)

	allocated := make([]snowflake.ID, 0, len(result.UpdatedItems))
	for _, item := range result.UpdatedItems {
		allocated = append(allocated, item.ID)
	}
	assert.Equal(t, want, allocated)

	var entries []auditdomain.AuditLog
	require.NoError(t, f.db.Where("action = ?", "invoice_line_item.allocate").Order("id asc").Find(&entries).Error)
	require.Len(t, entries, len(want))
	for i, entry := range entries {
		require.NotNil(t, entry.TargetID)
		assert.Equal(t, want[i].String(), *entry.TargetID)
	}
}
