package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/customsledger/internal/audit/domain"
	"github.com/smallbiznis/customsledger/internal/clock"
	"github.com/smallbiznis/customsledger/internal/config"
	costdomain "github.com/smallbiznis/customsledger/internal/cost/domain"
	"github.com/smallbiznis/customsledger/internal/lineitem/domain"
	"github.com/smallbiznis/customsledger/internal/lock"
	"github.com/smallbiznis/customsledger/internal/money"
	obslogger "github.com/smallbiznis/customsledger/internal/observability/logger"
	"github.com/smallbiznis/customsledger/internal/observability/metrics"
	procdomain "github.com/smallbiznis/customsledger/internal/procedure/domain"
	"github.com/smallbiznis/customsledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockKeyPrefix = "lineitem.allocate:"

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	ProcedureRepo procdomain.Repository
	CostRepo      costdomain.Repository
	AuditSvc      auditdomain.Service            `optional:"true"`
	Metrics       *metrics.Metrics               `optional:"true"`
	Locker        lock.Locker                    `optional:"true"`
	Allocation    *config.AllocationConfigHolder `optional:"true"`
	Clock         clock.Clock                    `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	procedureRepo procdomain.Repository
	costRepo      costdomain.Repository
	auditSvc      auditdomain.Service
	metrics       *metrics.Metrics
	locker        lock.Locker
	allocation    *config.AllocationConfigHolder
	clock         clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	locker := p.Locker
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("lineitem.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		procedureRepo: p.ProcedureRepo,
		costRepo:      p.CostRepo,
		auditSvc:      p.AuditSvc,
		metrics:       p.Metrics,
		locker:        locker,
		allocation:    p.Allocation,
		clock:         clk,
	}
}

func (s *Service) AllocateLineItemCosts(ctx context.Context, reference string) (domain.AllocationResult, error) {
	reference, err := procdomain.NormalizeReference(reference)
	if err != nil {
		return domain.AllocationResult{}, err
	}

	settings := s.allocation.Get()
	release, err := s.locker.Acquire(ctx, lockKeyPrefix+reference, time.Duration(settings.LockTTLSeconds)*time.Second)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return domain.AllocationResult{}, domain.ErrAllocationInProgress
		}
		return domain.AllocationResult{}, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release allocation lock", zap.String("procedure_reference", reference), zap.Error(err))
		}
	}()

	var (
		allocation domain.Allocation
		updated    []domain.InvoiceLineItem
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		procedure, err := s.procedureRepo.LockByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if procedure == nil {
			return procdomain.ErrProcedureNotFound
		}
		if !procedure.HasRate() {
			return domain.ErrMissingRate
		}

		items, err := s.repo.ListByProcedure(ctx, tx, procedure.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return domain.ErrNoLineItems
		}

		overhead, err := s.overhead(ctx, tx, procedure)
		if err != nil {
			return err
		}
		method, err := s.method(ctx, tx, procedure.ID, settings)
		if err != nil {
			return err
		}

		allocation = domain.Allocate(domain.AllocationInput{
			Items:    items,
			Rate:     *procedure.USDToLocalRate,
			Overhead: overhead,
			Method:   method,
		})

		now := s.clock.Now().UTC()
		updated = make([]domain.InvoiceLineItem, 0, len(items))
		for i, item := range items {
			computed := allocation.Items[i]
			if err := s.repo.UpdateCosts(ctx, tx, item.ID, computed.FinalCost, computed.FinalCostPerItem, allocation.Multiplier, now); err != nil {
				return err
			}
			if err := s.audit(ctx, tx, "invoice_line_item.allocate", item.ID, map[string]any{
				"procedure_reference": procedure.Reference,
				"policy":              string(method),
				"final_cost":          computed.FinalCost.String(),
				"final_cost_per_item": computed.FinalCostPerItem.String(),
				"cost_multiplier":     allocation.Multiplier.String(),
			}); err != nil {
				return err
			}

			finalCost := computed.FinalCost
			perItem := computed.FinalCostPerItem
			multiplier := allocation.Multiplier
			item.FinalCost = &finalCost
			item.FinalCostPerItem = &perItem
			item.CostMultiplier = &multiplier
			item.UpdatedAt = now
			updated = append(updated, *item)
		}
		return nil
	})
	if err != nil {
		if db.IsRetryableErr(err) {
			s.log.Warn("line item allocation conflicted", zap.String("procedure_reference", reference), zap.Error(err))
			return domain.AllocationResult{}, domain.ErrAllocationInProgress
		}
		return domain.AllocationResult{}, err
	}

	log := obslogger.WithProcedure(obslogger.WithContext(ctx, s.log), reference)
	drift := allocation.Drift()
	fields := []zap.Field{
		zap.String("policy", string(allocation.Method)),
		zap.Int("item_count", len(updated)),
		zap.String("total_cost_usd", allocation.TotalCost.String()),
		zap.String("final_cost_sum", allocation.FinalCostSum.String()),
		zap.String("drift", drift.String()),
	}
	if !money.WithinTolerance(allocation.FinalCostSum, allocation.TotalCost, settings.Tolerance()) {
		log.Warn("line item costs do not sum to total", fields...)
	} else {
		log.Info("line item costs allocated", fields...)
	}
	s.metrics.RecordLineItemAllocation(ctx, string(allocation.Method), drift.InexactFloat64())

	return domain.AllocationResult{
		ProcedureReference:  reference,
		ItemCount:           len(updated),
		Multiplier:          allocation.Multiplier,
		Policy:              allocation.Method,
		TotalLineValueLocal: allocation.TotalLineValueLocal,
		TotalOverheadLocal:  allocation.TotalOverheadLocal,
		TotalCostUSD:        allocation.TotalCost.Round(money.StorageScale),
		FinalCostSum:        allocation.FinalCostSum,
		UpdatedItems:        updated,
	}, nil
}

func (s *Service) CreateLineItems(ctx context.Context, reference string, reqs []domain.CreateLineItemRequest) ([]domain.InvoiceLineItem, error) {
	reference, err := procdomain.NormalizeReference(reference)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, domain.ErrNoLineItems
	}
	for _, req := range reqs {
		if err := validateLineItem(req); err != nil {
			return nil, err
		}
	}

	var created []*domain.InvoiceLineItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		procedure, err := s.procedureRepo.LockByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if procedure == nil {
			return procdomain.ErrProcedureNotFound
		}

		next := 0
		highest, ok, err := s.repo.MaxSortOrder(ctx, tx, procedure.ID)
		if err != nil {
			return err
		}
		if ok {
			next = highest + 1
		}

		now := s.clock.Now().UTC()
		created = make([]*domain.InvoiceLineItem, 0, len(reqs))
		for i, req := range reqs {
			sortOrder := next + i
			totalPrice := req.Quantity.Mul(req.UnitPrice)
			if req.TotalPrice != nil {
				totalPrice = *req.TotalPrice
			}
			created = append(created, &domain.InvoiceLineItem{
				ID:          s.genID.Generate(),
				ProcedureID: procedure.ID,
				Style:       normalizePointer(req.Style),
				Description: strings.TrimSpace(req.Description),
				HTSCode:     normalizePointer(req.HTSCode),
				Quantity:    req.Quantity,
				UnitPrice:   req.UnitPrice,
				TotalPrice:  totalPrice,
				SortOrder:   &sortOrder,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		if err := s.repo.BatchInsert(ctx, tx, created); err != nil {
			return err
		}
		return s.audit(ctx, tx, "invoice_line_item.create", procedure.ID, map[string]any{
			"procedure_reference": procedure.Reference,
			"count":               len(created),
			"first_sort_order":    next,
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.InvoiceLineItem, 0, len(created))
	for _, item := range created {
		out = append(out, *item)
	}
	s.log.Info("line items created", zap.String("procedure_reference", reference), zap.Int("count", len(out)))
	return out, nil
}

func (s *Service) ListLineItems(ctx context.Context, reference string) ([]domain.InvoiceLineItem, error) {
	procedure, err := s.resolveProcedure(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListByProcedure(ctx, s.db, procedure.ID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.InvoiceLineItem, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *Service) UpsertConfig(ctx context.Context, reference string, method string) (domain.InvoiceLineItemsConfig, error) {
	parsed, err := domain.ParseDistributionMethod(method)
	if err != nil {
		return domain.InvoiceLineItemsConfig{}, err
	}

	var stored domain.InvoiceLineItemsConfig
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		procedure, err := s.resolveProcedure(ctx, tx, reference)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		if err := s.repo.UpsertConfig(ctx, tx, &domain.InvoiceLineItemsConfig{
			ID:                 s.genID.Generate(),
			ProcedureID:        procedure.ID,
			DistributionMethod: parsed,
			CreatedAt:          now,
			UpdatedAt:          now,
		}); err != nil {
			return err
		}
		cfg, err := s.repo.FindConfig(ctx, tx, procedure.ID)
		if err != nil {
			return err
		}
		if cfg == nil {
			return gorm.ErrRecordNotFound
		}
		stored = *cfg
		return nil
	})
	if err != nil {
		return domain.InvoiceLineItemsConfig{}, err
	}
	return stored, nil
}

func (s *Service) GetConfig(ctx context.Context, reference string) (domain.InvoiceLineItemsConfig, error) {
	procedure, err := s.resolveProcedure(ctx, s.db, reference)
	if err != nil {
		return domain.InvoiceLineItemsConfig{}, err
	}
	cfg, err := s.repo.FindConfig(ctx, s.db, procedure.ID)
	if err != nil {
		return domain.InvoiceLineItemsConfig{}, err
	}
	if cfg != nil {
		return *cfg, nil
	}
	method, err := domain.ParseDistributionMethod(s.allocation.Get().DefaultMethod)
	if err != nil {
		method = domain.MethodProportional
	}
	return domain.InvoiceLineItemsConfig{ProcedureID: procedure.ID, DistributionMethod: method}, nil
}

// overhead is the procedure's non-merchandise cost in local currency.
func (s *Service) overhead(ctx context.Context, tx *gorm.DB, procedure *procdomain.Procedure) (decimal.Decimal, error) {
	importExpenses, err := s.costRepo.ListImportExpenses(ctx, tx, procedure.ID)
	if err != nil {
		return decimal.Zero, err
	}
	serviceInvoices, err := s.costRepo.ListServiceInvoices(ctx, tx, procedure.ID)
	if err != nil {
		return decimal.Zero, err
	}
	tax, err := s.costRepo.FindTax(ctx, tx, procedure.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return money.Sum(
		costdomain.SumExpenses(importExpenses),
		costdomain.SumServiceInvoices(serviceInvoices),
		costdomain.TaxTotal(tax),
		money.Deref(procedure.FreightAmount),
	), nil
}

func (s *Service) method(ctx context.Context, tx *gorm.DB, procedureID snowflake.ID, settings config.AllocationConfig) (domain.DistributionMethod, error) {
	cfg, err := s.repo.FindConfig(ctx, tx, procedureID)
	if err != nil {
		return "", err
	}
	if cfg != nil {
		if method, err := domain.ParseDistributionMethod(string(cfg.DistributionMethod)); err == nil {
			return method, nil
		}
		s.log.Warn("stored distribution method ignored", zap.String("method", string(cfg.DistributionMethod)))
	}
	method, err := domain.ParseDistributionMethod(settings.DefaultMethod)
	if err != nil {
		return domain.MethodProportional, nil
	}
	return method, nil
}

func (s *Service) resolveProcedure(ctx context.Context, tx *gorm.DB, reference string) (*procdomain.Procedure, error) {
	reference, err := procdomain.NormalizeReference(reference)
	if err != nil {
		return nil, err
	}
	procedure, err := s.procedureRepo.FindByReference(ctx, tx, reference)
	if err != nil {
		return nil, err
	}
	if procedure == nil {
		return nil, procdomain.ErrProcedureNotFound
	}
	return procedure, nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, action string, targetID snowflake.ID, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	id := targetID.String()
	return s.auditSvc.AuditLog(ctx, tx, "", nil, action, auditdomain.TargetInvoiceLineItem, &id, metadata)
}

func validateLineItem(req domain.CreateLineItemRequest) error {
	if strings.TrimSpace(req.Description) == "" {
		return domain.ErrInvalidDescription
	}
	if req.Quantity.IsNegative() {
		return domain.ErrInvalidQuantity
	}
	if req.UnitPrice.IsNegative() {
		return domain.ErrInvalidPrice
	}
	if req.TotalPrice != nil && req.TotalPrice.IsNegative() {
		return domain.ErrInvalidPrice
	}
	return nil
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
