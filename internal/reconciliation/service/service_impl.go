package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	costdomain "github.com/smallbiznis/customsledger/internal/cost/domain"
	obslogger "github.com/smallbiznis/customsledger/internal/observability/logger"
	"github.com/smallbiznis/customsledger/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/customsledger/internal/payment/domain"
	procdomain "github.com/smallbiznis/customsledger/internal/procedure/domain"
	"github.com/smallbiznis/customsledger/internal/reconciliation/domain"
	"github.com/smallbiznis/customsledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	ProcedureRepo procdomain.Repository
	CostRepo      costdomain.Repository
	PaymentRepo   paymentdomain.Repository
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	procedureRepo procdomain.Repository
	costRepo      costdomain.Repository
	paymentRepo   paymentdomain.Repository
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("reconciliation.service"),
		procedureRepo: p.ProcedureRepo,
		costRepo:      p.CostRepo,
		paymentRepo:   p.PaymentRepo,
		metrics:       p.Metrics,
	}
}

func (s *Service) FinancialSummary(ctx context.Context, reference string) (result domain.SummaryResult) {
	defer func() {
		if r := recover(); r != nil {
			result = s.fallback(ctx, reference, fmt.Errorf("%w: %v", domain.ErrSummaryFailed, r))
		}
	}()

	summary, err := s.CalculateFinancialSummary(ctx, reference)
	if err != nil {
		return s.fallback(ctx, reference, err)
	}
	return domain.SummaryResult{Summary: summary, Status: domain.SummaryStatusOK}
}

func (s *Service) CalculateFinancialSummary(ctx context.Context, reference string) (domain.FinancialSummary, error) {
	reference, err := procdomain.NormalizeReference(reference)
	if err != nil {
		return domain.FinancialSummary{}, err
	}

	var summary domain.FinancialSummary
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		procedure, err := s.procedureRepo.FindByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if procedure == nil {
			return procdomain.ErrProcedureNotFound
		}

		in, err := s.loadInputs(ctx, tx, procedure.ID)
		if err != nil {
			return err
		}
		summary = domain.Summarize(procedure.Reference, in)
		return nil
	}, db.SnapshotTxOptions(s.db))
	if err != nil {
		return domain.FinancialSummary{}, err
	}
	return summary, nil
}

func (s *Service) BatchFinancialSummaries(ctx context.Context) (map[string]domain.FinancialSummary, error) {
	var (
		procedures      []*procdomain.Procedure
		importExpenses  []*costdomain.ImportExpense
		serviceInvoices []*costdomain.ServiceInvoice
		taxes           []*costdomain.Tax
		directPayments  []*paymentdomain.Payment
		distributions   []*paymentdomain.PaymentDistribution
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if procedures, err = s.procedureRepo.ListAll(ctx, tx); err != nil {
			return err
		}
		if importExpenses, err = s.costRepo.ListAllImportExpenses(ctx, tx); err != nil {
			return err
		}
		if serviceInvoices, err = s.costRepo.ListAllServiceInvoices(ctx, tx); err != nil {
			return err
		}
		if taxes, err = s.costRepo.ListAllTaxes(ctx, tx); err != nil {
			return err
		}
		if directPayments, err = s.paymentRepo.ListAllDirectPayments(ctx, tx); err != nil {
			return err
		}
		distributions, err = s.paymentRepo.ListAllDistributions(ctx, tx)
		return err
	}, db.SnapshotTxOptions(s.db))
	if err != nil {
		s.metrics.RecordSummaryFallback(ctx, "batch")
		s.log.Error("batch summary load failed", zap.Error(err))
		return nil, err
	}

	inputs := make(map[snowflake.ID]*domain.Inputs, len(procedures))
	for _, procedure := range procedures {
		if procedure != nil {
			inputs[procedure.ID] = &domain.Inputs{}
		}
	}
	group := func(procedureID snowflake.ID) *domain.Inputs {
		return inputs[procedureID]
	}

	for _, item := range importExpenses {
		if in := group(item.ProcedureID); in != nil {
			in.ImportExpenses = append(in.ImportExpenses, item)
		}
	}
	for _, item := range serviceInvoices {
		if in := group(item.ProcedureID); in != nil {
			in.ServiceInvoices = append(in.ServiceInvoices, item)
		}
	}
	for _, item := range taxes {
		if in := group(item.ProcedureID); in != nil {
			in.Tax = item
		}
	}
	for _, item := range directPayments {
		if in := group(item.ProcedureID); in != nil {
			in.DirectPayments = append(in.DirectPayments, item)
		}
	}
	for _, item := range distributions {
		if in := group(item.ProcedureID); in != nil {
			in.Distributions = append(in.Distributions, item)
		}
	}

	summaries := make(map[string]domain.FinancialSummary, len(procedures))
	for _, procedure := range procedures {
		if procedure == nil {
			continue
		}
		summaries[procedure.Reference] = domain.Summarize(procedure.Reference, *inputs[procedure.ID])
	}

	s.log.Debug("batch summaries computed", zap.Int("procedures", len(summaries)))
	return summaries, nil
}

func (s *Service) loadInputs(ctx context.Context, tx *gorm.DB, procedureID snowflake.ID) (domain.Inputs, error) {
	importExpenses, err := s.costRepo.ListImportExpenses(ctx, tx, procedureID)
	if err != nil {
		return domain.Inputs{}, fmt.Errorf("load import expenses: %w", err)
	}
	serviceInvoices, err := s.costRepo.ListServiceInvoices(ctx, tx, procedureID)
	if err != nil {
		return domain.Inputs{}, fmt.Errorf("load service invoices: %w", err)
	}
	tax, err := s.costRepo.FindTax(ctx, tx, procedureID)
	if err != nil {
		return domain.Inputs{}, fmt.Errorf("load taxes: %w", err)
	}
	directPayments, err := s.paymentRepo.ListDirectPaymentsByProcedure(ctx, tx, procedureID)
	if err != nil {
		return domain.Inputs{}, fmt.Errorf("load direct payments: %w", err)
	}
	distributions, err := s.paymentRepo.ListDistributionsByProcedure(ctx, tx, procedureID)
	if err != nil {
		return domain.Inputs{}, fmt.Errorf("load distributions: %w", err)
	}
	return domain.Inputs{
		ImportExpenses:  importExpenses,
		ServiceInvoices: serviceInvoices,
		Tax:             tax,
		DirectPayments:  directPayments,
		Distributions:   distributions,
	}, nil
}

func (s *Service) fallback(ctx context.Context, reference string, err error) domain.SummaryResult {
	s.metrics.RecordSummaryFallback(ctx, "single")
	obslogger.WithProcedure(obslogger.WithContext(ctx, s.log), reference).
		Warn("financial summary fell back to zero", zap.Error(err))
	return domain.SummaryResult{
		Summary: domain.ZeroSummary(reference),
		Status:  domain.SummaryStatusFailed,
		Err:     err,
		Error:   err.Error(),
	}
}
