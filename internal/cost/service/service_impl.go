package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/customsledger/internal/clock"
	"github.com/smallbiznis/customsledger/internal/cost/domain"
	procdomain "github.com/smallbiznis/customsledger/internal/procedure/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	ProcedureRepo procdomain.Repository
	Clock         clock.Clock `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	procedureRepo procdomain.Repository
	clock         clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("cost.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		procedureRepo: p.ProcedureRepo,
		clock:         clk,
	}
}

func (s *Service) CreateImportExpense(ctx context.Context, reference string, req domain.CreateCostRequest) (domain.ImportExpense, error) {
	procedure, err := s.resolveProcedure(ctx, reference)
	if err != nil {
		return domain.ImportExpense{}, err
	}
	category, currency, err := validateCost(req)
	if err != nil {
		return domain.ImportExpense{}, err
	}

	item := domain.ImportExpense{
		ID:             s.genID.Generate(),
		ProcedureID:    procedure.ID,
		Category:       category,
		Amount:         req.Amount,
		Currency:       currency,
		DocumentNumber: normalizePointer(req.DocumentNumber),
		IssuedAt:       utcPointer(req.IssuedAt),
		CreatedAt:      s.clock.Now().UTC(),
	}
	if err := s.repo.InsertImportExpense(ctx, s.db, &item); err != nil {
		return domain.ImportExpense{}, err
	}
	return item, nil
}

func (s *Service) ListImportExpenses(ctx context.Context, reference string) ([]domain.ImportExpense, error) {
	procedure, err := s.resolveProcedure(ctx, reference)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListImportExpenses(ctx, s.db, procedure.ID)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) DeleteImportExpense(ctx context.Context, id snowflake.ID) (bool, error) {
	if id == 0 {
		return false, nil
	}
	affected, err := s.repo.DeleteImportExpense(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Service) CreateServiceInvoice(ctx context.Context, reference string, req domain.CreateCostRequest) (domain.ServiceInvoice, error) {
	procedure, err := s.resolveProcedure(ctx, reference)
	if err != nil {
		return domain.ServiceInvoice{}, err
	}
	category, currency, err := validateCost(req)
	if err != nil {
		return domain.ServiceInvoice{}, err
	}

	item := domain.ServiceInvoice{
		ID:             s.genID.Generate(),
		ProcedureID:    procedure.ID,
		Category:       category,
		Amount:         req.Amount,
		Currency:       currency,
		DocumentNumber: normalizePointer(req.DocumentNumber),
		IssuedAt:       utcPointer(req.IssuedAt),
		CreatedAt:      s.clock.Now().UTC(),
	}
	if err := s.repo.InsertServiceInvoice(ctx, s.db, &item); err != nil {
		return domain.ServiceInvoice{}, err
	}
	return item, nil
}

func (s *Service) ListServiceInvoices(ctx context.Context, reference string) ([]domain.ServiceInvoice, error) {
	procedure, err := s.resolveProcedure(ctx, reference)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListServiceInvoices(ctx, s.db, procedure.ID)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) DeleteServiceInvoice(ctx context.Context, id snowflake.ID) (bool, error) {
	if id == 0 {
		return false, nil
	}
	affected, err := s.repo.DeleteServiceInvoice(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Service) UpsertTax(ctx context.Context, reference string, req domain.UpsertTaxRequest) (domain.Tax, error) {
	procedure, err := s.resolveProcedure(ctx, reference)
	if err != nil {
		return domain.Tax{}, err
	}
	for _, component := range []decimal.Decimal{req.CustomsTax, req.AdditionalCustomsTax, req.KKDF, req.VAT, req.StampTax} {
		if component.IsNegative() {
			return domain.Tax{}, domain.ErrInvalidAmount
		}
	}

	now := s.clock.Now().UTC()
	tax := domain.Tax{
		ID:                   s.genID.Generate(),
		ProcedureID:          procedure.ID,
		CustomsTax:           req.CustomsTax,
		AdditionalCustomsTax: req.AdditionalCustomsTax,
		KKDF:                 req.KKDF,
		VAT:                  req.VAT,
		StampTax:             req.StampTax,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	var stored domain.Tax
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpsertTax(ctx, tx, &tax); err != nil {
			return err
		}
		row, err := s.repo.FindTax(ctx, tx, procedure.ID)
		if err != nil {
			return err
		}
		if row != nil {
			stored = *row
		}
		return nil
	})
	if err != nil {
		return domain.Tax{}, err
	}

	s.log.Info("tax upserted",
		zap.String("reference", procedure.Reference),
		zap.String("total", stored.Total().String()),
	)
	return stored, nil
}

func (s *Service) GetTax(ctx context.Context, reference string) (domain.Tax, error) {
	procedure, err := s.resolveProcedure(ctx, reference)
	if err != nil {
		return domain.Tax{}, err
	}
	row, err := s.repo.FindTax(ctx, s.db, procedure.ID)
	if err != nil {
		return domain.Tax{}, err
	}
	if row == nil {
		return domain.Tax{ProcedureID: procedure.ID}, nil
	}
	return *row, nil
}

func (s *Service) resolveProcedure(ctx context.Context, reference string) (*procdomain.Procedure, error) {
	reference, err := procdomain.NormalizeReference(reference)
	if err != nil {
		return nil, err
	}
	procedure, err := s.procedureRepo.FindByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if procedure == nil {
		return nil, procdomain.ErrProcedureNotFound
	}
	return procedure, nil
}

func validateCost(req domain.CreateCostRequest) (string, string, error) {
	category := strings.TrimSpace(req.Category)
	if category == "" {
		return "", "", domain.ErrInvalidCategory
	}
	if req.Amount.IsNegative() {
		return "", "", domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = domain.DefaultLocalCurrency
	}
	if len(currency) != 3 {
		return "", "", domain.ErrInvalidCurrency
	}
	return category, currency, nil
}

func deref[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out
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

func utcPointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}
