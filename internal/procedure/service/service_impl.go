package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/customsledger/internal/clock"
	"github.com/smallbiznis/customsledger/internal/procedure/domain"
	"github.com/smallbiznis/customsledger/pkg/db"
	"github.com/smallbiznis/customsledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("procedure.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateProcedureRequest) (domain.Procedure, error) {
	reference, err := domain.NormalizeReference(req.Reference)
	if err != nil {
		return domain.Procedure{}, err
	}
	if req.Amount.IsNegative() {
		return domain.Procedure{}, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return domain.Procedure{}, domain.ErrInvalidCurrency
	}
	if req.USDToLocalRate != nil && !req.USDToLocalRate.IsPositive() {
		return domain.Procedure{}, domain.ErrInvalidRate
	}
	if req.FreightAmount != nil && req.FreightAmount.IsNegative() {
		return domain.Procedure{}, domain.ErrInvalidAmount
	}

	now := s.clock.Now().UTC()
	procedure := domain.Procedure{
		ID:             s.genID.Generate(),
		Reference:      reference,
		Amount:         req.Amount,
		Currency:       currency,
		USDToLocalRate: req.USDToLocalRate,
		FreightAmount:  req.FreightAmount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &procedure); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Procedure{}, domain.ErrDuplicateReference
		}
		return domain.Procedure{}, err
	}

	s.log.Info("procedure created", zap.String("reference", reference), zap.String("id", procedure.ID.String()))
	return procedure, nil
}

func (s *Service) Get(ctx context.Context, reference string) (domain.Procedure, error) {
	reference, err := domain.NormalizeReference(reference)
	if err != nil {
		return domain.Procedure{}, err
	}

	item, err := s.repo.FindByReference(ctx, s.db, reference)
	if err != nil {
		return domain.Procedure{}, err
	}
	if item == nil {
		return domain.Procedure{}, domain.ErrProcedureNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListProcedureRequest) (domain.ListProcedureResponse, error) {
	var cursor *pagination.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil || !validCursor(decoded) {
			return domain.ListProcedureResponse{}, domain.ErrInvalidPageToken
		}
		cursor = decoded
	}

	pageSize := req.Limit()
	items, err := s.repo.List(ctx, s.db, req.Pagination, cursor)
	if err != nil {
		return domain.ListProcedureResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Procedure) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	procedures := make([]domain.Procedure, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		procedures = append(procedures, *item)
	}
	return domain.ListProcedureResponse{PageInfo: *pageInfo, Procedures: procedures}, nil
}

func (s *Service) SetExchangeRate(ctx context.Context, reference string, rate decimal.Decimal) (domain.Procedure, error) {
	if !rate.IsPositive() {
		return domain.Procedure{}, domain.ErrInvalidRate
	}
	return s.update(ctx, reference, map[string]any{"usd_to_local_rate": rate})
}

func (s *Service) SetFreight(ctx context.Context, reference string, amount *decimal.Decimal) (domain.Procedure, error) {
	if amount != nil && amount.IsNegative() {
		return domain.Procedure{}, domain.ErrInvalidAmount
	}
	var value any
	if amount != nil {
		value = *amount
	}
	return s.update(ctx, reference, map[string]any{"freight_amount": value})
}

// update applies fields under the procedure row lock so it cannot interleave
// with a running line item allocation.
func (s *Service) update(ctx context.Context, reference string, fields map[string]any) (domain.Procedure, error) {
	reference, err := domain.NormalizeReference(reference)
	if err != nil {
		return domain.Procedure{}, err
	}

	var updated domain.Procedure
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.LockByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrProcedureNotFound
		}

		fields["updated_at"] = s.clock.Now().UTC()
		if err := s.repo.UpdateFields(ctx, tx, item.ID, fields); err != nil {
			return err
		}

		reloaded, err := s.repo.FindByID(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if reloaded == nil {
			return domain.ErrProcedureNotFound
		}
		updated = *reloaded
		return nil
	})
	if err != nil {
		return domain.Procedure{}, err
	}
	return updated, nil
}

func validCursor(cursor *pagination.Cursor) bool {
	if _, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt); err != nil {
		return false
	}
	id, err := snowflake.ParseString(strings.TrimSpace(cursor.ID))
	return err == nil && id != 0
}
