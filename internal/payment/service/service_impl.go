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
	"github.com/smallbiznis/customsledger/internal/observability/metrics"
	"github.com/smallbiznis/customsledger/internal/payment/domain"
	procdomain "github.com/smallbiznis/customsledger/internal/procedure/domain"
	"github.com/smallbiznis/customsledger/pkg/db"
	"github.com/smallbiznis/customsledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxPaymentIDLength = 64

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	ProcedureRepo procdomain.Repository
	AuditSvc      auditdomain.Service            `optional:"true"`
	Metrics       *metrics.Metrics               `optional:"true"`
	Allocation    *config.AllocationConfigHolder `optional:"true"`
	Clock         clock.Clock                    `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	procedureRepo procdomain.Repository
	auditSvc      auditdomain.Service
	metrics       *metrics.Metrics
	allocation    *config.AllocationConfigHolder
	clock         clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		procedureRepo: p.ProcedureRepo,
		auditSvc:      p.AuditSvc,
		metrics:       p.Metrics,
		allocation:    p.Allocation,
		clock:         clk,
	}
}

func (s *Service) CreateIncomingPayment(ctx context.Context, req domain.CreateIncomingPaymentRequest) (domain.IncomingPaymentView, error) {
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" || len(paymentID) > maxPaymentIDLength {
		return domain.IncomingPaymentView{}, domain.ErrInvalidPaymentID
	}
	payerName := strings.TrimSpace(req.PayerName)
	if payerName == "" {
		return domain.IncomingPaymentView{}, domain.ErrInvalidPayerName
	}
	if req.TotalAmount.IsNegative() {
		return domain.IncomingPaymentView{}, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return domain.IncomingPaymentView{}, domain.ErrInvalidCurrency
	}

	now := s.clock.Now().UTC()
	received := req.DateReceived.UTC()
	if req.DateReceived.IsZero() {
		received = now
	}

	payment := domain.IncomingPayment{
		ID:                 s.genID.Generate(),
		PaymentID:          paymentID,
		PayerName:          payerName,
		PayerInfo:          normalizePointer(req.PayerInfo),
		TotalAmount:        req.TotalAmount,
		Currency:           currency,
		DateReceived:       received,
		AmountDistributed:  decimal.Zero,
		RemainingBalance:   req.TotalAmount,
		DistributionStatus: domain.StatusPendingDistribution,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertIncomingPayment(ctx, tx, &payment); err != nil {
			return err
		}
		metadata := map[string]any{
			"payment_id":   payment.PaymentID,
			"payer_name":   payment.PayerName,
			"total_amount": payment.TotalAmount.String(),
			"currency":     payment.Currency,
		}
		if payment.PayerInfo != nil {
			metadata["payer_info"] = *payment.PayerInfo
		}
		return s.audit(ctx, tx, "incoming_payment.create", auditdomain.TargetIncomingPayment, payment.ID, metadata)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.IncomingPaymentView{}, domain.ErrDuplicatePaymentID
		}
		return domain.IncomingPaymentView{}, err
	}

	s.log.Info("incoming payment created",
		zap.String("id", payment.ID.String()),
		zap.String("payment_id", payment.PaymentID),
		zap.String("total_amount", payment.TotalAmount.String()),
	)
	return domain.NewIncomingPaymentView(payment), nil
}

func (s *Service) GetIncomingPayment(ctx context.Context, id snowflake.ID) (domain.IncomingPaymentView, error) {
	item, err := s.repo.FindIncomingPayment(ctx, s.db, id)
	if err != nil {
		return domain.IncomingPaymentView{}, err
	}
	if item == nil {
		return domain.IncomingPaymentView{}, domain.ErrPaymentNotFound
	}
	return domain.NewIncomingPaymentView(*item), nil
}

func (s *Service) ListIncomingPayments(ctx context.Context, req domain.ListIncomingPaymentRequest) (domain.ListIncomingPaymentResponse, error) {
	filter := domain.ListIncomingPaymentFilter{}
	if strings.TrimSpace(req.Status) != "" {
		status, err := domain.ParseDistributionStatus(req.Status)
		if err != nil {
			return domain.ListIncomingPaymentResponse{}, err
		}
		filter.Status = status
	}

	var cursor *pagination.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil || !validCursor(decoded) {
			return domain.ListIncomingPaymentResponse{}, domain.ErrInvalidPageToken
		}
		cursor = decoded
	}

	pageSize := req.Limit()
	items, err := s.repo.ListIncomingPayments(ctx, s.db, filter, req.Pagination, cursor)
	if err != nil {
		return domain.ListIncomingPaymentResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.IncomingPayment) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	views := make([]domain.IncomingPaymentView, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		views = append(views, domain.NewIncomingPaymentView(*item))
	}
	return domain.ListIncomingPaymentResponse{PageInfo: *pageInfo, IncomingPayments: views}, nil
}

func (s *Service) DeleteIncomingPayment(ctx context.Context, id snowflake.ID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.LockIncomingPayment(ctx, tx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrPaymentNotFound
		}

		count, err := s.repo.CountDistributionsByPayment(ctx, tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return &domain.HasDistributionsError{Count: count}
		}

		affected, err := s.repo.DeleteIncomingPayment(ctx, tx, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrPaymentNotFound
		}
		return s.audit(ctx, tx, "incoming_payment.delete", auditdomain.TargetIncomingPayment, id, map[string]any{
			"payment_id": payment.PaymentID,
		})
	})
	if err != nil {
		var blocked *domain.HasDistributionsError
		if errors.As(err, &blocked) {
			s.log.Info("incoming payment delete blocked",
				zap.String("id", id.String()),
				zap.Int64("distribution_count", blocked.Count),
			)
		}
		return s.translate(err)
	}

	s.log.Info("incoming payment deleted", zap.String("id", id.String()))
	return nil
}

func (s *Service) CreateDistribution(ctx context.Context, req domain.CreateDistributionRequest) (domain.CreateDistributionResponse, error) {
	if !req.DistributedAmount.IsPositive() {
		return domain.CreateDistributionResponse{}, domain.ErrInvalidAmount
	}
	paymentType, err := domain.ParsePaymentType(req.PaymentType)
	if err != nil {
		return domain.CreateDistributionResponse{}, err
	}
	reference, err := procdomain.NormalizeReference(req.ProcedureReference)
	if err != nil {
		return domain.CreateDistributionResponse{}, err
	}

	now := s.clock.Now().UTC()
	distributionDate := now
	if req.DistributionDate != nil && !req.DistributionDate.IsZero() {
		distributionDate = req.DistributionDate.UTC()
	}

	var (
		distribution domain.PaymentDistribution
		payment      domain.IncomingPayment
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		procedure, err := s.procedureRepo.FindByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if procedure == nil {
			return procdomain.ErrProcedureNotFound
		}

		locked, err := s.repo.LockIncomingPayment(ctx, tx, req.IncomingPaymentID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrPaymentNotFound
		}

		distribution = domain.PaymentDistribution{
			ID:                s.genID.Generate(),
			IncomingPaymentID: locked.ID,
			ProcedureID:       procedure.ID,
			DistributedAmount: req.DistributedAmount,
			PaymentType:       paymentType,
			DistributionDate:  distributionDate,
			Notes:             normalizePointer(req.Notes),
			CreatedAt:         now,
		}
		if err := s.repo.InsertDistribution(ctx, tx, &distribution); err != nil {
			return err
		}

		if err := s.recompute(ctx, tx, locked, now); err != nil {
			return err
		}
		payment = *locked

		return s.audit(ctx, tx, "payment_distribution.create", auditdomain.TargetPaymentDistribution, distribution.ID, map[string]any{
			"incoming_payment_id": locked.ID.String(),
			"procedure_reference": procedure.Reference,
			"distributed_amount":  distribution.DistributedAmount.String(),
			"payment_type":        string(distribution.PaymentType),
			"distribution_status": string(locked.DistributionStatus),
		})
	})
	if err != nil {
		return domain.CreateDistributionResponse{}, s.translate(err)
	}

	s.metrics.RecordDistributionCreated(ctx, string(paymentType))
	view := domain.NewIncomingPaymentView(payment)
	if view.OverAllocated {
		s.metrics.RecordOverAllocation(ctx)
		s.log.Warn("incoming payment over-allocated",
			zap.String("incoming_payment_id", payment.ID.String()),
			zap.String("total_amount", payment.TotalAmount.String()),
			zap.String("amount_distributed", payment.AmountDistributed.String()),
		)
	}

	s.log.Info("distribution created",
		zap.String("id", distribution.ID.String()),
		zap.String("incoming_payment_id", payment.ID.String()),
		zap.String("procedure_reference", reference),
		zap.String("distribution_status", string(payment.DistributionStatus)),
	)
	return domain.CreateDistributionResponse{Distribution: distribution, Payment: view}, nil
}

func (s *Service) DeleteDistribution(ctx context.Context, id snowflake.ID) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		distribution, err := s.repo.FindDistribution(ctx, tx, id)
		if err != nil {
			return err
		}
		if distribution == nil {
			return nil
		}

		parent, err := s.repo.LockIncomingPayment(ctx, tx, distribution.IncomingPaymentID)
		if err != nil {
			return err
		}

		affected, err := s.repo.DeleteDistribution(ctx, tx, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		deleted = true

		metadata := map[string]any{
			"incoming_payment_id": distribution.IncomingPaymentID.String(),
			"distributed_amount":  distribution.DistributedAmount.String(),
			"payment_type":        string(distribution.PaymentType),
		}
		if parent != nil {
			if err := s.recompute(ctx, tx, parent, s.clock.Now().UTC()); err != nil {
				return err
			}
			metadata["distribution_status"] = string(parent.DistributionStatus)
		}
		return s.audit(ctx, tx, "payment_distribution.delete", auditdomain.TargetPaymentDistribution, id, metadata)
	})
	if err != nil {
		return false, s.translate(err)
	}
	if deleted {
		s.metrics.RecordDistributionDeleted(ctx)
		s.log.Info("distribution deleted", zap.String("id", id.String()))
	}
	return deleted, nil
}

func (s *Service) DeleteAllDistributions(ctx context.Context) (domain.ResetResult, error) {
	var result domain.ResetResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := s.repo.DeleteAllDistributions(ctx, tx)
		if err != nil {
			return err
		}
		reset, err := s.repo.ResetAllIncomingPayments(ctx, tx, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		result = domain.ResetResult{Count: count, PaymentsReset: reset}

		return s.audit(ctx, tx, "payment_distribution.reset", auditdomain.TargetPaymentDistribution, 0, map[string]any{
			"distributions_deleted": count,
			"payments_reset":        reset,
		})
	})
	if err != nil {
		return domain.ResetResult{}, s.translate(err)
	}

	s.metrics.RecordDistributionReset(ctx)
	s.log.Warn("all distributions deleted",
		zap.Int64("distributions_deleted", result.Count),
		zap.Int64("payments_reset", result.PaymentsReset),
	)
	return result, nil
}

func (s *Service) ListDistributions(ctx context.Context, req domain.ListDistributionsRequest) ([]domain.PaymentDistribution, error) {
	var procedureID snowflake.ID
	if strings.TrimSpace(req.ProcedureReference) != "" {
		procedure, err := s.resolveProcedure(ctx, s.db, req.ProcedureReference)
		if err != nil {
			return nil, err
		}
		procedureID = procedure.ID
	}

	var (
		items []*domain.PaymentDistribution
		err   error
	)
	switch {
	case req.IncomingPaymentID != 0:
		items, err = s.repo.ListDistributionsByPayment(ctx, s.db, req.IncomingPaymentID)
	case procedureID != 0:
		items, err = s.repo.ListDistributionsByProcedure(ctx, s.db, procedureID)
	default:
		items, err = s.repo.ListAllDistributions(ctx, s.db)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.PaymentDistribution, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if procedureID != 0 && item.ProcedureID != procedureID {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) RecomputeStatus(ctx context.Context, incomingPaymentID snowflake.ID) (domain.IncomingPaymentView, error) {
	var payment domain.IncomingPayment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.LockIncomingPayment(ctx, tx, incomingPaymentID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrPaymentNotFound
		}
		if err := s.recompute(ctx, tx, locked, s.clock.Now().UTC()); err != nil {
			return err
		}
		payment = *locked
		return nil
	})
	if err != nil {
		return domain.IncomingPaymentView{}, s.translate(err)
	}
	return domain.NewIncomingPaymentView(payment), nil
}

func (s *Service) CreateDirectPayment(ctx context.Context, reference string, req domain.CreateDirectPaymentRequest) (domain.Payment, error) {
	paymentType, err := domain.ParsePaymentType(req.PaymentType)
	if err != nil {
		return domain.Payment{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.Payment{}, domain.ErrInvalidAmount
	}

	now := s.clock.Now().UTC()
	paymentDate := now
	if req.PaymentDate != nil && !req.PaymentDate.IsZero() {
		paymentDate = req.PaymentDate.UTC()
	}

	var payment domain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		procedure, err := s.resolveProcedure(ctx, tx, reference)
		if err != nil {
			return err
		}
		payment = domain.Payment{
			ID:          s.genID.Generate(),
			ProcedureID: procedure.ID,
			PaymentType: paymentType,
			Amount:      req.Amount,
			PaymentDate: paymentDate,
			Description: normalizePointer(req.Description),
			CreatedAt:   now,
		}
		if err := s.repo.InsertDirectPayment(ctx, tx, &payment); err != nil {
			return err
		}
		return s.audit(ctx, tx, "direct_payment.create", auditdomain.TargetProcedure, procedure.ID, map[string]any{
			"payment_id":   payment.ID.String(),
			"payment_type": string(payment.PaymentType),
			"amount":       payment.Amount.String(),
		})
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

func (s *Service) ListDirectPayments(ctx context.Context, reference string) ([]domain.Payment, error) {
	procedure, err := s.resolveProcedure(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListDirectPaymentsByProcedure(ctx, s.db, procedure.ID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

// recompute rederives the allocation state of a locked payment from its
// current distributions and writes it guarded by the row version. The payment
// is updated in place on success.
func (s *Service) recompute(ctx context.Context, tx *gorm.DB, payment *domain.IncomingPayment, now time.Time) error {
	distributions, err := s.repo.ListDistributionsByPayment(ctx, tx, payment.ID)
	if err != nil {
		return err
	}

	state := domain.RecomputeStatus(payment.TotalAmount, domain.DistributionAmounts(distributions), s.allocation.Get().Tolerance())
	affected, err := s.repo.UpdateAllocation(ctx, tx, payment.ID, payment.Version, state, now)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrConcurrentModification
	}

	payment.Apply(state)
	payment.Version++
	payment.UpdatedAt = now
	return nil
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

func (s *Service) audit(ctx context.Context, tx *gorm.DB, action string, targetType string, targetID snowflake.ID, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	var target *string
	if targetID != 0 {
		id := targetID.String()
		target = &id
	}
	return s.auditSvc.AuditLog(ctx, tx, "", nil, action, targetType, target, metadata)
}

// translate maps lock and serialization failures to ErrConcurrentModification
// so callers can retry.
func (s *Service) translate(err error) error {
	if err == nil {
		return nil
	}
	if db.IsRetryableErr(err) {
		s.log.Warn("concurrent modification", zap.Error(err))
		return domain.ErrConcurrentModification
	}
	return err
}

func validCursor(cursor *pagination.Cursor) bool {
	if _, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt); err != nil {
		return false
	}
	id, err := snowflake.ParseString(strings.TrimSpace(cursor.ID))
	return err == nil && id != 0
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
