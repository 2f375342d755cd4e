package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/customsledger/internal/audit/domain"
	obscontext "github.com/smallbiznis/customsledger/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectProcedure       = "procedure"
	ObjectCost            = "cost"
	ObjectIncomingPayment = "incoming_payment"
	ObjectDistribution    = "payment_distribution"
	ObjectDirectPayment   = "direct_payment"
	ObjectSummary         = "financial_summary"
	ObjectLineItem        = "invoice_line_item"
	ObjectAuditLog        = "audit_log"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"

	ActionDistributionReset = "payment_distribution.reset"
	ActionLineItemAllocate  = "invoice_line_item.allocate"
)

// Roles, lowest privilege first. Each role inherits the one before it.
const (
	RoleViewer   = "viewer"
	RoleClerk    = "clerk"
	RoleOperator = "operator"
	RoleSystem   = "system"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer loads policies persisted through the gorm adapter and seeds the
// built-in role hierarchy.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, object string, action string) error {
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	role := strings.ToLower(obscontext.ActorRoleFromContext(ctx))
	actorType, actorID := obscontext.ActorFromContext(ctx)
	if role == "" {
		s.auditDenied(ctx, actorType, actorID, object, action)
		return ErrInvalidActor
	}

	allowed, err := s.enforcer.Enforce(roleSubject(role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditGranted(ctx, actorType, actorID, object, action)
	}
	return nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID string, object string, action string) {
	s.log.Info("authorization denied",
		zap.String("object", object),
		zap.String("action", action),
		zap.String("actor_type", actorType),
	)
	s.audit(ctx, "authorization.denied", actorType, actorID, object, action)
}

func (s *ServiceImpl) auditGranted(ctx context.Context, actorType string, actorID string, object string, action string) {
	s.audit(ctx, "authorization.granted", actorType, actorID, object, action)
}

func (s *ServiceImpl) audit(ctx context.Context, auditAction string, actorType string, actorID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	var id *string
	if actorID != "" {
		id = &actorID
	}
	targetID := "capability"
	_ = s.auditSvc.AuditLog(ctx, nil, actorType, id, auditAction, "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"role":   obscontext.ActorRoleFromContext(ctx),
	})
}

func roleSubject(role string) string {
	return fmt.Sprintf("role:%s", role)
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionDistributionReset, ActionLineItemAllocate:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	viewer := roleSubject(RoleViewer)
	clerk := roleSubject(RoleClerk)
	operator := roleSubject(RoleOperator)
	system := roleSubject(RoleSystem)

	policies := [][]string{
		// Viewer permissions (read-only)
		{viewer, ObjectProcedure, ActionView},
		{viewer, ObjectCost, ActionView},
		{viewer, ObjectIncomingPayment, ActionView},
		{viewer, ObjectDistribution, ActionView},
		{viewer, ObjectSummary, ActionView},
		{viewer, ObjectLineItem, ActionView},

		// Clerk permissions
		{clerk, ObjectProcedure, ActionCreate},
		{clerk, ObjectProcedure, ActionUpdate},
		{clerk, ObjectCost, ActionCreate},
		{clerk, ObjectCost, ActionUpdate},
		{clerk, ObjectCost, ActionDelete},
		{clerk, ObjectIncomingPayment, ActionCreate},
		{clerk, ObjectIncomingPayment, ActionDelete},
		{clerk, ObjectDistribution, ActionCreate},
		{clerk, ObjectDistribution, ActionDelete},
		{clerk, ObjectDirectPayment, ActionCreate},
		{clerk, ObjectLineItem, ActionCreate},
		{clerk, ObjectLineItem, ActionUpdate},

		// Operator permissions
		{operator, ObjectDistribution, ActionDistributionReset},
		{operator, ObjectLineItem, ActionLineItemAllocate},
		{operator, ObjectAuditLog, ActionView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	groupings := [][]string{
		{clerk, viewer},
		{operator, clerk},
		{system, operator},
	}
	for _, grouping := range groupings {
		if _, err := enforcer.AddGroupingPolicy(grouping); err != nil {
			return err
		}
	}
	return nil
}
