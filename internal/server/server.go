package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/customsledger/internal/audit"
	auditdomain "github.com/smallbiznis/customsledger/internal/audit/domain"
	"github.com/smallbiznis/customsledger/internal/authorization"
	"github.com/smallbiznis/customsledger/internal/config"
	"github.com/smallbiznis/customsledger/internal/cost"
	costdomain "github.com/smallbiznis/customsledger/internal/cost/domain"
	"github.com/smallbiznis/customsledger/internal/lineitem"
	lineitemdomain "github.com/smallbiznis/customsledger/internal/lineitem/domain"
	"github.com/smallbiznis/customsledger/internal/lock"
	"github.com/smallbiznis/customsledger/internal/observability"
	obslogger "github.com/smallbiznis/customsledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/customsledger/internal/observability/metrics"
	obstracing "github.com/smallbiznis/customsledger/internal/observability/tracing"
	"github.com/smallbiznis/customsledger/internal/payment"
	paymentdomain "github.com/smallbiznis/customsledger/internal/payment/domain"
	"github.com/smallbiznis/customsledger/internal/procedure"
	proceduredomain "github.com/smallbiznis/customsledger/internal/procedure/domain"
	"github.com/smallbiznis/customsledger/internal/reconciliation"
	reconciliationdomain "github.com/smallbiznis/customsledger/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the ledger services behind the HTTP API.
var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	lock.Module,
	procedure.Module,
	cost.Module,
	payment.Module,
	reconciliation.Module,
	lineitem.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if httpMetrics != nil {
		r.GET("/metrics", httpMetrics.Handler())
	}

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine            *gin.Engine
	log               *zap.Logger
	authzSvc          authorization.Service
	auditSvc          auditdomain.Service
	procedureSvc      proceduredomain.Service
	costSvc           costdomain.Service
	paymentSvc        paymentdomain.Service
	reconciliationSvc reconciliationdomain.Service
	lineItemSvc       lineitemdomain.Service
}

type ServerParams struct {
	fx.In

	Gin               *gin.Engine
	Log               *zap.Logger
	AuthzSvc          authorization.Service
	AuditSvc          auditdomain.Service
	ProcedureSvc      proceduredomain.Service
	CostSvc           costdomain.Service
	PaymentSvc        paymentdomain.Service
	ReconciliationSvc reconciliationdomain.Service
	LineItemSvc       lineitemdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:            p.Gin,
		log:               p.Log.Named("http.server"),
		authzSvc:          p.AuthzSvc,
		auditSvc:          p.AuditSvc,
		procedureSvc:      p.ProcedureSvc,
		costSvc:           p.CostSvc,
		paymentSvc:        p.PaymentSvc,
		reconciliationSvc: p.ReconciliationSvc,
		lineItemSvc:       p.LineItemSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", s.ActorContext())

	// -------- Procedures --------
	api.GET("/procedures", s.authorize(authorization.ObjectProcedure, authorization.ActionView), s.ListProcedures)
	api.POST("/procedures", s.authorize(authorization.ObjectProcedure, authorization.ActionCreate), s.CreateProcedure)
	api.GET("/procedures/:reference", s.authorize(authorization.ObjectProcedure, authorization.ActionView), s.GetProcedure)
	api.PUT("/procedures/:reference/exchange_rate", s.authorize(authorization.ObjectProcedure, authorization.ActionUpdate), s.SetExchangeRate)
	api.PUT("/procedures/:reference/freight", s.authorize(authorization.ObjectProcedure, authorization.ActionUpdate), s.SetFreight)

	// -------- Costs --------
	api.GET("/procedures/:reference/import_expenses", s.authorize(authorization.ObjectCost, authorization.ActionView), s.ListImportExpenses)
	api.POST("/procedures/:reference/import_expenses", s.authorize(authorization.ObjectCost, authorization.ActionCreate), s.CreateImportExpense)
	api.DELETE("/import_expenses/:id", s.authorize(authorization.ObjectCost, authorization.ActionDelete), s.DeleteImportExpense)
	api.GET("/procedures/:reference/service_invoices", s.authorize(authorization.ObjectCost, authorization.ActionView), s.ListServiceInvoices)
	api.POST("/procedures/:reference/service_invoices", s.authorize(authorization.ObjectCost, authorization.ActionCreate), s.CreateServiceInvoice)
	api.DELETE("/service_invoices/:id", s.authorize(authorization.ObjectCost, authorization.ActionDelete), s.DeleteServiceInvoice)
	api.GET("/procedures/:reference/taxes", s.authorize(authorization.ObjectCost, authorization.ActionView), s.GetTax)
	api.PUT("/procedures/:reference/taxes", s.authorize(authorization.ObjectCost, authorization.ActionUpdate), s.UpsertTax)

	// -------- Payments --------
	api.GET("/procedures/:reference/payments", s.authorize(authorization.ObjectDirectPayment, authorization.ActionView), s.ListDirectPayments)
	api.POST("/procedures/:reference/payments", s.authorize(authorization.ObjectDirectPayment, authorization.ActionCreate), s.CreateDirectPayment)
	api.GET("/incoming_payments", s.authorize(authorization.ObjectIncomingPayment, authorization.ActionView), s.ListIncomingPayments)
	api.POST("/incoming_payments", s.authorize(authorization.ObjectIncomingPayment, authorization.ActionCreate), s.CreateIncomingPayment)
	api.GET("/incoming_payments/:id", s.authorize(authorization.ObjectIncomingPayment, authorization.ActionView), s.GetIncomingPayment)
	api.DELETE("/incoming_payments/:id", s.authorize(authorization.ObjectIncomingPayment, authorization.ActionDelete), s.DeleteIncomingPayment)
	api.POST("/incoming_payments/:id/recompute", s.authorize(authorization.ObjectIncomingPayment, authorization.ActionUpdate), s.RecomputeIncomingPayment)

	// -------- Distributions --------
	api.GET("/payment_distributions", s.authorize(authorization.ObjectDistribution, authorization.ActionView), s.ListDistributions)
	api.POST("/payment_distributions", s.authorize(authorization.ObjectDistribution, authorization.ActionCreate), s.CreateDistribution)
	api.DELETE("/payment_distributions/:id", s.authorize(authorization.ObjectDistribution, authorization.ActionDelete), s.DeleteDistribution)
	api.DELETE("/payment_distributions", s.authorize(authorization.ObjectDistribution, authorization.ActionDistributionReset), s.DeleteAllDistributions)

	// -------- Financial summaries --------
	api.GET("/financial_summaries", s.authorize(authorization.ObjectSummary, authorization.ActionView), s.BatchFinancialSummaries)
	api.GET("/procedures/:reference/financial_summary", s.authorize(authorization.ObjectSummary, authorization.ActionView), s.GetFinancialSummary)

	// -------- Line items --------
	api.GET("/procedures/:reference/line_items", s.authorize(authorization.ObjectLineItem, authorization.ActionView), s.ListLineItems)
	api.POST("/procedures/:reference/line_items", s.authorize(authorization.ObjectLineItem, authorization.ActionCreate), s.CreateLineItems)
	api.GET("/procedures/:reference/line_items/config", s.authorize(authorization.ObjectLineItem, authorization.ActionView), s.GetLineItemsConfig)
	api.PUT("/procedures/:reference/line_items/config", s.authorize(authorization.ObjectLineItem, authorization.ActionUpdate), s.UpsertLineItemsConfig)
	api.POST("/procedures/:reference/line_items/allocate", s.authorize(authorization.ObjectLineItem, authorization.ActionLineItemAllocate), s.AllocateLineItemCosts)

	// -------- Audit --------
	api.GET("/audit_logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
