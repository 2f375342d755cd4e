package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/customsledger/internal/payment/domain"
	"github.com/smallbiznis/customsledger/pkg/db/pagination"
)

func (s *Server) CreateIncomingPayment(c *gin.Context) {
	var req paymentdomain.CreateIncomingPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.CreateIncomingPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListIncomingPayments(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.ListIncomingPayments(c.Request.Context(), paymentdomain.ListIncomingPaymentRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Status: strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.IncomingPayments, "page_info": resp.PageInfo})
}

func (s *Server) GetIncomingPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.paymentSvc.GetIncomingPayment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteIncomingPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.paymentSvc.DeleteIncomingPayment(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) RecomputeIncomingPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.paymentSvc.RecomputeStatus(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateDistribution(c *gin.Context) {
	var req paymentdomain.CreateDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.CreateDistribution(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDistributions(c *gin.Context) {
	var query struct {
		IncomingPaymentID  string `form:"incoming_payment_id"`
		ProcedureReference string `form:"procedure_reference"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paymentID, err := parseOptionalSnowflakeID(query.IncomingPaymentID)
	if err != nil {
		AbortWithError(c, newValidationError("incoming_payment_id", "invalid_incoming_payment_id", "invalid incoming_payment_id"))
		return
	}

	req := paymentdomain.ListDistributionsRequest{
		ProcedureReference: strings.TrimSpace(query.ProcedureReference),
	}
	if paymentID != nil {
		req.IncomingPaymentID = *paymentID
	}

	resp, err := s.paymentSvc.ListDistributions(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteDistribution(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	deleted, err := s.paymentSvc.DeleteDistribution(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !deleted {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteAllDistributions wipes every distribution. The caller must pass
// confirm=true.
func (s *Server) DeleteAllDistributions(c *gin.Context) {
	confirm, err := parseOptionalBool(c.Query("confirm"))
	if err != nil || confirm == nil || !*confirm {
		AbortWithError(c, newValidationError("confirm", "confirmation_required", "confirm=true is required"))
		return
	}

	resp, err := s.paymentSvc.DeleteAllDistributions(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateDirectPayment(c *gin.Context) {
	var req paymentdomain.CreateDirectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.CreateDirectPayment(c.Request.Context(), pathReference(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDirectPayments(c *gin.Context) {
	resp, err := s.paymentSvc.ListDirectPayments(c.Request.Context(), pathReference(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
