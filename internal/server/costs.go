package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	costdomain "github.com/smallbiznis/customsledger/internal/cost/domain"
)

func (s *Server) CreateImportExpense(c *gin.Context) {
	var req costdomain.CreateCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.costSvc.CreateImportExpense(c.Request.Context(), pathReference(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListImportExpenses(c *gin.Context) {
	resp, err := s.costSvc.ListImportExpenses(c.Request.Context(), pathReference(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteImportExpense(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	deleted, err := s.costSvc.DeleteImportExpense(c.Request.Context(), id)
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

func (s *Server) CreateServiceInvoice(c *gin.Context) {
	var req costdomain.CreateCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.costSvc.CreateServiceInvoice(c.Request.Context(), pathReference(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListServiceInvoices(c *gin.Context) {
	resp, err := s.costSvc.ListServiceInvoices(c.Request.Context(), pathReference(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteServiceInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	deleted, err := s.costSvc.DeleteServiceInvoice(c.Request.Context(), id)
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

func (s *Server) UpsertTax(c *gin.Context) {
	var req costdomain.UpsertTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.costSvc.UpsertTax(c.Request.Context(), pathReference(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTax(c *gin.Context) {
	resp, err := s.costSvc.GetTax(c.Request.Context(), pathReference(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
