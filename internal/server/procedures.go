package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	proceduredomain "github.com/smallbiznis/customsledger/internal/procedure/domain"
	"github.com/smallbiznis/customsledger/pkg/db/pagination"
)

type createProcedureRequest struct {
	Reference      string           `json:"reference"`
	Amount         decimal.Decimal  `json:"amount"`
	Currency       string           `json:"currency"`
	USDToLocalRate *decimal.Decimal `json:"usd_to_local_rate"`
	FreightAmount  *decimal.Decimal `json:"freight_amount"`
}

type setExchangeRateRequest struct {
	USDToLocalRate decimal.Decimal `json:"usd_to_local_rate"`
}

type setFreightRequest struct {
	FreightAmount *decimal.Decimal `json:"freight_amount"`
}

func (s *Server) CreateProcedure(c *gin.Context) {
	var req createProcedureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.procedureSvc.Create(c.Request.Context(), proceduredomain.CreateProcedureRequest{
		Reference:      strings.TrimSpace(req.Reference),
		Amount:         req.Amount,
		Currency:       strings.TrimSpace(req.Currency),
		USDToLocalRate: req.USDToLocalRate,
		FreightAmount:  req.FreightAmount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListProcedures(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.procedureSvc.List(c.Request.Context(), proceduredomain.ListProcedureRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Procedures, "page_info": resp.PageInfo})
}

func (s *Server) GetProcedure(c *gin.Context) {
	resp, err := s.procedureSvc.Get(c.Request.Context(), pathReference(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetExchangeRate(c *gin.Context) {
	var req setExchangeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.procedureSvc.SetExchangeRate(c.Request.Context(), pathReference(c), req.USDToLocalRate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetFreight(c *gin.Context) {
	var req setFreightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.procedureSvc.SetFreight(c.Request.Context(), pathReference(c), req.FreightAmount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
