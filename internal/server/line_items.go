package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	lineitemdomain "github.com/smallbiznis/customsledger/internal/lineitem/domain"
)

type createLineItemsRequest struct {
	Items []lineitemdomain.CreateLineItemRequest `json:"items"`
}

type upsertLineItemsConfigRequest struct {
	DistributionMethod string `json:"distribution_method"`
}

func (s *Server) CreateLineItems(c *gin.Context) {
	var req createLineItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Items) == 0 {
		AbortWithError(c, newValidationError("items", "invalid_items", "at least one item is required"))
		return
	}

	resp, err := s.lineItemSvc.CreateLineItems(c.Request.Context(), pathReference(c), req.Items)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLineItems(c *gin.Context) {
	resp, err := s.lineItemSvc.ListLineItems(c.Request.Context(), pathReference(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLineItemsConfig(c *gin.Context) {
	resp, err := s.lineItemSvc.GetConfig(c.Request.Context(), pathReference(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpsertLineItemsConfig(c *gin.Context) {
	var req upsertLineItemsConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.lineItemSvc.UpsertConfig(c.Request.Context(), pathReference(c), strings.TrimSpace(req.DistributionMethod))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AllocateLineItemCosts(c *gin.Context) {
	resp, err := s.lineItemSvc.AllocateLineItemCosts(c.Request.Context(), pathReference(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
