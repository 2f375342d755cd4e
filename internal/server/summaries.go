package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetFinancialSummary always answers 200 with a summary unless strict=true is
// passed, in which case lookup and aggregation failures surface as errors.
func (s *Server) GetFinancialSummary(c *gin.Context) {
	strict, err := parseOptionalBool(c.Query("strict"))
	if err != nil {
		AbortWithError(c, newValidationError("strict", "invalid_strict", "invalid strict"))
		return
	}

	reference := pathReference(c)
	if strict != nil && *strict {
		summary, err := s.reconciliationSvc.CalculateFinancialSummary(c.Request.Context(), reference)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": summary})
		return
	}

	result := s.reconciliationSvc.FinancialSummary(c.Request.Context(), reference)
	c.JSON(http.StatusOK, gin.H{"data": result.Summary, "status": result.Status, "error": result.Error})
}

func (s *Server) BatchFinancialSummaries(c *gin.Context) {
	resp, err := s.reconciliationSvc.BatchFinancialSummaries(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
