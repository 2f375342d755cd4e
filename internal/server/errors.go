package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/customsledger/internal/audit/domain"
	"github.com/smallbiznis/customsledger/internal/authorization"
	costdomain "github.com/smallbiznis/customsledger/internal/cost/domain"
	lineitemdomain "github.com/smallbiznis/customsledger/internal/lineitem/domain"
	paymentdomain "github.com/smallbiznis/customsledger/internal/payment/domain"
	proceduredomain "github.com/smallbiznis/customsledger/internal/procedure/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
	// Count is set when an incoming payment cannot be deleted because
	// distributions still reference it.
	Count *int64 `json:"count,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var hasDist *paymentdomain.HasDistributionsError
	if errors.As(err, &hasDist) {
		count := hasDist.Count
		return http.StatusConflict, errorPayload{
			Type:    paymentdomain.ErrHasDistributions.Error(),
			Message: "incoming payment still has distributions",
			Count:   &count,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    err.Error(),
			Message: conflictMessage(err),
		}
	case errors.Is(err, lineitemdomain.ErrMissingRate),
		errors.Is(err, lineitemdomain.ErrNoLineItems):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    err.Error(),
			Message: preconditionMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code recorded on the
// request log line.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", payload.Type
	case status == http.StatusBadRequest:
		if len(payload.Errors) > 0 {
			return "validation", payload.Errors[0].Code
		}
		return "validation", payload.Type
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "auth", payload.Type
	case status == http.StatusNotFound:
		return "not_found", err.Error()
	default:
		return "client", payload.Type
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isProcedureValidationError(err),
		isCostValidationError(err),
		isPaymentValidationError(err),
		isLineItemValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isProcedureValidationError(err error) bool {
	switch {
	case errors.Is(err, proceduredomain.ErrInvalidReference),
		errors.Is(err, proceduredomain.ErrInvalidAmount),
		errors.Is(err, proceduredomain.ErrInvalidCurrency),
		errors.Is(err, proceduredomain.ErrInvalidRate),
		errors.Is(err, proceduredomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isCostValidationError(err error) bool {
	switch {
	case errors.Is(err, costdomain.ErrInvalidAmount),
		errors.Is(err, costdomain.ErrInvalidCategory),
		errors.Is(err, costdomain.ErrInvalidCurrency):
		return true
	default:
		return false
	}
}

func isPaymentValidationError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidPaymentType),
		errors.Is(err, paymentdomain.ErrInvalidPaymentID),
		errors.Is(err, paymentdomain.ErrInvalidPayerName),
		errors.Is(err, paymentdomain.ErrInvalidCurrency),
		errors.Is(err, paymentdomain.ErrInvalidStatus),
		errors.Is(err, paymentdomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isLineItemValidationError(err error) bool {
	switch {
	case errors.Is(err, lineitemdomain.ErrInvalidDistributionMethod),
		errors.Is(err, lineitemdomain.ErrInvalidQuantity),
		errors.Is(err, lineitemdomain.ErrInvalidPrice),
		errors.Is(err, lineitemdomain.ErrInvalidDescription):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrDuplicatePaymentID),
		errors.Is(err, paymentdomain.ErrConcurrentModification),
		errors.Is(err, proceduredomain.ErrDuplicateReference),
		errors.Is(err, lineitemdomain.ErrAllocationInProgress):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, paymentdomain.ErrDuplicatePaymentID):
		return "payment id already exists"
	case errors.Is(err, proceduredomain.ErrDuplicateReference):
		return "procedure reference already exists"
	case errors.Is(err, lineitemdomain.ErrAllocationInProgress):
		return "cost allocation already running for this procedure"
	default:
		return "resource was modified concurrently, retry"
	}
}

func preconditionMessage(err error) string {
	if errors.Is(err, lineitemdomain.ErrMissingRate) {
		return "procedure has no usd to local exchange rate"
	}
	return "procedure has no line items"
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, proceduredomain.ErrProcedureNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
