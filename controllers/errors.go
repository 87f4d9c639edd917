package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"manuscript-workflow-api/services"
)

// Error codes returned in the "code" field of error responses.
const (
	codeNotFound           = "not_found"
	codeForbidden          = "forbidden"
	codeInvalidTransition  = "invalid_transition"
	codePendingReviews     = "pending_reviews"
	codeConflict           = "conflict"
	codeValidation         = "validation_failed"
	codeScoreGate          = "score_gate_failed"
	codeNotificationFailed = "notification_failed"
	codeBadRequest         = "bad_request"
	codeInternal           = "internal_error"
)

// statusFor classifies a service error into an HTTP status and error code.
func statusFor(err error) (int, string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, codeValidation
	case errors.Is(err, services.ErrManuscriptNotFound), errors.Is(err, services.ErrStaffNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, codeInvalidTransition
	case errors.Is(err, services.ErrPendingReviews):
		return http.StatusConflict, codePendingReviews
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrDuplicateFileCode):
		return http.StatusConflict, codeConflict
	case errors.Is(err, services.ErrScoreGateFailed):
		return http.StatusUnprocessableEntity, codeScoreGate
	case errors.Is(err, services.ErrNotificationFailed):
		return http.StatusBadGateway, codeNotificationFailed
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// respondError writes the JSON error body for err. Internal errors are
// recorded on the context for the request logger and not echoed back.
func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	body := gin.H{"error": err.Error(), "code": code}

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		body["error"] = "Internal server error"
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": codeBadRequest})
}
