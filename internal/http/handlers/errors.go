package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/konsul-app/konsul-backend/internal/channels"
	"github.com/konsul-app/konsul-backend/internal/services"
)

// Error codes returned in ErrorResponse.Code. Generic codes mirror the HTTP
// status; the rest name a domain failure clients can branch on.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInvalidTrigger   = "invalid_trigger"
	ErrCodeInvalidPayload   = "invalid_payload"
	ErrCodeInvalidSignature = "invalid_signature"
	ErrCodeNoChannel        = "channel_not_found"
	ErrCodeDuplicate        = "duplicate_delivery"
	ErrCodeListFailed       = "list_failed"
	ErrCodeCreateFailed     = "create_failed"
)

// failService maps a service error onto the envelope. Validation errors keep
// their message; unexpected errors are reported generically and logged.
func failService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrAgentNotFound),
		errors.Is(err, services.ErrIntentNotFound),
		errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrChannelNotFound):
		fail(c, http.StatusNotFound, ErrCodeNoChannel, err.Error())
	case errors.Is(err, services.ErrInvalidTrigger):
		fail(c, http.StatusBadRequest, ErrCodeInvalidTrigger, err.Error())
	case errors.Is(err, services.ErrInvalidIntent),
		errors.Is(err, services.ErrInvalidChannel),
		errors.Is(err, services.ErrInvalidAgent),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrDuplicateIntent),
		errors.Is(err, services.ErrDuplicateChannel):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrDuplicateDelivery):
		fail(c, http.StatusConflict, ErrCodeDuplicate, err.Error())
	case errors.Is(err, channels.ErrUnsupported):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}
