package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	orchestrator "github.com/tanpawarit/Chative-Trip-Planner/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/export"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/merge"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

// Machine-readable error reasons.
const (
	ReasonInvalidRequest   = "invalid_request"
	ReasonInvalidSession   = "invalid_session"
	ReasonInvalidMessage   = "invalid_message"
	ReasonInvalidPatch     = "invalid_patch"
	ReasonNotFound         = "session_not_found"
	ReasonNothingToExport  = "nothing_to_export"
	ReasonModelError       = "model_error"
	ReasonStoreUnavailable = "store_unavailable"
	ReasonCancelled        = "request_cancelled"
	ReasonInternal         = "internal_error"
)

type APIResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func RespondSuccess(c *gin.Context, code int, data any, message string) {
	c.JSON(code, APIResponse{
		Status:  "success",
		Code:    code,
		Message: message,
		TraceID: c.GetString(traceIDKey),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, reason, message string) {
	c.AbortWithStatusJSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Reason:  reason,
		Message: message,
		TraceID: c.GetString(traceIDKey),
	})
}

// HandleServiceError maps orchestrator errors to HTTP responses.
func HandleServiceError(c *gin.Context, err error) {
	code, reason, message := classifyError(err)
	if code >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("trace_id", c.GetString(traceIDKey)).
			Str("session_id", c.Param("id")).
			Str("reason", reason).
			Msg("request_failed")
	}
	RespondError(c, code, reason, message)
}

func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, statex.ErrInvalidSession):
		return http.StatusBadRequest, ReasonInvalidSession, "Session id is required"
	case errors.Is(err, contractx.ErrInvalidMessage):
		return http.StatusBadRequest, ReasonInvalidMessage, "Message must not be empty"
	case errors.Is(err, merge.ErrInvalidPatch):
		return http.StatusBadRequest, ReasonInvalidPatch, err.Error()
	case errors.Is(err, contractx.ErrValidation):
		return http.StatusBadRequest, ReasonInvalidRequest, err.Error()
	case errors.Is(err, orchestrator.ErrSessionNotFound):
		return http.StatusNotFound, ReasonNotFound, "Session not found"
	case errors.Is(err, export.ErrNothingToExport):
		return http.StatusConflict, ReasonNothingToExport, "Itinerary has no dated days yet"
	case errors.Is(err, contractx.ErrModelInvoke), errors.Is(err, contractx.ErrSchemaViolation), errors.Is(err, contractx.ErrPromptMissing):
		return http.StatusBadGateway, ReasonModelError, "The assistant could not answer, please retry"
	case errors.Is(err, statex.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ReasonStoreUnavailable, "Session storage is unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ReasonCancelled, "Request was cancelled"
	default:
		return http.StatusInternalServerError, ReasonInternal, "Internal server error"
	}
}
