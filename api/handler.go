// Package api exposes the trip orchestrator over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	orchestrator "github.com/tanpawarit/Chative-Trip-Planner/agent/agents/orchestrator"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

// Service is the part of the orchestrator the HTTP layer needs.
type Service interface {
	SendMessage(ctx context.Context, req orchestrator.SendRequest) (orchestrator.TurnResult, error)
	StreamMessage(ctx context.Context, req orchestrator.SendRequest, onChunk func(string) error) (orchestrator.TurnResult, error)
	GetContext(ctx context.Context, sessionID string) (orchestrator.ContextView, error)
	ResetContext(ctx context.Context, sessionID string) error
	ApplyPatch(ctx context.Context, sessionID, kind string, raw []byte) (orchestrator.PatchResult, error)
	ExportItinerary(ctx context.Context, sessionID string) (string, error)
}

var _ Service = (*orchestrator.Orchestrator)(nil)

type SessionHandler struct {
	svc Service
}

func NewSessionHandler(svc Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type sendMessageRequest struct {
	Message  string          `json:"message" binding:"required"`
	UserInfo statex.UserInfo `json:"user_info"`
}

func (h *SessionHandler) bindSend(c *gin.Context) (orchestrator.SendRequest, bool) {
	var body sendMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, ReasonInvalidRequest, "Body must be JSON with a non-empty message")
		return orchestrator.SendRequest{}, false
	}
	return orchestrator.SendRequest{
		SessionID: c.Param("id"),
		Message:   body.Message,
		UserInfo:  body.UserInfo,
	}, true
}

// SendMessage handles POST /v1/sessions/:id/messages.
func (h *SessionHandler) SendMessage(c *gin.Context) {
	req, ok := h.bindSend(c)
	if !ok {
		return
	}
	res, err := h.svc.SendMessage(c.Request.Context(), req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	RespondSuccess(c, http.StatusOK, res, "")
}

// StreamMessage handles POST /v1/sessions/:id/messages/stream. The reply is
// sent as token events followed by one done event with the full result.
func (h *SessionHandler) StreamMessage(c *gin.Context) {
	req, ok := h.bindSend(c)
	if !ok {
		return
	}

	started := false
	res, err := h.svc.StreamMessage(c.Request.Context(), req, func(chunk string) error {
		if !started {
			started = true
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Status(http.StatusOK)
		}
		c.SSEvent("token", gin.H{"text": chunk})
		c.Writer.Flush()
		return c.Request.Context().Err()
	})
	if err != nil {
		if !started {
			HandleServiceError(c, err)
			return
		}
		code, reason, message := classifyError(err)
		c.SSEvent("error", APIResponse{Status: "error", Code: code, Reason: reason, Message: message, TraceID: c.GetString(traceIDKey)})
		c.Writer.Flush()
		return
	}

	if !started {
		c.Header("Content-Type", "text/event-stream")
		c.Status(http.StatusOK)
	}
	c.SSEvent("done", APIResponse{Status: "success", Code: http.StatusOK, TraceID: c.GetString(traceIDKey), Data: res})
	c.Writer.Flush()
}

// GetContext handles GET /v1/sessions/:id/context.
func (h *SessionHandler) GetContext(c *gin.Context) {
	view, err := h.svc.GetContext(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	RespondSuccess(c, http.StatusOK, view, "")
}

// PatchContext handles PATCH /v1/sessions/:id/context/:kind.
func (h *SessionHandler) PatchContext(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		RespondError(c, http.StatusBadRequest, ReasonInvalidRequest, "Unable to read request body")
		return
	}
	res, err := h.svc.ApplyPatch(c.Request.Context(), c.Param("id"), c.Param("kind"), raw)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	RespondSuccess(c, http.StatusOK, res, "")
}

// ResetContext handles DELETE /v1/sessions/:id.
func (h *SessionHandler) ResetContext(c *gin.Context) {
	if err := h.svc.ResetContext(c.Request.Context(), c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportItinerary handles GET /v1/sessions/:id/itinerary.ics.
func (h *SessionHandler) ExportItinerary(c *gin.Context) {
	sessionID := c.Param("id")
	cal, err := h.svc.ExportItinerary(c.Request.Context(), sessionID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, safeFileName(sessionID)))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(cal))
}

func safeFileName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "itinerary"
	}
	return s
}
