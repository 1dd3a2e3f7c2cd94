package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func NewRouter(h *SessionHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceIDMiddleware())
	r.Use(RequestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		RespondSuccess(c, http.StatusOK, gin.H{"ok": true}, "")
	})

	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r *gin.Engine, h *SessionHandler) {
	sessions := r.Group("/v1/sessions")
	sessions.POST("/:id/messages", h.SendMessage)
	sessions.POST("/:id/messages/stream", h.StreamMessage)
	sessions.GET("/:id/context", h.GetContext)
	sessions.PATCH("/:id/context/:kind", h.PatchContext)
	sessions.GET("/:id/itinerary.ics", h.ExportItinerary)
	sessions.DELETE("/:id", h.ResetContext)
}
