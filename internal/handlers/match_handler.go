package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoice-reconciliation-backend/internal/services/matches"
)

type MatchHandler struct {
	service *matches.Service
}

func NewMatchHandler(service *matches.Service) *MatchHandler {
	return &MatchHandler{service: service}
}

func (h *MatchHandler) Confirm(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match ID"})
		return
	}

	match, err := h.service.Confirm(c.Request.Context(), tenant, id, c.GetHeader("X-User"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

func (h *MatchHandler) Reject(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match ID"})
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	// Body is optional for rejections
	_ = c.ShouldBindJSON(&payload)

	match, err := h.service.Reject(c.Request.Context(), tenant, id, c.GetHeader("X-User"), payload.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

func (h *MatchHandler) Get(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match ID"})
		return
	}

	match, err := h.service.Get(c.Request.Context(), tenant, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match)
}
