package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoice-reconciliation-backend/internal/apperrors"
)

// respondError maps application error codes to HTTP status codes. Engine
// failures arrive here unmodified; this is the only place that knows about
// protocol statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeConflict:
		status = http.StatusConflict
	case apperrors.CodeValidation:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return uuid.Nil, false
	}
	return id, true
}
