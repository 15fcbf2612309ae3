package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/raisedeck/accesslink/internal/domain/access"
	accessrec "github.com/raisedeck/accesslink/internal/service/accessrec"
)

// AccessHandler serves the validation/access endpoints.
type AccessHandler struct {
	Access *accessrec.Service
	logger *zap.Logger
}

// NewAccessHandler creates the handler set.
func NewAccessHandler(svc *accessrec.Service, logger *zap.Logger) *AccessHandler {
	return &AccessHandler{Access: svc, logger: logger}
}

// Get returns the access record for a founder, defaults included.
func (h *AccessHandler) Get(c *gin.Context) {
	rec, err := h.Access.Get(c.Request.Context(), c.Param("uid"))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, recordResponse(rec))
}

// Save applies recognized fields from the JSON body and returns the stored
// record.
func (h *AccessHandler) Save(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Body must be a JSON object."})
		return
	}
	rec, err := h.Access.Save(c.Request.Context(), c.Param("uid"), fields)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, recordResponse(rec))
}

func recordResponse(rec access.AccessRecord) gin.H {
	return gin.H{
		"uid":          rec.UID,
		"access_sc":    rec.SourceControl,
		"access_ci":    rec.CICD,
		"access_other": rec.Other,
		"access_notes": rec.Notes,
		"created_at":   timeOrNil(rec.CreatedAt),
		"updated_at":   timeOrNil(rec.UpdatedAt),
	}
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// respondServiceError maps domain errors onto the single JSON error shape.
func respondServiceError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, access.ErrInvalidRequest), errors.Is(err, access.ErrInvalidState):
		logger.Warn("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
	case errors.Is(err, access.ErrProviderNotFound):
		logger.Warn("provider not found", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "provider_not_found", "error_description": "Unknown provider."})
	case errors.Is(err, access.ErrNotConfigured):
		logger.Error("provider not configured", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "provider_not_configured", "error_description": "Provider credentials are not configured."})
	default:
		logger.Error("service failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
	}
}
