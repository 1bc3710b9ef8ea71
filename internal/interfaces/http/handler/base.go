package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/syncbridge/backend/internal/interfaces/http/dto"
)

// Error codes surfaced in the response envelope.
const (
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeSyncFailed = "SYNC_FAILED"
	ErrCodeUpstream   = "UPSTREAM_ERROR"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.NewErrorResponse(ErrCodeBadRequest, message))
}

// InternalError sends a 500 response carrying the failure detail. Webhook
// senders retry on 5xx, so the detail is for their delivery logs.
func (h *BaseHandler) InternalError(c *gin.Context, code string, err error) {
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(code, err.Error()))
}
