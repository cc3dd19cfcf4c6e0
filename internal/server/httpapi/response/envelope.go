// Package response writes the JSON envelope shared by every endpoint and
// maps service errors to HTTP statuses.
package response

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/dmitrijs2005/villagekeeper/internal/logging"
	"github.com/gin-gonic/gin"
)

type Envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func OK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Message: message, Data: data})
}

// StatusFor maps err to a status code and a client-safe message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrPartialRegistration):
		return http.StatusBadGateway, "identity provider error"
	case common.IsAuthError(err):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrDuplicateAccount):
		return http.StatusConflict, "account already exists"
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "identity provider unavailable"
	case errors.Is(err, common.ErrUpstreamRejected):
		return http.StatusBadGateway, "identity provider error"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// Error aborts the request with the mapped status. The full error is only
// logged.
func Error(c *gin.Context, logger logging.Logger, err error) {
	status, msg := StatusFor(err)
	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		logger.Debug(ctx, "request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, Envelope{Error: true, Message: msg})
}
