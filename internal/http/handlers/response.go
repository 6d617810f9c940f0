// Package handlers provides the HTTP handlers of the discussions API.
//
// This file defines the response envelope shared by every endpoint and the
// single place where service errors become HTTP statuses.
//
// Success:
//
//	HTTP/1.1 201 Created
//	{"success": true, "message": "Discussion created", "data": {...}}
//
// Failure:
//
//	HTTP/1.1 403 Forbidden
//	{"success": false, "error": "Forbidden", "code": "forbidden", "requestId": "..."}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/lecture-discussions/internal/http/middleware"
	"github.com/tbourn/lecture-discussions/internal/services"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:"Discussion created"`
	Data    any    `json:"data,omitempty"`
	// Error is a human-readable message, safe to show to users.
	Error string `json:"error,omitempty" example:"Forbidden"`
	// Code is stable and machine-readable (see errors.go).
	Code string `json:"code,omitempty" example:"forbidden"`
	// RequestID echoes X-Request-ID to correlate client errors with logs.
	RequestID string `json:"requestId,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// fail aborts with an error envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, Envelope{
		Success:   false,
		Error:     msg,
		Code:      code,
		RequestID: middleware.RequestIDFrom(c),
	})
}

// Fail is the exported variant of fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success envelope.
func ok(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, Envelope{Success: true, Message: msg, Data: data})
}

// respondError maps the service error taxonomy onto HTTP. Unknown errors
// become a generic 500; their cause is logged, never returned.
func respondError(c *gin.Context, err error) {
	var (
		ve *services.ValidationError
		ae *services.AuthorizationError
	)
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeValidation, ve.Error())
	case errors.As(err, &ae):
		fail(c, http.StatusForbidden, ErrCodeForbidden, ae.Error())
	case errors.Is(err, services.ErrReplyNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Reply not found")
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Discussion not found")
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
