// Package handlers implements the widget-facing HTTP endpoints.
//
// This file holds the response helpers every endpoint goes through. Widget
// clients are generated code that switches on the `code` field, so failures
// always carry the ErrorResponse envelope with a stable machine-readable
// code, and `fail()` centralizes that plus server-error logging. `ok()`
// keeps success responses uniform.
//
// A failed message post looks like:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "resource not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatforge/go-chatbot-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by every endpoint. It is
// referenced from the Swagger annotations on each handler.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with the error envelope at the given status.
// Server-side errors (>= 500) are additionally logged through the
// request-scoped logger so they carry the correlation fields.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail, for callers outside this package
// (router fallbacks and the like).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON at the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
