// Package handlers implements the HTTP endpoints of the telehealth API.
//
// Every failure is written as an ErrorResponse with a stable code:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "Report not found"
//	}
//
// Successful calls return the resource itself, or {"msg": "..."} for
// actions without one.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-telehealth-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope shared by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
	// Upstream error text, when one is worth surfacing
	Detail string `json:"detail,omitempty" example:"upstream returned 500"`
}

func fail(c *gin.Context, status int, code, msg string) {
	failDetail(c, status, code, msg, "")
}

// failDetail aborts with an ErrorResponse. Server errors are also logged
// through the request-scoped logger so they carry the request id.
func failDetail(c *gin.Context, status int, code, msg, detail string) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().Int("status", status).Str("code", code)
		if detail != "" {
			ev = ev.Str("detail", detail)
		}
		ev.Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
		Detail:    detail,
	})
}

// Fail writes an ErrorResponse; the router uses it for 404/405 fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

// notModified sets etag and reports whether If-None-Match (a single value
// or a comma-separated list) matched it, in which case 304 was written.
func notModified(c *gin.Context, etag string) bool {
	if etag == "" {
		return false
	}
	c.Header("ETag", etag)
	for _, v := range strings.Split(c.GetHeader("If-None-Match"), ",") {
		if strings.TrimSpace(v) == etag {
			c.Status(http.StatusNotModified)
			return true
		}
	}
	return false
}
