// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger. Request metadata
// is scrubbed before it is logged: emails, phone numbers and UUIDs are
// replaced by placeholders, credential headers are masked entirely, and
// credential query parameters (the WebSocket ?token=) are blanked. Bodies
// are never logged.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxQueryLogLength = 2048

// Headers masked regardless of RedactOptions.
var defaultMaskedHeaders = []string{"authorization", "cookie", "set-cookie", "stripe-signature"}

// Query parameters whose values are masked regardless of RedactOptions.
var defaultMaskedParams = []string{"token"}

var (
	// UUIDs go first so the phone pattern cannot eat their digit groups.
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// RedactOptions adds names to the built-in masks. Matching is
// case-insensitive.
type RedactOptions struct {
	MaskHeaders     []string
	MaskQueryParams []string
}

// redactPII replaces identifiers in free text.
func redactPII(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

func lowerSet(base, extra []string) map[string]struct{} {
	out := make(map[string]struct{}, len(base)+len(extra))
	for _, group := range [][]string{base, extra} {
		for _, v := range group {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				out[v] = struct{}{}
			}
		}
	}
	return out
}

// scrubQuery masks listed parameters and redacts PII in the rest.
func scrubQuery(raw string, masked map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return redactPII(truncate(raw, maxQueryLogLength))
	}
	for k := range vals {
		if _, ok := masked[strings.ToLower(k)]; ok {
			vals[k] = []string{"[REDACTED]"}
		}
	}
	dec, err := url.QueryUnescape(vals.Encode())
	if err != nil {
		dec = vals.Encode()
	}
	return redactPII(truncate(dec, maxQueryLogLength))
}

// RedactingLogger logs one line per request and attaches a request-scoped
// logger (request_id, method, path) for LoggerFrom. The level follows the
// outcome: error for 5xx or recorded gin errors, warn for 4xx, info
// otherwise. The user id is read after the handler chain so it reflects Auth.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := lowerSet(defaultMaskedHeaders, opts.MaskHeaders)
	maskParams := lowerSet(defaultMaskedParams, opts.MaskQueryParams)

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		scoped := log.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &scoped)

		safeQuery := scrubQuery(c.Request.URL.RawQuery, maskParams)
		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redactPII(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		ev := scoped.Info()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = scoped.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = scoped.Warn()
		}

		ev.
			Str("user_id", UserID(c)).
			Str("remote_ip", c.ClientIP()).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
