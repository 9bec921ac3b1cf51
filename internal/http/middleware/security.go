// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file hardens responses and requests:
//
//   - SecurityHeaders attaches browser security headers. Responses carry
//     patient data, so API responses are marked no-store; static prefixes
//     such as /uploads can be left cacheable.
//   - BodyLimit caps request bodies with http.MaxBytesReader.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// NoStore adds Cache-Control: no-store (plus Pragma/Expires).
	NoStore bool
	// CacheablePrefixes are path prefixes exempt from NoStore.
	CacheablePrefixes []string
	// EnablePolicy adds Permissions-Policy and
	// X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
}

// SecurityHeaders returns the hardening middleware.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int64(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int64((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.FormatInt(maxAge, 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore && !hasAnyPrefix(c.Request.URL.Path, opt.CacheablePrefixes) {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		// Browser clients need to read these for correlation and replays.
		exposeHeaders(h, requestIDHeader, HeaderIdempotencyReplayed)

		c.Next()
	}
}

// BodyLimit caps the request body at n bytes. Handlers see the cap as a
// read error; oversized bodies with a declared Content-Length are rejected
// up front with 413.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > n {
			abortJSON(c, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

func exposeHeaders(h http.Header, names ...string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	for _, name := range names {
		if strings.Contains(cur, name) {
			continue
		}
		if cur == "" {
			cur = name
		} else {
			cur += ", " + name
		}
	}
	h.Set(hdr, cur)
}

func hasAnyPrefix(p string, prefixes []string) bool {
	for _, pre := range prefixes {
		if pre != "" && strings.HasPrefix(p, pre) {
			return true
		}
	}
	return false
}

// isHTTPS reports whether the request arrived over TLS directly or through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
