// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, a structured access logger that
// scrubs visitor PII from request metadata before it reaches the logs.
//
// Chat widgets routinely carry lead-capture data (emails, phone numbers) in
// query strings and custom headers, and widget session tokens identify a
// visitor across requests. None of that belongs in access logs, so the
// logger:
//   - never logs request or response bodies
//   - rewrites emails, phone numbers, and UUID-shaped identifiers found in
//     the query string or header values
//   - fully masks credential-bearing headers (Authorization, Cookie,
//     Set-Cookie, X-Session-ID, Idempotency-Key, plus any configured extras)
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders: []string{"X-Widget-Token"},
//	}))
//
// Scrubbing lowers, but does not remove, the risk of PII reaching logs;
// widget clients should still avoid putting visitor data in URLs.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures extra scrub behavior for RedactingLogger.
//
// MaskHeaders lists additional header names whose values are replaced with
// "[REDACTED]" wholesale. Matching is case-insensitive and merged with the
// built-in masked set.
type RedactOptions struct {
	MaskHeaders []string
}

// Headers masked unconditionally. Session and idempotency tokens are opaque
// visitor identifiers and must not be correlated through logs.
var builtinMaskedHeaders = []string{
	"authorization",
	"cookie",
	"set-cookie",
	strings.ToLower(HeaderSessionID),
	strings.ToLower(HeaderIdempotencyKey),
}

// RedactingLogger returns a Gin middleware that writes one structured access
// log line per request, with PII-shaped values scrubbed from the query
// string and header values.
//
// Log level follows the response status: INFO below 400, WARN for 4xx,
// ERROR for 5xx.
//
// NOTE: UUIDs are redacted before phone numbers so the phone pattern cannot
// latch onto the digit runs inside a UUID.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	uuidRE := regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE := regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits-only phone shapes: "+1 212-555-1212", "212 555 1212", "(212) 555-1212".
	phoneRE := regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)

	scrub := func(s string) string {
		if s == "" {
			return s
		}
		out := uuidRE.ReplaceAllString(s, "[REDACTED:id]")
		out = emailRE.ReplaceAllString(out, "[REDACTED:email]")
		out = phoneRE.ReplaceAllString(out, "[REDACTED:phone]")
		return out
	}

	masked := make(map[string]struct{}, len(builtinMaskedHeaders)+len(opts.MaskHeaders))
	for _, h := range builtinMaskedHeaders {
		masked[h] = struct{}{}
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := scrub(c.Request.URL.RawQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = scrub(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()

		reqID := c.Writer.Header().Get("X-Request-ID")
		if reqID == "" {
			reqID = c.GetHeader("X-Request-ID")
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
