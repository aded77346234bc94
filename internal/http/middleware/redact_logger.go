// Package middleware contains the Gin middleware shared by the dashboard API,
// the provider webhooks and the webchat endpoints.
//
// This file provides RedactingLogger, a drop-in replacement for Logger on
// routes that carry personal data. Webhook deliveries and webchat posts hold
// phone numbers, emails and verify tokens, so the access log masks them:
//
//	r.Use(middleware.RequestID(), middleware.RedactingLogger(middleware.RedactOptions{}), middleware.Recovery())
//
// Request and response bodies are never logged.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedactOptions adds headers and query parameters to the built-in masks.
type RedactOptions struct {
	MaskHeaders []string
	MaskParams  []string
}

// UUIDs go first so the phone pattern cannot eat their digit groups.
var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

func redactPII(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger logs like Logger but scrubs emails, phone numbers and UUIDs
// from the query and headers, masks credentials (Authorization, cookies, the
// Meta signature header) and blanks secret query parameters such as
// hub.verify_token. Bodies are never logged.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization":       {},
		"cookie":              {},
		"set-cookie":          {},
		"x-hub-signature-256": {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}
	maskParams := map[string]struct{}{
		"hub.verify_token": {},
		"access_token":     {},
	}
	for _, p := range opts.MaskParams {
		if p = strings.TrimSpace(p); p != "" {
			maskParams[p] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := routePath(c)
		query := truncate(redactQuery(c.Request.URL.RawQuery, maskParams), maxQueryLogLength)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redactPII(strings.Join(vv, ", "))
		}

		l := log.With().
			Str("request_id", requestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		attachLogger(c, &l)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev.
			Str("workspace_id", c.GetString(workspaceKey)).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// redactQuery masks the listed parameters entirely and scrubs PII from the
// remaining values.
func redactQuery(raw string, mask map[string]struct{}) string {
	if raw == "" {
		return raw
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return redactPII(raw)
	}
	for k, vv := range q {
		for i := range vv {
			if _, ok := mask[k]; ok {
				vv[i] = "[REDACTED]"
			} else {
				vv[i] = redactPII(vv[i])
			}
		}
	}
	return q.Encode()
}
