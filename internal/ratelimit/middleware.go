package ratelimit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// emailPeekLimit caps how much of a request body is buffered to find the email.
const emailPeekLimit = 16 << 10

// Middleware throttles requests per client IP for one endpoint group.
// Limiter failures let the request through.
func (m *Manager) Middleware(group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.admit(c, group, m.Allow, KeyForClient(group, c.ClientIP())) {
			return
		}
		c.Next()
	}
}

// EmailMiddleware throttles per email address named in the JSON body, on top
// of the per-IP limit of the enclosing group. The body is restored for the
// handler. A body without an email passes through.
func (m *Manager) EmailMiddleware(group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if email := peekEmail(c); email != "" {
			if !m.admit(c, group, m.AllowEmail, KeyForEmail(group, email)) {
				return
			}
		}
		c.Next()
	}
}

// admit runs one check and aborts the request when it is over the limit.
func (m *Manager) admit(c *gin.Context, group string, check func(ctx context.Context, key string) (Result, error), key string) bool {
	result, errAllow := check(c.Request.Context(), key)
	if errAllow != nil {
		log.WithError(errAllow).WithField("group", group).Warn("rate limit: check failed")
		return true
	}
	if result.Allowed {
		if !result.Reset.IsZero() {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		return true
	}

	retryAfter := 1
	if m != nil && !result.Reset.IsZero() {
		if seconds := int(math.Ceil(result.Reset.Sub(m.now()).Seconds())); seconds > retryAfter {
			retryAfter = seconds
		}
	}
	metrics.RateLimited(group)
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	respond.Abort(c, apperr.ErrRateLimited.With("retry_after_seconds", retryAfter))
	return false
}

// peekEmail reads the "email" field of a JSON body and puts the bytes back.
func peekEmail(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	head, errRead := io.ReadAll(io.LimitReader(c.Request.Body, emailPeekLimit))
	c.Request.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(head), c.Request.Body), Closer: c.Request.Body}
	if errRead != nil || len(head) == 0 {
		return ""
	}
	var body struct {
		Email string `json:"email"`
	}
	if errDecode := json.Unmarshal(head, &body); errDecode != nil {
		return ""
	}
	return body.Email
}

type readCloser struct {
	io.Reader
	io.Closer
}
