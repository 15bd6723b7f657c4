// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's anonymous identity. There are no accounts
// and no credentials: a client mints an opaque identity once (a UUID kept in
// its local state directory) and presents it on every request via the
// X-User-ID header. The middleware validates presence and shape, then stores
// the id in the Gin context for handlers, logging, and rate limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderUserID carries the caller's anonymous identity.
	HeaderUserID = "X-User-ID"

	// ctxKeyUserID is the Gin context key under which the identity is stored.
	ctxKeyUserID = "userID"

	// maxIdentityLen bounds the accepted identity length. Client identities
	// are UUIDs (36 chars); the bound leaves headroom without letting the
	// header act as a payload channel.
	maxIdentityLen = 128
)

// Identity extracts the anonymous identity from the X-User-ID header and
// stores it under the "userID" context key.
//
// When required is true, a missing or malformed header aborts the request
// with 401 and the standard error envelope. When false, the request proceeds
// without an identity (used for public endpoints such as group lookup).
func Identity(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if id != "" && len(id) <= maxIdentityLen && !strings.ContainsAny(id, " \t\r\n") {
			c.Set(ctxKeyUserID, id)
			c.Next()
			return
		}
		if !required {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "unauthorized",
			"message":    "X-User-ID header required",
		})
	}
}

// UserID returns the identity resolved by Identity(), or "" when absent.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
