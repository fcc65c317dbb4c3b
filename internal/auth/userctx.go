package auth

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	HeaderUserID = "X-User-Id"
	CtxUserID    = "user_id"
)

// WithUser reads the acting user's id from the X-User-Id header, which the
// fronting gateway sets after authenticating the caller. A missing or
// malformed header leaves the request anonymous (user id 0).
func WithUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		var uid int64
		if raw := strings.TrimSpace(c.GetHeader(HeaderUserID)); raw != "" {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
				uid = n
			}
		}

		c.Set(CtxUserID, uid)
		c.Next()
	}
}

// UserID returns the acting user's id, or 0 for anonymous requests.
func UserID(c *gin.Context) int64 {
	return c.GetInt64(CtxUserID)
}
