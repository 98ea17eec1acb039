package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionKeyHeader carries the anonymous cart identity between client and server
const SessionKeyHeader = "X-Session-Key"

// SessionKey returns the anonymous session key sent by the client, or "" when absent or malformed
func SessionKey(c *gin.Context) string {
	key := c.GetHeader(SessionKeyHeader)
	if _, err := uuid.Parse(key); err != nil {
		return ""
	}
	return key
}

// EnsureSessionKey returns the client's session key, issuing a new one when missing.
// The key is echoed in the response header so the client can keep it.
func EnsureSessionKey(c *gin.Context) string {
	key := SessionKey(c)
	if key == "" {
		key = uuid.NewString()
	}
	c.Header(SessionKeyHeader, key)
	return key
}
