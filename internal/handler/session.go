package handler

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gin-gonic/gin"
)

const (
	anonymousScope       = "anonymous"
	defaultSessionCookie = "session"
)

// sessionScope derives a stable guard namespace from the backend session cookie
// without storing the cookie itself. Other cookies do not affect the scope.
func sessionScope(c *gin.Context, cookieName string) string {
	value, err := c.Cookie(cookieName)
	if err != nil || value == "" {
		return anonymousScope
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:8])
}
