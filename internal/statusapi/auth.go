package statusapi

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates bearer tokens against GRAVELPIT_API_TOKEN. If
// the variable is unset, all requests are allowed — the development
// default — since this surface is read-only and fails open rather than
// closed; a warning is logged at startup when GIN_MODE is "release".
func AuthMiddleware() gin.HandlerFunc {
	token := os.Getenv("GRAVELPIT_API_TOKEN")

	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("[StatusAPI] WARNING: GRAVELPIT_API_TOKEN is not set in release mode; " +
			"the status endpoints are publicly readable")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed Authorization header"})
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
