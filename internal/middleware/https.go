package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireHTTPS redirects plain-HTTP requests seen by the proxy in front of
// the server. It is a no-op outside production.
func RequireHTTPS(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if production && c.GetHeader("X-Forwarded-Proto") != "https" {
			c.Redirect(http.StatusFound, "https://"+c.Request.Host+c.Request.URL.RequestURI())
			c.Abort()
			return
		}
		c.Next()
	}
}
