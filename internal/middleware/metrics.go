package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/school-events-gateway/pkg/errors"
	"github.com/noah-isme/school-events-gateway/pkg/response"
)

type requestObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// Metrics returns middleware that records request metrics. Unmatched routes are
// grouped under one label to keep cardinality bounded.
func Metrics(observer requestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if observer == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		observer.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// Session returns the viewer's cookie header, which is forwarded to the backend.
func Session(c *gin.Context) string {
	return c.GetHeader("Cookie")
}

// NoRoute answers unmatched routes with the common error envelope status.
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
		c.Abort()
	}
}
