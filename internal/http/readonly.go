package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ReadOnly blocks write operations when enabled, so a published dataset
// can be browsed and exported but not changed. GET, HEAD and OPTIONS
// always pass, as do authentication paths.
func ReadOnly(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if isReadOnlyAllowed(c.Request.URL.Path) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Error: "the dataset is read-only",
			Code:  CodeReadOnly,
		})
	}
}

func isReadOnlyAllowed(path string) bool {
	for _, allowed := range []string{"/login", "/logout", "/setup", "/auth/"} {
		if strings.HasPrefix(path, allowed) {
			return true
		}
	}
	return false
}
