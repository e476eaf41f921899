package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestReadOnly(t *testing.T) {
	newRouter := func(enabled bool) *gin.Engine {
		r := gin.New()
		r.Use(ReadOnly(enabled))
		ok := func(c *gin.Context) { c.String(http.StatusOK, "OK") }
		r.GET("/api/labels", ok)
		r.POST("/api/labels", ok)
		r.DELETE("/api/labels/1", ok)
		r.POST("/login", ok)
		return r
	}

	tests := []struct {
		name    string
		enabled bool
		method  string
		path    string
		want    int
	}{
		{"disabled allows writes", false, http.MethodPost, "/api/labels", http.StatusOK},
		{"allows reads", true, http.MethodGet, "/api/labels", http.StatusOK},
		{"blocks create", true, http.MethodPost, "/api/labels", http.StatusForbidden},
		{"blocks delete", true, http.MethodDelete, "/api/labels/1", http.StatusForbidden},
		{"allows login", true, http.MethodPost, "/login", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(tt.enabled).ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.Contains(t, w.Body.String(), CodeReadOnly)
			}
		})
	}
}
