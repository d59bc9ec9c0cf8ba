package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newCORSRouter(config CORSConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(config))
	r.GET("/trips", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
		wantCreds  string
	}{
		{"wildcard echoes origin", nil, http.MethodGet, "https://agent.example", http.StatusOK, "https://agent.example", "true"},
		{"no origin header", nil, http.MethodGet, "", http.StatusOK, "*", ""},
		{"allowed origin", []string{"https://agent.example"}, http.MethodGet, "https://agent.example", http.StatusOK, "https://agent.example", "true"},
		{"unknown origin gets no headers", []string{"https://agent.example"}, http.MethodGet, "https://evil.example", http.StatusOK, "", ""},
		{"preflight", nil, http.MethodOptions, "https://agent.example", http.StatusNoContent, "https://agent.example", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newCORSRouter(DefaultCORSConfig(tt.origins...))
			req := httptest.NewRequest(tt.method, "/trips", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
			if tt.wantOrigin != "" {
				assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}
