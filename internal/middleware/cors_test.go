package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		wantCode    int
		wantAllowed string
	}{
		{"no origin header", []string{"https://desk.example.com"}, http.MethodGet, "", http.StatusOK, ""},
		{"allowed origin", []string{"https://desk.example.com/"}, http.MethodGet, "https://desk.example.com", http.StatusOK, "https://desk.example.com"},
		{"unknown origin", []string{"https://desk.example.com"}, http.MethodGet, "https://evil.example.com", http.StatusOK, ""},
		{"wildcard", []string{"*"}, http.MethodGet, "https://any.example.com", http.StatusOK, "https://any.example.com"},
		{"preflight allowed", []string{"https://desk.example.com"}, http.MethodOptions, "https://desk.example.com", http.StatusNoContent, "https://desk.example.com"},
		{"preflight rejected", []string{"https://desk.example.com"}, http.MethodOptions, "https://evil.example.com", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			router := gin.New()
			router.Use(CORS(tt.allowed))
			router.GET("/api/v1/config", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/api/v1/config", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantAllowed, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
