package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtslogistics/pricing-agent/internal/api/handlers"
	"github.com/dtslogistics/pricing-agent/internal/api/handlers/testmocks"
	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/metrics"
	"github.com/dtslogistics/pricing-agent/internal/middleware"
)

const (
	testSecret = "routes-test-secret"
	testAPIKey = "svc-key-routes"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *middleware.AuthMiddleware) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := middleware.HashAPIKey(testAPIKey, bcrypt.MinCost)
	require.NoError(t, err)
	auth := middleware.NewAuthMiddleware(testSecret, []string{hash})

	lookup := &testmocks.MockLookupTables{}
	lookup.On("Loaded").Return(true)
	lookup.On("Records").Return(10)
	lookup.On("LoadedAt").Return(time.Now())
	lookup.On("LastError").Return("")
	lookup.On("RefreshAsync").Return(true)

	reg := prometheus.NewRegistry()
	router := gin.New()
	SetupRoutes(router, RouterDeps{
		Analyze: handlers.NewAnalyzeHandler(handlers.AnalyzeDeps{
			Analyzer: &testmocks.MockAnalyzer{},
			Lookup:   lookup,
		}, nil, nil),
		System: handlers.NewSystemHandler(handlers.SystemDeps{
			Name:    "pricing-agent",
			Version: "1.0.0",
			Lookup:  lookup,
			Pricing: config.DefaultPricing(),
		}, nil),
		Auth:        auth,
		RateLimiter: middleware.NewRateLimiter(100, 100),
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
	})
	return router, auth
}

func TestSetupRoutes_PublicEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{"root", http.MethodGet, "/", http.StatusOK, `"service":"pricing-agent"`},
		{"health", http.MethodGet, "/health", http.StatusOK, `"status":"healthy"`},
		{"health head", http.MethodHead, "/health", http.StatusOK, ""},
		{"config", http.MethodGet, "/api/v1/config", http.StatusOK, `"pricing"`},
		{"unknown", http.MethodGet, "/api/v1/quotes", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestSetupRoutes_Metrics(t *testing.T) {
	router, _ := setupTestRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestSetupRoutes_SecuredEndpoints(t *testing.T) {
	router, auth := setupTestRouter(t)

	analystToken, err := auth.GenerateToken("jdoe", middleware.RoleAnalyst, time.Hour)
	require.NoError(t, err)
	adminToken, err := auth.GenerateToken("ops", middleware.RoleAdmin, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		method   string
		path     string
		headers  map[string]string
		wantCode int
	}{
		{"analyze without credentials", http.MethodPost, "/api/v1/analyze", nil, http.StatusUnauthorized},
		// an empty body reaches the handler and fails validation
		{"analyze with api key", http.MethodPost, "/api/v1/analyze", map[string]string{"X-API-Key": testAPIKey}, http.StatusBadRequest},
		{"analyze with analyst token", http.MethodPost, "/api/v1/analyze", map[string]string{"Authorization": "Bearer " + analystToken}, http.StatusBadRequest},
		{"refresh without credentials", http.MethodGet, "/api/v1/unity/refresh", nil, http.StatusUnauthorized},
		{"refresh as analyst", http.MethodGet, "/api/v1/unity/refresh", map[string]string{"Authorization": "Bearer " + analystToken}, http.StatusForbidden},
		{"refresh as admin", http.MethodGet, "/api/v1/unity/refresh", map[string]string{"Authorization": "Bearer " + adminToken}, http.StatusOK},
		{"refresh with api key", http.MethodGet, "/api/v1/unity/refresh", map[string]string{"X-API-Key": testAPIKey}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			req.Header.Set("Content-Type", "application/json")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestSetupRoutes_RateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash, err := middleware.HashAPIKey(testAPIKey, bcrypt.MinCost)
	require.NoError(t, err)

	lookup := &testmocks.MockLookupTables{}
	lookup.On("RefreshAsync").Return(false)

	router := gin.New()
	SetupRoutes(router, RouterDeps{
		Analyze:     handlers.NewAnalyzeHandler(handlers.AnalyzeDeps{Lookup: lookup}, nil, nil),
		System:      handlers.NewSystemHandler(handlers.SystemDeps{Lookup: lookup}, nil),
		Auth:        middleware.NewAuthMiddleware(testSecret, []string{hash}),
		RateLimiter: middleware.NewRateLimiter(0.001, 1),
		Gatherer:    prometheus.NewRegistry(),
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/unity/refresh", nil)
		req.Header.Set("X-API-Key", testAPIKey)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
