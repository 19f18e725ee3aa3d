package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtslogistics/pricing-agent/internal/api/handlers/testmocks"
	"github.com/dtslogistics/pricing-agent/internal/cache"
	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/services"
)

func loadedLookup(loaded bool) *testmocks.MockLookupTables {
	m := &testmocks.MockLookupTables{}
	m.On("Loaded").Return(loaded)
	if loaded {
		m.On("Records").Return(1250)
		m.On("LoadedAt").Return(fixedNow.Add(-time.Hour))
		m.On("LastError").Return("")
	} else {
		m.On("Records").Return(0)
		m.On("LoadedAt").Return(time.Time{})
		m.On("LastError").Return("open lookup.csv: no such file or directory")
	}
	return m
}

func systemRouter(deps SystemDeps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSystemHandler(deps, func() time.Time { return fixedNow })
	router := gin.New()
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/api/v1/config", h.Config)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestSystemHandler_Root(t *testing.T) {
	router := systemRouter(SystemDeps{Name: "pricing-agent", Version: "1.0.0", Lookup: loadedLookup(true)})

	w := get(router, "/")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "pricing-agent", body["service"])
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, true, body["lookup_loaded"])
	assert.Equal(t, float64(1250), body["lookup_records"])
	assert.Contains(t, body["endpoints"], "analyze")
}

func TestSystemHandler_Health(t *testing.T) {
	okCheck := func(context.Context) error { return nil }
	downCheck := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name         string
		loaded       bool
		checks       map[string]HealthChecker
		hostHealthy  bool
		wantCode     int
		wantStatus   string
		wantServices map[string]string
	}{
		{
			name:         "all healthy",
			loaded:       true,
			checks:       map[string]HealthChecker{"database": okCheck, "redis": okCheck},
			hostHealthy:  true,
			wantCode:     http.StatusOK,
			wantStatus:   "healthy",
			wantServices: map[string]string{"lookup": "healthy", "database": "healthy", "redis": "healthy"},
		},
		{
			name:         "lookup missing",
			loaded:       false,
			hostHealthy:  true,
			wantCode:     http.StatusServiceUnavailable,
			wantStatus:   "unhealthy",
			wantServices: map[string]string{"lookup": "unhealthy: lookup table not loaded"},
		},
		{
			name:         "redis down",
			loaded:       true,
			checks:       map[string]HealthChecker{"redis": downCheck},
			hostHealthy:  true,
			wantCode:     http.StatusServiceUnavailable,
			wantStatus:   "unhealthy",
			wantServices: map[string]string{"lookup": "healthy", "redis": "unhealthy: connection refused"},
		},
		{
			name:         "host over limits",
			loaded:       true,
			hostHealthy:  false,
			wantCode:     http.StatusOK,
			wantStatus:   "degraded",
			wantServices: map[string]string{"lookup": "healthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resources := &testmocks.MockResourceReporter{}
			resources.On("Latest").Return(services.ResourceSnapshot{CPUUsage: 12.5, Goroutines: 40}, true)
			resources.On("Healthy").Return(tt.hostHealthy)

			router := systemRouter(SystemDeps{
				Name:      "pricing-agent",
				Version:   "1.0.0",
				Lookup:    loadedLookup(tt.loaded),
				Checks:    tt.checks,
				Resources: resources,
			})

			w := get(router, "/health")

			require.Equal(t, tt.wantCode, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantServices, resp.Services)
			assert.Equal(t, tt.loaded, resp.Lookup.Loaded)
			require.NotNil(t, resp.System)
			assert.Equal(t, 12.5, resp.System.CPUUsage)
			if !tt.loaded {
				assert.Nil(t, resp.Lookup.LoadedAt)
				assert.NotEmpty(t, resp.Lookup.LastError)
			}
		})
	}
}

func TestSystemHandler_HealthWithoutMonitor(t *testing.T) {
	router := systemRouter(SystemDeps{Lookup: loadedLookup(true)})

	w := get(router, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"system"`)
	assert.NotContains(t, w.Body.String(), `"providers"`)
	assert.NotContains(t, w.Body.String(), `"quote_cache"`)
}

func TestSystemHandler_HealthReportsProviders(t *testing.T) {
	breakers := services.NewCircuitBreakerManager(nil)
	breakers.GetOrCreate(cache.ProviderGreenScreens, services.CircuitBreakerConfig{})
	dat := breakers.GetOrCreate(cache.ProviderDAT, services.CircuitBreakerConfig{FailureThreshold: 1})
	_ = dat.Execute(context.Background(), func(context.Context) error { return errors.New("502 bad gateway") })

	router := systemRouter(SystemDeps{
		Lookup:   loadedLookup(true),
		Breakers: breakers,
		Quotes:   cache.NewQuoteCache(nil, time.Minute, nil),
	})

	w := get(router, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	require.Len(t, resp.Providers, 2)
	assert.Equal(t, "open", resp.Providers[cache.ProviderDAT].State)
	assert.Equal(t, int64(1), resp.Providers[cache.ProviderDAT].FailedRequests)
	assert.Equal(t, "closed", resp.Providers[cache.ProviderGreenScreens].State)
	require.NotNil(t, resp.QuoteCache)
	assert.Equal(t, cache.QuoteCacheStats{}, *resp.QuoteCache)
}

func TestSystemHandler_Config(t *testing.T) {
	pricing := config.DefaultPricing()
	router := systemRouter(SystemDeps{
		Version: "1.0.0",
		Lookup:  loadedLookup(true),
		Pricing: pricing,
		LookupCfg: config.LookupConfig{
			Source:          config.LookupSourceFile,
			FilePath:        "/secret/path/lookup.csv",
			RefreshInterval: "6h",
		},
	})

	w := get(router, "/api/v1/config")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Pricing config.PricingConfig   `json:"pricing"`
		Lookup  map[string]interface{} `json:"lookup"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, pricing.Hotshot.WeightThreshold, body.Pricing.Hotshot.WeightThreshold)
	assert.Len(t, body.Pricing.Negotiation.Tiers, len(pricing.Negotiation.Tiers))
	assert.Equal(t, config.LookupSourceFile, body.Lookup["source"])
	assert.NotContains(t, w.Body.String(), "/secret/path")
}
