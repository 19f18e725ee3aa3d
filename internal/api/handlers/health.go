package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtslogistics/pricing-agent/internal/cache"
	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/services"
)

// HealthChecker pings one backing store.
type HealthChecker func(ctx context.Context) error

// ResourceReporter exposes the latest host sample.
type ResourceReporter interface {
	Latest() (services.ResourceSnapshot, bool)
	Healthy() bool
}

// LookupStatus reports the historical table on health and root responses.
type LookupStatus struct {
	Loaded    bool       `json:"loaded"`
	Records   int        `json:"records"`
	LoadedAt  *time.Time `json:"loaded_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type HealthResponse struct {
	Status     string                                  `json:"status"`
	Timestamp  time.Time                               `json:"timestamp"`
	Version    string                                  `json:"version"`
	Uptime     string                                  `json:"uptime"`
	Lookup     LookupStatus                            `json:"lookup"`
	Services   map[string]string                       `json:"services"`
	Providers  map[string]services.CircuitBreakerStats `json:"providers,omitempty"`
	QuoteCache *cache.QuoteCacheStats                  `json:"quote_cache,omitempty"`
	System     *services.ResourceSnapshot              `json:"system,omitempty"`
}

// SystemHandler serves the service index, health and configuration
// endpoints.
type SystemHandler struct {
	name      string
	version   string
	lookup    LookupTables
	checks    map[string]HealthChecker
	resources ResourceReporter
	breakers  *services.CircuitBreakerManager
	quotes    *cache.QuoteCache
	pricing   config.PricingConfig
	lookupCfg config.LookupConfig
	started   time.Time
	now       func() time.Time
}

// SystemDeps configures SystemHandler. Checks, Resources, Breakers and
// Quotes are optional.
type SystemDeps struct {
	Name      string
	Version   string
	Lookup    LookupTables
	Checks    map[string]HealthChecker
	Resources ResourceReporter
	Breakers  *services.CircuitBreakerManager
	Quotes    *cache.QuoteCache
	Pricing   config.PricingConfig
	LookupCfg config.LookupConfig
}

func NewSystemHandler(deps SystemDeps, now func() time.Time) *SystemHandler {
	if now == nil {
		now = time.Now
	}
	return &SystemHandler{
		name:      deps.Name,
		version:   deps.Version,
		lookup:    deps.Lookup,
		checks:    deps.Checks,
		resources: deps.Resources,
		breakers:  deps.Breakers,
		quotes:    deps.Quotes,
		pricing:   deps.Pricing,
		lookupCfg: deps.LookupCfg,
		started:   now(),
		now:       now,
	}
}

func (h *SystemHandler) lookupStatus() LookupStatus {
	st := LookupStatus{
		Loaded:    h.lookup.Loaded(),
		Records:   h.lookup.Records(),
		LastError: h.lookup.LastError(),
	}
	if at := h.lookup.LoadedAt(); !at.IsZero() {
		st.LoadedAt = &at
	}
	return st
}

// Root handles GET /.
func (h *SystemHandler) Root(c *gin.Context) {
	st := h.lookupStatus()
	c.JSON(http.StatusOK, gin.H{
		"service": h.name,
		"version": h.version,
		"status":  "running",
		"endpoints": gin.H{
			"health":  "GET /health",
			"analyze": "POST /api/v1/analyze",
			"refresh": "GET /api/v1/unity/refresh",
			"config":  "GET /api/v1/config",
			"metrics": "GET /metrics",
		},
		"lookup_loaded":  st.Loaded,
		"lookup_records": st.Records,
	})
}

// Health handles GET /health. It is 503 until the lookup table is loaded or
// when a configured backing store is down, and degraded while a provider
// breaker is open or the host is over its limits.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC(),
		Version:   h.version,
		Uptime:    h.now().Sub(h.started).Round(time.Second).String(),
		Lookup:    h.lookupStatus(),
		Services:  make(map[string]string, len(h.checks)+1),
	}

	if resp.Lookup.Loaded {
		resp.Services["lookup"] = "healthy"
	} else {
		resp.Status = "unhealthy"
		resp.Services["lookup"] = "unhealthy: " + services.ErrLookupNotLoaded.Error()
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Services[name] = "unhealthy: " + err.Error()
		} else {
			resp.Services[name] = "healthy"
		}
	}

	if h.breakers != nil {
		resp.Providers = h.breakers.AllStats()
		for _, st := range resp.Providers {
			if st.State == services.Open.String() && resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		}
	}
	if h.quotes != nil {
		st := h.quotes.Stats()
		resp.QuoteCache = &st
	}

	if h.resources != nil {
		if snap, ok := h.resources.Latest(); ok {
			resp.System = &snap
		}
		if !h.resources.Healthy() && resp.Status == "healthy" {
			resp.Status = "degraded"
		}
	}

	code := http.StatusOK
	if resp.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// Config handles GET /api/v1/config. Only pricing policy and lookup
// settings are exposed; credentials never leave the process.
func (h *SystemHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pricing": h.pricing,
		"lookup": gin.H{
			"source":           h.lookupCfg.Source,
			"refresh_interval": h.lookupCfg.RefreshInterval,
		},
		"version": h.version,
	})
}
