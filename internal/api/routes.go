package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/dtslogistics/pricing-agent/internal/api/handlers"
	"github.com/dtslogistics/pricing-agent/internal/logging"
	"github.com/dtslogistics/pricing-agent/internal/metrics"
	"github.com/dtslogistics/pricing-agent/internal/middleware"
)

// RouterDeps carries everything SetupRoutes wires into the engine.
type RouterDeps struct {
	ServiceName    string
	Analyze        *handlers.AnalyzeHandler
	System         *handlers.SystemHandler
	Auth           *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	Logger         *logging.StandardLogger
	Metrics        *metrics.Recorder
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

// SetupRoutes configures the HTTP surface: public service endpoints and the
// authenticated /api/v1 pricing routes.
func SetupRoutes(router *gin.Engine, deps RouterDeps) {
	if deps.ServiceName != "" {
		router.Use(otelgin.Middleware(deps.ServiceName))
	}
	router.Use(middleware.RequestTelemetry(deps.Logger, deps.Metrics))
	router.Use(middleware.CORS(deps.AllowedOrigins))

	router.GET("/", deps.System.Root)
	router.GET("/health", deps.System.Health)
	router.HEAD("/health", deps.System.Health)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/config", deps.System.Config)

		secured := v1.Group("")
		secured.Use(deps.Auth.RequireAuth())
		if deps.RateLimiter != nil {
			secured.Use(deps.RateLimiter.Middleware())
		}
		{
			secured.POST("/analyze", deps.Analyze.Analyze)
			secured.GET("/unity/refresh",
				middleware.RequireRole(middleware.RoleAdmin, middleware.RoleService),
				deps.Analyze.RefreshLookup,
			)
		}
	}
}
