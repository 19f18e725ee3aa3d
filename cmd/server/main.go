package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtslogistics/pricing-agent/internal/api"
	"github.com/dtslogistics/pricing-agent/internal/api/handlers"
	"github.com/dtslogistics/pricing-agent/internal/bootstrap"
	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/logging"
	"github.com/dtslogistics/pricing-agent/internal/metrics"
	"github.com/dtslogistics/pricing-agent/internal/middleware"
	"github.com/dtslogistics/pricing-agent/internal/services"
	"github.com/dtslogistics/pricing-agent/internal/telemetry"
)

func main() {
	if len(os.Args) > 2 && os.Args[1] == "hash-key" {
		if err := runHashKey(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "hash-key failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func runHashKey(key string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return hashKey(os.Stdout, key, cfg.Security.BcryptCost)
}

// hashKey prints the bcrypt hash to put in security.api_key_hashes.
func hashKey(w io.Writer, key string, cost int) error {
	hash, err := middleware.HashAPIKey(key, cost)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = telemetry.ServiceName
	}
	version := cfg.Telemetry.ServiceVersion
	if version == "" {
		version = telemetry.ServiceVersion
	}

	// Structured event logger; exports through OTLP when telemetry is on
	var events *logging.StandardLogger
	if cfg.Telemetry.Enabled {
		events = logging.NewStandardOTLPLogger(logging.OTLPConfig{
			Enabled:        true,
			Endpoint:       cfg.Telemetry.OTLPEndpoint,
			ServiceName:    serviceName,
			ServiceVersion: version,
			Environment:    cfg.Environment,
			LogLevel:       cfg.LogLevel,
		})
	} else {
		events = logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = events.Shutdown(ctx)
	}()

	// Initialize telemetry first
	provider, err := telemetry.InitTelemetryWithProvider(context.Background(), &telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		SampleRate:     1.0,
		LogLevel:       cfg.LogLevel,
		Stdout:         cfg.Telemetry.Enabled && cfg.Telemetry.OTLPEndpoint == "" && cfg.Environment == "development",
	}, events.Logger())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown telemetry: %v\n", err)
		}
	}()

	// logrus for the domain services
	logrusLogger := logging.NewLogrus(cfg.LogLevel)
	recorder := metrics.New(prometheus.DefaultRegisterer)

	components, err := bootstrap.Connect(cfg, recorder, logrusLogger)
	if err != nil {
		return err
	}
	defer components.Close()

	source, err := components.LookupSource()
	if err != nil {
		return fmt.Errorf("failed to configure lookup source: %w", err)
	}
	store := services.NewLookupStore(source, components.Timeouts, recorder, logrusLogger)
	store.OnRefresh(func(name string, records int, took time.Duration, err error) {
		events.LogLookupRefresh(name, records, took.Milliseconds(), err)
	})
	// A failed first load is not fatal: /health reports 503 and
	// /api/v1/unity/refresh can retry.
	if err := store.Refresh(context.Background()); err != nil {
		logrusLogger.WithError(err).Error("Initial lookup table load failed")
	}
	store.StartAutoRefresh(config.Duration(cfg.Lookup.RefreshInterval, 24*time.Hour))
	defer store.Stop()

	analysis, err := components.AnalysisService(time.Now)
	if err != nil {
		return fmt.Errorf("failed to build analysis service: %w", err)
	}

	audit := services.NewAuditService(components.AuditSinks(), components.Timeouts, recorder, logrusLogger)
	defer audit.Wait()
	logrusLogger.WithField("sinks", audit.Sinks()).Info("Audit sinks configured")

	monitor := services.NewResourceMonitor(services.ResourceMonitorConfig{}, components.Timeouts, logrusLogger)
	monitor.Start()
	defer monitor.Stop()

	checks := make(map[string]handlers.HealthChecker)
	for name, check := range components.HealthChecks() {
		checks[name] = check
	}

	analyzeHandler := handlers.NewAnalyzeHandler(handlers.AnalyzeDeps{
		Analyzer: analysis,
		Lookup:   store,
		Audit:    audit,
		Notifier: components.Notifier(),
		AI:       components.Recommender(),
		Events:   events,
	}, logrusLogger, time.Now)
	defer analyzeHandler.Wait()

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	api.SetupRoutes(router, api.RouterDeps{
		ServiceName: serviceName,
		Analyze:     analyzeHandler,
		System: handlers.NewSystemHandler(handlers.SystemDeps{
			Name:      serviceName,
			Version:   version,
			Lookup:    store,
			Checks:    checks,
			Resources: monitor,
			Breakers:  components.Recovery.Breakers(),
			Quotes:    components.Quotes,
			Pricing:   cfg.Pricing,
			LookupCfg: cfg.Lookup,
		}, time.Now),
		Auth:           middleware.NewAuthMiddleware(cfg.Security.JWTSecret, cfg.Security.APIKeyHashes),
		RateLimiter:    middleware.NewRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateBurst),
		Logger:         events,
		Metrics:        recorder,
		Gatherer:       prometheus.DefaultGatherer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	// Create HTTP server with security timeouts. Analyses call several
	// providers, so the write timeout is generous.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       config.Duration(cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout:      config.Duration(cfg.Server.WriteTimeout, 120*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		events.LogStartup(serviceName, version, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		events.LogShutdown(serviceName, "signal received: "+sig.String())
	case err := <-serverErr:
		events.LogShutdown(serviceName, "server error")
		return fmt.Errorf("failed to start server: %w", err)
	}

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logrusLogger.Info("Server exited gracefully")
	return nil
}
