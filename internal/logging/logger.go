package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Business event types emitted through LogBusinessEvent.
const (
	EventAnalysisCompleted = "analysis_completed"
	EventAnalysisFailed    = "analysis_failed"
	EventLookupRefreshed   = "lookup_refreshed"
	EventAlertSent         = "alert_sent"
)

// Logger interface defines the structured event methods used at the edges of
// the service (HTTP, startup, background refresh). Domain services log
// through logrus.
type Logger interface {
	WithService(serviceName string) *slog.Logger
	WithComponent(componentName string) *slog.Logger
	WithRequestID(requestID string) *slog.Logger
	WithAnalysisID(analysisID string) *slog.Logger
	WithProvider(provider string) *slog.Logger
	WithLane(origin, destination string) *slog.Logger
	WithError(err error) *slog.Logger
	LogStartup(serviceName string, version string, port int)
	LogShutdown(serviceName string, reason string)
	LogAPIRequest(method string, path string, statusCode int, duration int64, caller string)
	LogLookupRefresh(source string, records int, duration int64, err error)
	LogBusinessEvent(eventType string, details map[string]interface{})
	Logger() *slog.Logger
}

// StandardLogger provides a standardized logging interface
type StandardLogger struct {
	logger   Logger
	shutdown func(context.Context) error
}

// NewStandardLogger creates a logger writing to stdout: key=value text in
// development, JSON everywhere else.
func NewStandardLogger(logLevel string, environment string) *StandardLogger {
	return newStandardLoggerTo(os.Stdout, logLevel, environment)
}

func newStandardLoggerTo(w io.Writer, logLevel string, environment string) *StandardLogger {
	opts := &slog.HandlerOptions{Level: getSlogLevel(logLevel)}
	var handler slog.Handler
	if strings.EqualFold(environment, "development") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &StandardLogger{logger: &slogLogger{logger: slog.New(handler)}}
}

// NewStandardOTLPLogger creates a logger exporting through OTLP. It falls
// back to JSON on stdout when the exporter cannot be built.
func NewStandardOTLPLogger(config OTLPConfig) *StandardLogger {
	otlpLogger, err := NewOTLPLogger(config)
	if err != nil {
		basic := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: getSlogLevel(config.LogLevel),
		}))
		basic.Warn("OTLP log exporter unavailable, logging to stdout", "error", err.Error())
		return &StandardLogger{logger: &slogLogger{logger: basic}}
	}
	return &StandardLogger{
		logger:   &slogLogger{logger: otlpLogger.Logger()},
		shutdown: otlpLogger.Shutdown,
	}
}

// SetLogger sets the underlying logger implementation
func (l *StandardLogger) SetLogger(logger Logger) {
	l.logger = logger
}

// Shutdown flushes the OTLP exporter, if one is attached.
func (l *StandardLogger) Shutdown(ctx context.Context) error {
	if l.shutdown == nil {
		return nil
	}
	return l.shutdown(ctx)
}

func (l *StandardLogger) WithService(serviceName string) *slog.Logger {
	return l.logger.WithService(serviceName)
}

func (l *StandardLogger) WithComponent(componentName string) *slog.Logger {
	return l.logger.WithComponent(componentName)
}

func (l *StandardLogger) WithRequestID(requestID string) *slog.Logger {
	return l.logger.WithRequestID(requestID)
}

// WithAnalysisID tags records with the analysis they belong to.
func (l *StandardLogger) WithAnalysisID(analysisID string) *slog.Logger {
	return l.logger.WithAnalysisID(analysisID)
}

func (l *StandardLogger) WithProvider(provider string) *slog.Logger {
	return l.logger.WithProvider(provider)
}

// WithLane tags records with "City, ST" origin and destination.
func (l *StandardLogger) WithLane(origin, destination string) *slog.Logger {
	return l.logger.WithLane(origin, destination)
}

func (l *StandardLogger) WithError(err error) *slog.Logger {
	return l.logger.WithError(err)
}

// LogStartup logs application startup information
func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.logger.LogStartup(serviceName, version, port)
}

// LogShutdown logs application shutdown information
func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.logger.LogShutdown(serviceName, reason)
}

// LogAPIRequest logs API requests in a standardized format
func (l *StandardLogger) LogAPIRequest(method string, path string, statusCode int, duration int64, caller string) {
	l.logger.LogAPIRequest(method, path, statusCode, duration, caller)
}

// LogLookupRefresh logs the outcome of a lookup table load.
func (l *StandardLogger) LogLookupRefresh(source string, records int, duration int64, err error) {
	l.logger.LogLookupRefresh(source, records, duration, err)
}

// LogBusinessEvent logs business events in a standardized format
func (l *StandardLogger) LogBusinessEvent(eventType string, details map[string]interface{}) {
	l.logger.LogBusinessEvent(eventType, details)
}

// Logger returns the underlying *slog.Logger
func (l *StandardLogger) Logger() *slog.Logger {
	return l.logger.Logger()
}

// getSlogLevel converts string level to slog.Level
func getSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogrusLevel converts string level to logrus.Level
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// NewLogrus builds the JSON logrus logger injected into the domain services.
func NewLogrus(level string) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(ParseLogrusLevel(level))
	l.SetFormatter(&logrus.JSONFormatter{})
	return l
}

// slogLogger implements Logger on top of a *slog.Logger; the handler decides
// whether records go to stdout or the OTLP exporter.
type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger adapts an existing *slog.Logger, mainly for tests that need
// to capture output.
func NewSlogLogger(logger *slog.Logger) Logger {
	return &slogLogger{logger: logger}
}

func (s *slogLogger) WithService(serviceName string) *slog.Logger {
	return s.logger.With("service", serviceName)
}

func (s *slogLogger) WithComponent(componentName string) *slog.Logger {
	return s.logger.With("component", componentName)
}

func (s *slogLogger) WithRequestID(requestID string) *slog.Logger {
	return s.logger.With("request_id", requestID)
}

func (s *slogLogger) WithAnalysisID(analysisID string) *slog.Logger {
	return s.logger.With("analysis_id", analysisID)
}

func (s *slogLogger) WithProvider(provider string) *slog.Logger {
	return s.logger.With("provider", provider)
}

func (s *slogLogger) WithLane(origin, destination string) *slog.Logger {
	return s.logger.With("origin", origin, "destination", destination)
}

func (s *slogLogger) WithError(err error) *slog.Logger {
	if err == nil {
		return s.logger
	}
	return s.logger.With("error", err.Error())
}

func (s *slogLogger) LogStartup(serviceName string, version string, port int) {
	s.logger.Info("Service starting",
		"event", "startup",
		"service", serviceName,
		"version", version,
		"port", port,
	)
}

func (s *slogLogger) LogShutdown(serviceName string, reason string) {
	s.logger.Info("Service shutting down",
		"event", "shutdown",
		"service", serviceName,
		"reason", reason,
	)
}

func (s *slogLogger) LogAPIRequest(method string, path string, statusCode int, duration int64, caller string) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, "API request",
		"event", "api_request",
		"method", method,
		"path", path,
		"status_code", statusCode,
		"duration_ms", duration,
		"caller", caller,
	)
}

func (s *slogLogger) LogLookupRefresh(source string, records int, duration int64, err error) {
	if err != nil {
		s.logger.Error("Lookup refresh failed",
			"event", EventLookupRefreshed,
			"source", source,
			"duration_ms", duration,
			"error", err.Error(),
		)
		return
	}
	s.logger.Info("Lookup table refreshed",
		"event", EventLookupRefreshed,
		"source", source,
		"records", records,
		"duration_ms", duration,
	)
}

func (s *slogLogger) LogBusinessEvent(eventType string, details map[string]interface{}) {
	fields := []interface{}{
		"event", "business_event",
		"type", eventType,
	}
	for k, v := range details {
		fields = append(fields, k, v)
	}
	s.logger.Info("Business event", fields...)
}

func (s *slogLogger) Logger() *slog.Logger {
	return s.logger
}
