package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessTracer provides spans for pricing operations: whole analyses,
// market data provider calls, lookup refreshes, audit writes and alerts.
type BusinessTracer struct {
	tracer trace.Tracer
}

// NewBusinessTracer creates a new instance of BusinessTracer.
func NewBusinessTracer() *BusinessTracer {
	return &BusinessTracer{tracer: GetBusinessTracer()}
}

// TraceAnalysis starts a span covering one pricing analysis.
//
// Parameters:
//   - ctx: The parent context.
//   - equipment: The requested equipment type.
//   - stops: The number of stops on the load.
//
// Returns:
//   - A context containing the new span.
//   - The created span.
func (bt *BusinessTracer) TraceAnalysis(ctx context.Context, equipment string, stops int) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "pricing_analysis",
		trace.WithAttributes(
			attribute.String("pricing.equipment", equipment),
			attribute.Int("pricing.stops", stops),
		))
}

// RecordAnalysisResult adds the outcome of an analysis to its span.
func (bt *BusinessTracer) RecordAnalysisResult(span trace.Span, summary AnalysisSummary) {
	span.SetAttributes(
		attribute.String("pricing.analysis_id", summary.ID),
		attribute.String("pricing.load_type", summary.LoadType),
		attribute.String("pricing.final_rating", summary.FinalRating),
		attribute.Int("pricing.combined_confidence", summary.CombinedConfidence),
		attribute.Float64("pricing.suggested_price", summary.SuggestedPrice),
		attribute.Float64("pricing.miles_used", summary.MilesUsed),
		attribute.Bool("pricing.has_dat", summary.HasDAT),
		attribute.Bool("pricing.has_greenscreens", summary.HasGreenScreens),
	)
	span.SetStatus(codes.Ok, summary.FinalRating)
}

// TraceProviderCall starts a client span for an external market data call.
//
// Parameters:
//   - ctx: The parent context.
//   - provider: The provider name, e.g. "dat" or "greenscreens".
//   - operation: The call being made.
func (bt *BusinessTracer) TraceProviderCall(ctx context.Context, provider, operation string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, provider+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.name", provider),
			attribute.String("provider.operation", operation),
		))
}

// RecordProviderResult ends the bookkeeping for a provider call. A nil err
// marks the span successful.
func (bt *BusinessTracer) RecordProviderResult(span trace.Span, attempts int, err error) {
	span.SetAttributes(attribute.Int("provider.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// TraceLookupLoad starts a span for a lookup table refresh.
func (bt *BusinessTracer) TraceLookupLoad(ctx context.Context, source string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "lookup_load",
		trace.WithAttributes(attribute.String("lookup.source", source)))
}

// RecordLookupResult records the size of a refreshed table.
func (bt *BusinessTracer) RecordLookupResult(span trace.Span, records int, err error) {
	span.SetAttributes(attribute.Int("lookup.records", records))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// TraceAudit starts a span for an audit write to one sink.
func (bt *BusinessTracer) TraceAudit(ctx context.Context, sink, analysisID string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "audit_write",
		trace.WithAttributes(
			attribute.String("audit.sink", sink),
			attribute.String("pricing.analysis_id", analysisID),
		))
}

// RecordAuditResult marks a failed audit write on its span.
func (bt *BusinessTracer) RecordAuditResult(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// TraceNotification starts a span for tracing alert delivery.
//
// Parameters:
//   - ctx: The context to attach the span to.
//   - notificationType: The type of notification being sent.
//   - channel: The delivery channel (e.g., "telegram").
func (bt *BusinessTracer) TraceNotification(ctx context.Context, notificationType string, channel string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "notification",
		trace.WithAttributes(
			attribute.String("notification.type", notificationType),
			attribute.String("notification.channel", channel),
		))
}

// RecordNotificationResult records the outcome of a notification attempt onto a span.
func (bt *BusinessTracer) RecordNotificationResult(span trace.Span, success bool, recipientCount int, err error) {
	span.SetAttributes(
		attribute.Bool("notification.success", success),
		attribute.Int("notification.recipients", recipientCount),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AnalysisSummary is the subset of an analysis result recorded on spans.
type AnalysisSummary struct {
	ID                 string
	LoadType           string
	FinalRating        string
	CombinedConfidence int
	SuggestedPrice     float64
	MilesUsed          float64
	HasDAT             bool
	HasGreenScreens    bool
}
