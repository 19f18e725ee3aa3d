package services

import (
	"context"
	"sync"

	"github.com/dtslogistics/pricing-agent/internal/metrics"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/telemetry"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// AuditService fans one audit entry out to every configured sink. Sink
// failures are logged and counted but never returned to the caller.
type AuditService struct {
	sinks    []interfaces.AuditSink
	timeouts *TimeoutManager
	metrics  *metrics.Recorder
	tracer   *telemetry.BusinessTracer
	logger   *logrus.Logger
	wg       sync.WaitGroup
}

func NewAuditService(sinks []interfaces.AuditSink, timeouts *TimeoutManager, recorder *metrics.Recorder, logger *logrus.Logger) *AuditService {
	if logger == nil {
		logger = logrus.New()
	}
	if timeouts == nil {
		timeouts = NewTimeoutManager(nil, logger)
	}
	return &AuditService{
		sinks:    sinks,
		timeouts: timeouts,
		metrics:  recorder,
		tracer:   telemetry.NewBusinessTracer(),
		logger:   logger,
	}
}

// Sinks returns the names of the configured sinks.
func (a *AuditService) Sinks() []string {
	names := make([]string, 0, len(a.sinks))
	for _, s := range a.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Record writes entry to all sinks concurrently and returns the number of
// sinks that succeeded.
func (a *AuditService) Record(ctx context.Context, entry models.AuditEntry) int {
	if len(a.sinks) == 0 {
		return 0
	}
	if entry.User == "" {
		entry.User = models.DefaultAuditUser
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, sink := range a.sinks {
		wg.Add(1)
		go func(sink interfaces.AuditSink) {
			defer wg.Done()
			ctx, span := a.tracer.TraceAudit(ctx, sink.Name(), entry.ID)
			defer span.End()

			err := a.timeouts.Run(ctx, OpAuditWrite, func(ctx context.Context) error {
				return sink.Record(ctx, entry)
			})
			a.tracer.RecordAuditResult(span, err)
			a.metrics.RecordAuditWrite(sink.Name(), err)
			if err != nil {
				a.logger.WithFields(logrus.Fields{
					"sink":     sink.Name(),
					"quote_id": entry.QuoteID,
					"error":    err.Error(),
				}).Error("Audit write failed")
				return
			}
			mu.Lock()
			ok++
			mu.Unlock()
		}(sink)
	}
	wg.Wait()

	a.logger.WithFields(logrus.Fields{
		"analysis_id": entry.ID,
		"quote_id":    entry.QuoteID,
		"sinks_ok":    ok,
		"sinks_total": len(a.sinks),
	}).Debug("Audit entry recorded")
	return ok
}

// RecordAsync records entry in the background, detached from the request
// context. Wait blocks until pending writes finish.
func (a *AuditService) RecordAsync(entry models.AuditEntry) {
	if len(a.sinks) == 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Record(context.Background(), entry)
	}()
}

// Wait blocks until background writes complete.
func (a *AuditService) Wait() {
	a.wg.Wait()
}
