package services

import (
	"context"
	"sync"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/cache"
	"github.com/dtslogistics/pricing-agent/internal/metrics"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/telemetry"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// MarketDataService fetches optional market quotes. Every failure degrades
// to a nil quote: an unconfigured provider, an open breaker, exhausted
// retries or a timeout.
type MarketDataService struct {
	dat      interfaces.MarketRateProvider
	gs       interfaces.SecondaryMarketRateProvider
	recovery *ErrorRecoveryManager
	timeouts *TimeoutManager
	quotes   *cache.QuoteCache
	limiters map[string]*rate.Limiter
	metrics  *metrics.Recorder
	tracer   *telemetry.BusinessTracer
	logger   *logrus.Logger
}

// MarketDataDeps groups the collaborators of MarketDataService. Nil
// providers are treated as not configured.
type MarketDataDeps struct {
	DAT          interfaces.MarketRateProvider
	GreenScreens interfaces.SecondaryMarketRateProvider
	Recovery     *ErrorRecoveryManager
	Timeouts     *TimeoutManager
	Quotes       *cache.QuoteCache
	Metrics      *metrics.Recorder
	// RequestsPerSecond and Burst bound outbound calls per provider.
	// Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

func NewMarketDataService(deps MarketDataDeps, logger *logrus.Logger) *MarketDataService {
	if logger == nil {
		logger = logrus.New()
	}
	if deps.Recovery == nil {
		deps.Recovery = NewErrorRecoveryManager(logger, nil)
	}
	if deps.Timeouts == nil {
		deps.Timeouts = NewTimeoutManager(nil, logger)
	}

	limiters := make(map[string]*rate.Limiter, 2)
	if deps.RequestsPerSecond > 0 {
		burst := deps.Burst
		if burst <= 0 {
			burst = 1
		}
		limiters[cache.ProviderDAT] = rate.NewLimiter(rate.Limit(deps.RequestsPerSecond), burst)
		limiters[cache.ProviderGreenScreens] = rate.NewLimiter(rate.Limit(deps.RequestsPerSecond), burst)
	}

	return &MarketDataService{
		dat:      deps.DAT,
		gs:       deps.GreenScreens,
		recovery: deps.Recovery,
		timeouts: deps.Timeouts,
		quotes:   deps.Quotes,
		limiters: limiters,
		metrics:  deps.Metrics,
		tracer:   telemetry.NewBusinessTracer(),
		logger:   logger,
	}
}

// FetchDAT returns the DAT quote for q, or nil.
func (s *MarketDataService) FetchDAT(ctx context.Context, q models.LaneQuery) *models.DATQuote {
	if s.dat == nil {
		s.metrics.RecordProviderCall(cache.ProviderDAT, metrics.OutcomeDisabled, 0)
		return nil
	}
	quote := fetchQuote(ctx, s, cache.ProviderDAT, q, func(ctx context.Context) (*models.DATQuote, error) {
		return s.dat.FetchRates(ctx, q)
	})
	if quote != nil && quote.Current == nil {
		return nil
	}
	return quote
}

// FetchGreenScreens returns the GreenScreens quote for q, or nil.
func (s *MarketDataService) FetchGreenScreens(ctx context.Context, q models.LaneQuery) *models.GreenScreensQuote {
	if s.gs == nil {
		s.metrics.RecordProviderCall(cache.ProviderGreenScreens, metrics.OutcomeDisabled, 0)
		return nil
	}
	quote := fetchQuote(ctx, s, cache.ProviderGreenScreens, q, func(ctx context.Context) (*models.GreenScreensQuote, error) {
		return s.gs.FetchRates(ctx, q)
	})
	if quote != nil && quote.Forecast == nil && quote.Network == nil {
		return nil
	}
	return quote
}

// FetchAll runs the DAT and GreenScreens fetches concurrently and waits for
// both. When dat is already known the DAT call is skipped.
func (s *MarketDataService) FetchAll(ctx context.Context, datQuery, gsQuery models.LaneQuery, dat *models.DATQuote) models.MarketQuotes {
	var (
		wg     sync.WaitGroup
		quotes models.MarketQuotes
	)
	quotes.DAT = dat

	if dat == nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			quotes.DAT = s.FetchDAT(ctx, datQuery)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		quotes.GreenScreens = s.FetchGreenScreens(ctx, gsQuery)
	}()
	wg.Wait()

	return quotes
}

// SelectEquipment queries DAT for each alternative and picks the one with
// the lowest current total. Ties keep the earlier alternative. When no
// alternative has a rate the first is returned with a nil quote.
func (s *MarketDataService) SelectEquipment(ctx context.Context, base models.LaneQuery, alternatives []string) (string, *models.DATQuote) {
	if len(alternatives) == 0 {
		return base.Equipment, nil
	}

	winner := alternatives[0]
	var best *models.DATQuote
	for _, equipment := range alternatives {
		q := base
		q.Equipment = equipment
		quote := s.FetchDAT(ctx, q)
		total := quote.CurrentTotal()
		if total == 0 {
			s.logger.WithField("equipment", equipment).Info("No DAT rate for equipment alternative")
			continue
		}
		if best == nil || total < best.CurrentTotal() {
			winner, best = equipment, quote
		}
	}

	s.logger.WithFields(logrus.Fields{
		"alternatives": alternatives,
		"winner":       winner,
		"rate":         best.CurrentTotal(),
	}).Info("Multi-equipment selection complete")
	return winner, best
}

// fetchQuote serves q from the quote cache or calls the provider under the
// rate limiter, per-call deadline, retry budget and breaker.
func fetchQuote[T any](ctx context.Context, s *MarketDataService, provider string, q models.LaneQuery, call func(context.Context) (*T, error)) *T {
	key := s.quotes.Key(provider, q)
	var cached T
	if s.quotes.Get(ctx, key, &cached) {
		s.metrics.RecordProviderCall(provider, metrics.OutcomeCacheHit, 0)
		return &cached
	}

	ctx, span := s.tracer.TraceProviderCall(ctx, provider, "fetch_rates")
	defer span.End()

	start := time.Now()
	var result *T
	outcome := s.recovery.Execute(ctx, provider, func(ctx context.Context) error {
		if limiter := s.limiters[provider]; limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		callCtx, done := s.timeouts.WithTimeout(ctx, OpRateCall)
		defer done()

		quote, err := call(callCtx)
		if err != nil {
			return err
		}
		result = quote
		return nil
	}, nil)
	elapsed := time.Since(start).Seconds()
	s.tracer.RecordProviderResult(span, outcome.Attempts, outcome.Error)

	if !outcome.Success || result == nil {
		s.metrics.RecordProviderCall(provider, metrics.OutcomeError, elapsed)
		s.logger.WithFields(logrus.Fields{
			"provider":  provider,
			"equipment": q.Equipment,
			"attempts":  outcome.Attempts,
			"error":     errorString(outcome.Error),
		}).Warn("Market data unavailable, continuing without it")
		return nil
	}

	s.metrics.RecordProviderCall(provider, metrics.OutcomeSuccess, elapsed)
	s.quotes.Set(ctx, key, result)
	return result
}
