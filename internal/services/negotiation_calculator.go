package services

import (
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/sirupsen/logrus"
)

// Negotiation tiers reported on a single-stop range.
const (
	TierStrong = "strong"
	TierMarket = "market"
)

// NegotiationCalculator derives the single-stop buy range (target_rate,
// max_buy) from lane history and market quotes.
type NegotiationCalculator struct {
	config config.NegotiationConfig
	logger *logrus.Logger
	now    func() time.Time
}

// NewNegotiationCalculator creates a calculator. now defaults to time.Now.
func NewNegotiationCalculator(cfg config.NegotiationConfig, logger *logrus.Logger, now func() time.Time) *NegotiationCalculator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logrus.New()
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = config.DefaultTiers()
	}
	return &NegotiationCalculator{config: cfg, logger: logger, now: now}
}

// Compute returns the negotiation range. Both bounds are multiples of 5 and
// max_buy is always above target_rate.
func (c *NegotiationCalculator) Compute(miles float64, pickup, delivery *time.Time, quotes models.MarketQuotes, lane *models.LaneAnalysis) models.RateRange {
	transitDays := c.config.TransitDaysDefault
	if pickup != nil && delivery != nil {
		transitDays = int(delivery.Sub(*pickup).Hours() / 24)
		if transitDays < 1 {
			transitDays = 1
		}
	}

	weekday := c.now().Weekday()
	if pickup != nil {
		weekday = pickup.Weekday()
	}

	pool := quotes.Pool()
	var market float64
	hasMarket := len(pool) > 0
	if hasMarket {
		market = utils.Median(pool)
	}

	confidence := lane.Confidence()
	records := lane.TotalRecords()
	laneMedian := lane.LaneMedian()

	var target, maxBuy float64
	tier := TierMarket

	switch {
	case laneMedian > 0 && confidence >= c.config.Strong.MinConfidence && records >= c.config.Strong.MinRecords:
		tier = TierStrong
		adj := c.strongAdjustment(confidence, records, laneMedian, market, hasMarket)
		target = laneMedian * adj
		maxBuy = laneMedian * adj * c.config.Strong.SpreadFactor

	default:
		if t, ok := c.matchTier(confidence, records, laneMedian); ok {
			tier = t.Name
			base := laneMedian
			if hasMarket {
				base = laneMedian*t.HistoricalWeight + market*(1-t.HistoricalWeight)
			}
			target = base * t.TargetFactor
			maxBuy = base * t.MaxFactor
			break
		}
		target, maxBuy = c.marketRange(miles, transitDays, weekday, market, hasMarket, quotes, confidence)
	}

	target = utils.RoundToNearest5(target)
	maxBuy = utils.RoundToNearest5(maxBuy)
	if maxBuy <= target {
		maxBuy = target + c.config.MinimumSpread
	}

	c.logger.WithFields(logrus.Fields{
		"tier":         tier,
		"confidence":   confidence,
		"records":      records,
		"market_rates": len(pool),
		"target_rate":  target,
		"max_buy":      maxBuy,
	}).Debug("Negotiation range computed")

	return models.RateRange{
		TargetRate:        target,
		MaxBuy:            maxBuy,
		CarrierCost:       (target + maxBuy) / 2,
		HotshotAdjustment: 1,
		Method:            models.MethodSingleStop,
		Tier:              tier,
	}
}

// strongAdjustment is the market cushion applied on top of a strong lane
// median. Very well supported history is used as is.
func (c *NegotiationCalculator) strongAdjustment(confidence, records int, laneMedian, market float64, hasMarket bool) float64 {
	s := c.config.Strong
	if confidence >= s.ExcellentConfidence && records >= s.ExcellentRecords {
		return 1.0
	}
	if !hasMarket {
		return 1.0
	}
	trend := (market - laneMedian) / laneMedian
	if confidence >= s.HighConfidence && records >= s.HighRecords {
		if trend > s.HighTrend {
			return s.HighCushion
		}
		return 1.0
	}
	switch {
	case trend > s.ModerateTrendHigh:
		return s.ModerateCushionHigh
	case trend > s.ModerateTrendLow:
		return s.ModerateCushionLow
	default:
		return 1.0
	}
}

// matchTier returns the first configured blend tier whose confidence band
// and record minimum are met.
func (c *NegotiationCalculator) matchTier(confidence, records int, laneMedian float64) (config.NegotiationTier, bool) {
	if laneMedian <= 0 {
		return config.NegotiationTier{}, false
	}
	for _, t := range c.config.Tiers {
		if confidence >= t.MinConfidence && confidence < t.MaxConfidence && records >= t.MinRecords {
			return t, true
		}
	}
	return config.NegotiationTier{}, false
}

// marketRange prices from the market median with distance, transit,
// weekend, capacity and confidence adjustments.
func (c *NegotiationCalculator) marketRange(miles float64, transitDays int, weekday time.Weekday, market float64, hasMarket bool, quotes models.MarketQuotes, laneConfidence int) (float64, float64) {
	cfg := c.config
	if !hasMarket {
		base := miles * cfg.FallbackRatePerMile
		return base, base * cfg.FallbackSpread
	}

	target := market
	maxBuy := market * cfg.MarketSpread

	switch {
	case miles > cfg.LongHaulThreshold:
		target *= 0.98
		maxBuy *= 0.98
	case miles < cfg.ShortHaulThreshold:
		target *= 1.05
		maxBuy *= 1.05
	}

	switch {
	case transitDays <= 1:
		target *= 1.08
		maxBuy *= 1.10
	case transitDays > 3:
		target *= 0.97
		maxBuy *= 0.95
	}

	if weekday == time.Saturday || weekday == time.Sunday {
		target += cfg.WeekendPenalty
		maxBuy += cfg.WeekendPenalty
	}

	if quotes.DAT != nil && quotes.DAT.Current != nil {
		companies := 0
		if quotes.DAT.Current.Companies != nil {
			companies = *quotes.DAT.Current.Companies
		}
		switch {
		case companies < cfg.LowCapacityCompanies:
			adj := 1 + cfg.CapacitySensitivity
			target *= adj
			maxBuy *= adj
		case companies > cfg.HighCapacityCompanies:
			adj := 1 - cfg.CapacitySensitivity*0.5
			target *= adj
			maxBuy *= adj
		}
	}

	gsConfidence := quotes.GreenScreensConfidence(cfg.DefaultGSConfidence)
	blended := (gsConfidence*0.4 + float64(laneConfidence)*0.6) / 100
	switch {
	case blended < 0.5:
		maxBuy *= 1.05
	case blended > 0.8:
		maxBuy *= 0.98
	}

	if maxBuy-target < cfg.MinimumMarginBuffer {
		maxBuy = target + cfg.MinimumMarginBuffer
	}
	return target, maxBuy
}
