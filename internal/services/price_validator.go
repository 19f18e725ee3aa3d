package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PRC flags.
const (
	FlagMarginAboveMax     = "margin_above_industry_max"
	FlagMarginBelowMinimum = "margin_below_minimum"
	FlagNoHistoricalData   = "No historical data found"
	FlagBelowP25           = "Below 25th percentile"
	FlagAboveP75           = "Above 75th percentile"
	FlagOutsideRange       = "Outside historical range"
	FlagLimitedRecentData  = "Limited recent data"
	FlagMarginHighPrefix   = "margin_high_warning"
)

var usdPrinter = message.NewPrinter(language.AmericanEnglish)

// PriceValidator rates a proposed customer price against lane history with
// customer, lane and industry fallbacks.
type PriceValidator struct {
	config     config.PRCConfig
	thresholds config.RatingThresholds
	customers  *CustomerMarginCalculator
	logger     *logrus.Logger
	now        func() time.Time
}

func NewPriceValidator(cfg config.PRCConfig, thresholds config.RatingThresholds, customers *CustomerMarginCalculator, logger *logrus.Logger, now func() time.Time) *PriceValidator {
	if now == nil {
		now = time.Now
	}
	if customers == nil {
		customers = NewCustomerMarginCalculator(cfg, now)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &PriceValidator{config: cfg, thresholds: thresholds, customers: customers, logger: logger, now: now}
}

// Validate rates the proposed price. It never fails: missing history yields
// a NO_DATA result with an industry suggestion.
func (v *PriceValidator) Validate(table *models.LookupTable, proposedPrice, carrierCost float64, originZip, destZip, customer string, outlier *models.OutlierInfo) models.PRCResult {
	cfg := v.config
	markup := proposedPrice / carrierCost
	marginDollars := proposedPrice - carrierCost
	marginPct := marginDollars / proposedPrice * 100

	result := models.PRCResult{
		ProposedCustomerPrice: proposedPrice,
		CarrierCost:           carrierCost,
		ProposedMarkup:        markup,
		ProposedMarginDollars: marginDollars,
		ProposedMarginPct:     marginPct,
		OriginZip:             originZip,
		DestinationZip:        destZip,
		CustomerName:          customer,
		Rating:                models.RatingNoData,
		Recommendation:        "No historical data available",
		Flags:                 []string{},
	}

	historical := v.FindLaneHistorical(table, originZip, destZip, customer)

	if marginPct > cfg.MaximumMarginPct {
		result.Rating = models.RatingPoor
		result.Recommendation = fmt.Sprintf("REJECT. Margin too high (%.1f%% > %.1f%% industry max).", marginPct, cfg.MaximumMarginPct)
		result.Flags = append(result.Flags, FlagMarginAboveMax)
		result.ConfidenceScore = 100

		// The suggestion is not clamped to the minimum margin here; the
		// orchestrator applies the floor to the final suggested price.
		if historical.CustomerScoped() {
			result.IndustrySuggestedPrice = floatPtr(utils.Round(carrierCost*historical.MedianMarkup, 2))
		} else if cm := v.qualifiedCustomerMargin(table, customer); cm != nil {
			result.IndustrySuggestedPrice = floatPtr(utils.Round(priceForMargin(carrierCost, cm.MedianMarginPct), 2))
			result.CustomerHistoricalMargin = cm
		} else {
			result.IndustrySuggestedPrice = floatPtr(utils.Round(priceForMargin(carrierCost, cfg.TargetMarginPct), 2))
		}
		return result
	} else if marginPct > cfg.WarningMarginHigh {
		result.Flags = append(result.Flags, fmt.Sprintf("%s (>%.1f%%)", FlagMarginHighPrefix, cfg.WarningMarginHigh))
	}

	if historical == nil {
		result.Flags = append(result.Flags, FlagNoHistoricalData)

		if outlier != nil && outlier.Detected {
			suggested := carrierCost * outlier.LaneMarkup
			result.IndustrySuggestedPrice = floatPtr(utils.Round(suggested, 2))
			result.MultistopOutlier = outlier
			result.Recommendation = fmt.Sprintf("Multistop outlier detected. Using lane markup %.3fx → $%s (based on %d historical loads)",
				outlier.LaneMarkup, formatUSD(suggested), outlier.Records)
			return result
		}

		if cm := v.qualifiedCustomerMargin(table, customer); cm != nil {
			suggested := priceForMargin(carrierCost, cm.MedianMarginPct)
			result.IndustrySuggestedPrice = floatPtr(utils.Round(suggested, 2))
			result.CustomerHistoricalMargin = cm
			result.Recommendation = fmt.Sprintf("No lane data. Customer historical suggests ~$%s (%.1f%% margin based on %d loads)",
				formatUSD(suggested), cm.MedianMarginPct, cm.TotalLoads)
		} else {
			suggested := priceForMargin(carrierCost, cfg.TargetMarginPct)
			result.IndustrySuggestedPrice = floatPtr(utils.Round(suggested, 2))
			result.Recommendation = fmt.Sprintf("No historical data. Industry standard suggests ~$%s (%.0f%% margin)",
				formatUSD(suggested), cfg.TargetMarginPct)
		}
		return result
	}

	result.Historical = &models.HistoricalSummary{
		MatchLevel:      historical.MatchLevel,
		LaneIdentifier:  historical.LaneIdentifier,
		Customer:        historical.Customer,
		MedianMarkup:    historical.MedianMarkup,
		AvgMarkup:       historical.AvgMarkup,
		MedianMarginPct: historical.MedianMarginPct,
		AvgMarginPct:    historical.AvgMarginPct,
		MarkupRange:     fmt.Sprintf("%.3f - %.3f", historical.MinMarkup, historical.MaxMarkup),
		MarginRange:     fmt.Sprintf("%.1f%% - %.1f%%", historical.MinMarginPct, historical.MaxMarginPct),
		TotalLoads:      historical.TotalLoads,
		RecentLoads:     historical.RecentLoads,
		ConfidenceScore: historical.ConfidenceScore,
	}
	result.ConfidenceScore = historical.ConfidenceScore

	if historical.CustomerScoped() {
		result.IndustrySuggestedPrice = floatPtr(utils.Round(carrierCost*historical.MedianMarkup, 2))
	} else if cm := v.qualifiedCustomerMargin(table, customer); cm != nil {
		result.IndustrySuggestedPrice = floatPtr(utils.Round(priceForMargin(carrierCost, cm.MedianMarginPct), 2))
		result.CustomerHistoricalMargin = cm
	} else {
		result.IndustrySuggestedPrice = floatPtr(utils.Round(carrierCost*historical.MedianMarkup, 2))
	}

	markupDiff := markup - historical.MedianMarkup
	markupDiffPct := markupDiff / historical.MedianMarkup * 100
	withinRange := markup >= historical.MinMarkup && markup <= historical.MaxMarkup
	withinIQR := markup >= historical.P25Markup && markup <= historical.P75Markup
	result.Comparison = &models.Comparison{
		MarkupDiff:            markupDiff,
		MarkupDiffPct:         markupDiffPct,
		MarginDiffPct:         marginPct - historical.MedianMarginPct,
		WithinHistoricalRange: withinRange,
		WithinIQR:             withinIQR,
	}

	if marginPct < cfg.MinimumMarginPct {
		result.Rating = models.RatingPoor
		result.Recommendation = fmt.Sprintf("REJECT. Margin below minimum (<%.1f%%).", cfg.MinimumMarginPct)
		result.Flags = append(result.Flags, FlagMarginBelowMinimum)
	} else {
		result.Rating, result.Recommendation = v.rate(math.Abs(markupDiffPct))
	}

	if markup < historical.P25Markup {
		result.Flags = append(result.Flags, FlagBelowP25)
	} else if markup > historical.P75Markup {
		result.Flags = append(result.Flags, FlagAboveP75)
	}
	if !withinRange {
		result.Flags = append(result.Flags, FlagOutsideRange)
	}
	if historical.MatchLevel != models.MatchExact {
		result.Flags = append(result.Flags, fmt.Sprintf("Using %s match", strings.ToUpper(historical.MatchLevel)))
	}
	if historical.RecentLoads < cfg.LimitedRecentLoads {
		result.Flags = append(result.Flags, FlagLimitedRecentData)
	}

	v.logger.WithFields(logrus.Fields{
		"match_level": historical.MatchLevel,
		"loads":       historical.TotalLoads,
		"rating":      result.Rating,
		"margin_pct":  utils.Round(marginPct, 2),
	}).Debug("Price validated against lane history")

	return result
}

// rate maps the absolute markup deviation to a rating band.
func (v *PriceValidator) rate(deviationPct float64) (string, string) {
	t := v.thresholds
	switch {
	case deviationPct <= t.Excellent:
		return models.RatingExcellent, "Pricing aligned with historical median"
	case deviationPct <= t.Good:
		return models.RatingGood, "Pricing within acceptable range"
	case deviationPct <= t.Acceptable:
		return models.RatingAcceptable, "Pricing reasonable but could be optimized"
	case deviationPct <= t.Risky:
		return models.RatingRisky, "Pricing deviates significantly"
	default:
		return models.RatingPoor, "Pricing far outside historical ranges"
	}
}

// qualifiedCustomerMargin returns the customer's global margin when it rests
// on enough loads to drive a suggestion.
func (v *PriceValidator) qualifiedCustomerMargin(table *models.LookupTable, customer string) *models.CustomerMargin {
	cm := v.customers.Calculate(table, customer)
	if cm == nil || cm.TotalLoads < v.config.CustomerMinLoads {
		return nil
	}
	return cm
}

type matchTier struct {
	level  string
	digits int
	on     bool
}

// FindLaneHistorical searches exact, ZIP4 and ZIP3 lanes in that order and
// returns statistics for the first with enough loads.
func (v *PriceValidator) FindLaneHistorical(table *models.LookupTable, originZip, destZip, customer string) *models.LaneHistorical {
	required := []string{models.ColOriginZip, models.ColDestinationZip, models.ColCarrierFreightCost, models.ColCustomerFreightCost}
	if table == nil || len(table.MissingColumns(required)) > 0 {
		return nil
	}

	origin, dest := utils.PadZip(originZip), utils.PadZip(destZip)
	scoped := customer != "" && table.HasColumn(models.ColCompanyName)
	target := utils.NormalizeCustomerName(customer)
	customerLabel := models.AllCustomers
	if scoped {
		customerLabel = customer
	}

	tiers := []matchTier{
		{models.MatchExact, 5, true},
		{models.MatchZip4, 4, v.config.EnableZip4Fallback},
		{models.MatchZip3, 3, v.config.EnableZip3Fallback},
	}
	for _, tier := range tiers {
		if !tier.on {
			continue
		}
		o, d := origin[:tier.digits], dest[:tier.digits]
		var rows []*models.HistoricalLaneRecord
		for i := range table.Records {
			r := &table.Records[i]
			ro, rd := strings.TrimSpace(r.OriginZip), strings.TrimSpace(r.DestinationZip)
			if tier.digits == 5 {
				ro, rd = utils.PadZip(ro), utils.PadZip(rd)
			}
			if utils.Prefix(ro, tier.digits) != o || utils.Prefix(rd, tier.digits) != d {
				continue
			}
			if scoped && utils.NormalizeCustomerName(r.CompanyName) != target {
				continue
			}
			rows = append(rows, r)
		}
		if len(rows) < v.config.MinLoadsForMatch {
			continue
		}
		if stats := v.historicalStats(table, rows, tier.level, o+"-"+d, customerLabel); stats != nil {
			return stats
		}
	}
	return nil
}

// historicalStats summarizes markup and margin over rows priced at or above
// cost. Returns nil when no row qualifies.
func (v *PriceValidator) historicalStats(table *models.LookupTable, rows []*models.HistoricalLaneRecord, level, lane, customer string) *models.LaneHistorical {
	var markups, margins []float64
	recent := 0
	hasDate := table.HasColumn(models.ColPickupDate)
	cutoff := v.now().AddDate(0, 0, -v.recentDays())
	for _, r := range rows {
		price, cost := r.CustomerFreightCost, r.CarrierFreightCost
		if cost <= 0 || price <= 0 || price < cost {
			continue
		}
		markups = append(markups, price/cost)
		margins = append(margins, (price-cost)/price*100)
		if hasDate && onOrAfter(r.PickupDate, cutoff) {
			recent++
		}
	}
	if len(markups) == 0 {
		return nil
	}

	minMarkup, maxMarkup := utils.MinMax(markups)
	minMargin, maxMargin := utils.MinMax(margins)
	h := &models.LaneHistorical{
		MatchLevel:      level,
		LaneIdentifier:  lane,
		Customer:        customer,
		AvgMarkup:       utils.Mean(markups),
		MedianMarkup:    utils.Median(markups),
		StdMarkup:       nanToZero(utils.SampleStdDev(markups)),
		MinMarkup:       minMarkup,
		MaxMarkup:       maxMarkup,
		P25Markup:       utils.Quantile(markups, 0.25),
		P75Markup:       utils.Quantile(markups, 0.75),
		AvgMarginPct:    utils.Mean(margins),
		MedianMarginPct: utils.Median(margins),
		StdMarginPct:    nanToZero(utils.SampleStdDev(margins)),
		MinMarginPct:    minMargin,
		MaxMarginPct:    maxMargin,
		P25MarginPct:    utils.Quantile(margins, 0.25),
		P75MarginPct:    utils.Quantile(margins, 0.75),
		TotalLoads:      len(markups),
		RecentLoads:     recent,
	}
	h.ConfidenceScore = historicalConfidence(markups, level, recent)
	return h
}

func (v *PriceValidator) recentDays() int {
	if v.config.RecentDays <= 0 {
		return 90
	}
	return v.config.RecentDays
}

// historicalConfidence scores volume (40), match level (30), recency (20)
// and markup consistency (10).
func historicalConfidence(markups []float64, level string, recent int) float64 {
	n := len(markups)
	score := math.Min(40, float64(n)*2)

	switch level {
	case models.MatchExact:
		score += 30
	case models.MatchZip4:
		score += 20
	default:
		score += 10
	}

	if n > 0 {
		score += math.Min(20, float64(recent)/float64(n)*20)
	}

	if n > 1 {
		cv := 1.0
		if mean := utils.Mean(markups); mean > 0 {
			cv = utils.SampleStdDev(markups) / mean
		}
		score += math.Max(0, 10-cv*20)
	} else {
		score += 5
	}

	return math.Min(100, utils.Round(score, 2))
}

// priceForMargin returns the price that yields marginPct over cost.
func priceForMargin(cost, marginPct float64) float64 {
	return cost / (1 - marginPct/100)
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// formatUSD renders an amount with thousands separators and 2 decimals.
func formatUSD(v float64) string {
	return usdPrinter.Sprintf("%.2f", v)
}
