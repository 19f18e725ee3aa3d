package services

import (
	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/sirupsen/logrus"
)

// Multistop pricing regimes.
const (
	RegimeOutlier    = "outlier"
	RegimeHistorical = "historical"
	RegimeMarket     = "market"
)

// MultistopInput carries everything the multistop cost model needs.
type MultistopInput struct {
	GoogleMiles       float64
	DATMiles          float64
	StopCount         int
	CustomerName      string
	Quotes            models.MarketQuotes
	HotshotAdjustment float64
	Lane              *models.LaneAnalysis
}

// MultistopCalculator prices loads with more than one drop.
type MultistopCalculator struct {
	config     config.MultistopConfig
	classifier *SegmentClassifier
	logger     *logrus.Logger
}

func NewMultistopCalculator(cfg config.MultistopConfig, classifier *SegmentClassifier, logger *logrus.Logger) *MultistopCalculator {
	if classifier == nil {
		classifier = NewSegmentClassifier(config.DefaultSegmentRules())
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &MultistopCalculator{config: cfg, classifier: classifier, logger: logger}
}

// Compute returns the multistop range and, when the lane history sits far
// below the market, the outlier details. A nil range means the load cannot
// be priced from the available data.
func (c *MultistopCalculator) Compute(in MultistopInput) (*models.RateRange, *models.OutlierInfo) {
	cfg := c.config
	hotshot := in.HotshotAdjustment
	if hotshot <= 0 {
		hotshot = 1
	}
	highComplexity := c.classifier.Classify(in.CustomerName) == config.SegmentHighComplexity

	laneMedian := in.Lane.LaneMedian()
	records := in.Lane.LaneRecords()
	hasLaneData := laneMedian > 0 && in.Lane.Confidence() >= cfg.HistoricalMinConfidence && records >= cfg.HistoricalMinRecords

	outlier := c.detectOutlier(in, laneMedian, records)

	datAverage := in.Quotes.DAT.CurrentTotal()
	if datAverage <= 0 {
		c.logger.Warn("Multistop pricing skipped: no DAT average rate")
		return nil, nil
	}
	if in.DATMiles <= 0 || in.GoogleMiles <= 0 {
		c.logger.WithFields(logrus.Fields{
			"google_miles": in.GoogleMiles,
			"dat_miles":    in.DATMiles,
		}).Warn("Multistop pricing skipped: invalid miles")
		return nil, nil
	}

	milesDiff := in.GoogleMiles - in.DATMiles
	diffPct := milesDiff / in.DATMiles * 100
	band := c.milesBand(diffPct)
	extraStops := float64(in.StopCount - 1)

	var target, maxBuy float64
	regime := RegimeMarket

	switch {
	case outlier != nil:
		regime = RegimeOutlier
		total := utils.RoundToNearest5((laneMedian + extraStops*cfg.OutlierStopCharge) * hotshot)
		target = utils.RoundToNearest5(total * cfg.OutlierTargetFactor)
		maxBuy = utils.RoundToNearest5(total * cfg.OutlierMaxFactor)

	case hasLaneData:
		regime = RegimeHistorical
		charges := cfg.StandardStopCharges
		if highComplexity {
			charges = cfg.HighComplexityStopCharges
		}
		stopCharge := charges[band]
		layover := c.layover(in.GoogleMiles, highComplexity)
		total := utils.RoundToNearest5((laneMedian + extraStops*stopCharge + layover) * hotshot)
		target = utils.RoundToNearest5(total * cfg.HistoricalTargetFactor)
		maxBuy = utils.RoundToNearest5(total * cfg.HistoricalMaxFactor)

	default:
		variable := cfg.VariableStopCharge * cfg.VariableStopBandMultipliers[band]
		bonus := 0.0
		if highComplexity {
			variable = cfg.VariableStopChargeHighComplexity
			if in.StopCount > cfg.ExtraStopsBonusMinStops {
				bonus = utils.Round(float64(in.StopCount)/cfg.ExtraStopsBonusDivisor*cfg.ExtraStopsBonusMultiplier, 2)
			}
		}
		layover := c.layover(in.GoogleMiles, highComplexity)
		stopsCharge := float64(in.StopCount) * variable

		var total float64
		if milesDiff >= 0 {
			rpm := datAverage / in.DATMiles
			total = utils.RoundToNearest5(rpm*in.GoogleMiles + stopsCharge + bonus + layover)
		} else {
			total = utils.RoundToNearest5(datAverage + stopsCharge + bonus + layover)
		}
		total = utils.RoundToNearest5(total * hotshot)
		target = total
		maxBuy = utils.RoundToNearest5(total * (1 + cfg.Markup))
	}

	if target <= 0 || maxBuy <= 0 {
		return nil, nil
	}
	if maxBuy <= target {
		maxBuy = utils.RoundToNearest5(target * cfg.FallbackSpreadFactor)
		// small targets round the spread away
		if maxBuy <= target {
			maxBuy = target + cfg.MinimumSpread
		}
	}

	c.logger.WithFields(logrus.Fields{
		"regime":          regime,
		"stops":           in.StopCount,
		"miles_diff_pct":  utils.Round(diffPct, 1),
		"high_complexity": highComplexity,
		"target_rate":     target,
		"max_buy":         maxBuy,
	}).Debug("Multistop range computed")

	return &models.RateRange{
		TargetRate:        target,
		MaxBuy:            maxBuy,
		CarrierCost:       (target + maxBuy) / 2,
		HotshotAdjustment: hotshot,
		Method:            models.MethodMultistop,
		Tier:              regime,
	}, outlier
}

// detectOutlier flags lanes whose median is at least OutlierDeviation below
// the market median.
func (c *MultistopCalculator) detectOutlier(in MultistopInput, laneMedian float64, records int) *models.OutlierInfo {
	if in.Lane == nil || laneMedian <= 0 || records < 1 {
		return nil
	}
	pool := in.Quotes.OutlierPool()
	if len(pool) == 0 {
		return nil
	}
	market := utils.Median(pool)
	if market <= 0 {
		return nil
	}
	deviation := (market - laneMedian) / market
	if deviation < c.config.OutlierDeviation {
		return nil
	}

	info := &models.OutlierInfo{
		Detected:             true,
		LaneCarrierCost:      laneMedian,
		MarketMedian:         market,
		DeviationPct:         deviation * 100,
		Records:              records,
		CustomerMedianPrice:  in.Lane.CustomerMedianPrice,
		CustomerAveragePrice: in.Lane.CustomerAveragePrice,
		LaneMarkup:           c.config.DefaultLaneMarkup,
		LaneMarginPct:        c.config.DefaultLaneMarginPct,
	}
	if in.Lane.HistoricalMarkup != nil {
		info.LaneMarkup = *in.Lane.HistoricalMarkup
	}
	if in.Lane.HistoricalMarginPct != nil {
		info.LaneMarginPct = *in.Lane.HistoricalMarginPct
	}

	c.logger.WithFields(logrus.Fields{
		"lane_median":   laneMedian,
		"market_median": market,
		"deviation_pct": utils.Round(info.DeviationPct, 1),
		"records":       records,
	}).Info("Exceptional lane negotiation detected")

	return info
}

// milesBand maps the Google vs DAT mileage difference to 0 (low), 1
// (medium) or 2 (high).
func (c *MultistopCalculator) milesBand(diffPct float64) int {
	switch {
	case diffPct < c.config.MilesBandLowPct:
		return 0
	case diffPct < c.config.MilesBandHighPct:
		return 1
	default:
		return 2
	}
}

// layover charges one day less than the whole driving days once the trip
// exceeds the threshold.
func (c *MultistopCalculator) layover(googleMiles float64, highComplexity bool) float64 {
	days := googleMiles / c.config.MilesPerDay
	if days <= c.config.LayoverThresholdDays {
		return 0
	}
	rate := c.config.LayoverRate
	if highComplexity {
		rate = c.config.LayoverRateHighComplexity
	}
	return float64(int(days)-1) * rate
}
