package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/metrics"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/telemetry"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultEstimatedMiles = 500.0
	defaultTransitDays    = 2
	isoLocalLayout        = "2006-01-02T15:04:05"
)

// AnalysisDeps groups the collaborators of AnalysisService. Distance may be
// nil, in which case multistop loads cannot be priced.
type AnalysisDeps struct {
	Locations  *LocationResolver
	MarketData *MarketDataService
	Distance   interfaces.DistanceProvider
	Timeouts   *TimeoutManager
	Segments   *SegmentClassifier
	Metrics    *metrics.Recorder
}

// AnalysisService runs the full pricing pipeline for one shipment request.
type AnalysisService struct {
	pricing      config.PricingConfig
	locations    *LocationResolver
	marketData   *MarketDataService
	distance     interfaces.DistanceProvider
	timeouts     *TimeoutManager
	laneAnalyzer *LaneAnalyzer
	negotiation  *NegotiationCalculator
	multistop    *MultistopCalculator
	validator    *PriceValidator
	metrics      *metrics.Recorder
	tracer       *telemetry.BusinessTracer
	logger       *logrus.Logger
	now          func() time.Time
}

func NewAnalysisService(pricing config.PricingConfig, deps AnalysisDeps, logger *logrus.Logger, now func() time.Time) *AnalysisService {
	if logger == nil {
		logger = logrus.New()
	}
	if now == nil {
		now = time.Now
	}
	if deps.Locations == nil {
		deps.Locations = NewLocationResolver(nil, logger)
	}
	if deps.MarketData == nil {
		deps.MarketData = NewMarketDataService(MarketDataDeps{}, logger)
	}
	if deps.Timeouts == nil {
		deps.Timeouts = NewTimeoutManager(nil, logger)
	}

	customers := NewCustomerMarginCalculator(pricing.PRC, now)
	return &AnalysisService{
		pricing:      pricing,
		locations:    deps.Locations,
		marketData:   deps.MarketData,
		distance:     deps.Distance,
		timeouts:     deps.Timeouts,
		laneAnalyzer: NewLaneAnalyzer(pricing.ID, logger, now),
		negotiation:  NewNegotiationCalculator(pricing.Negotiation, logger, now),
		multistop:    NewMultistopCalculator(pricing.Multistop, deps.Segments, logger),
		validator:    NewPriceValidator(pricing.PRC, pricing.RatingThresholds, customers, logger, now),
		metrics:      deps.Metrics,
		tracer:       telemetry.NewBusinessTracer(),
		logger:       logger,
		now:          now,
	}
}

// RunAnalysis prices req against table. The only errors are input errors:
// missing market or historical data lowers confidence instead of failing.
func (s *AnalysisService) RunAnalysis(ctx context.Context, table *models.LookupTable, req models.ShipmentRequest) (*models.AnalysisResult, error) {
	ctx, span := s.tracer.TraceAnalysis(ctx, req.EquipmentType, len(req.Stops))
	defer span.End()

	result, err := s.runAnalysis(ctx, table, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.tracer.RecordAnalysisResult(span, telemetry.AnalysisSummary{
		ID:                 result.ID,
		LoadType:           result.LoadType,
		FinalRating:        result.FinalRating,
		CombinedConfidence: result.CombinedConfidence,
		SuggestedPrice:     result.SuggestedPrice,
		MilesUsed:          result.Mileage.MilesUsed,
		HasDAT:             result.DATData != nil,
		HasGreenScreens:    result.GreenScreensData != nil,
	})
	return result, nil
}

func (s *AnalysisService) runAnalysis(ctx context.Context, table *models.LookupTable, req models.ShipmentRequest) (*models.AnalysisResult, error) {
	start := s.now()
	if err := req.Validate(); err != nil {
		return nil, utils.NewInputError("%s", err.Error())
	}

	equipment := NormalizeEquipment(req.EquipmentType)
	originalEquipment := equipment
	weight := req.WeightOrZero()

	pickup := start
	if req.PickupDate != nil {
		pickup = *req.PickupDate
	}
	delivery := pickup.AddDate(0, 0, defaultTransitDays)
	if req.DeliveryDate != nil {
		delivery = *req.DeliveryDate
	}

	stops, err := s.locations.ResolveAll(ctx, req.Stops)
	if err != nil {
		return nil, err
	}
	origin, dest, drops := laneEnds(stops)
	isMultistop := drops > 1

	hotshot := DetectHotshot(s.pricing.Hotshot, equipment, weight)
	if hotshot.IsHotshot {
		equipment = hotshot.APIEquipment
	}

	base := models.LaneQuery{
		OriginCity:  origin.City,
		OriginState: origin.State,
		DestCity:    dest.City,
		DestState:   dest.State,
		Equipment:   equipment,
		PickupDate:  pickup,
	}

	var dat *models.DATQuote
	if IsMultiEquipment(equipment) {
		equipment, dat = s.marketData.SelectEquipment(ctx, base, SplitEquipment(equipment))
		base.Equipment = equipment
	}

	var googleMiles *float64
	if isMultistop {
		miles, ok := s.routeMiles(ctx, stops)
		if !ok {
			return nil, utils.NewInputError("Google Miles calculation failed for multistop")
		}
		googleMiles = &miles
	}

	datQuery := base
	datQuery.EstimatedMiles = defaultEstimatedMiles
	if googleMiles != nil {
		datQuery.EstimatedMiles = *googleMiles
	}
	quotes := s.marketData.FetchAll(ctx, datQuery, base, dat)

	datMiles := quotes.DAT.Mileage()
	if datMiles <= 0 {
		datMiles = defaultEstimatedMiles
		if googleMiles != nil {
			datMiles = *googleMiles
		}
	}
	milesUsed := datMiles
	if googleMiles != nil {
		milesUsed = *googleMiles
	}

	lane := s.laneAnalyzer.Analyze(table, origin.Zip, dest.Zip, equipment, &pickup)

	var (
		rateRange *models.RateRange
		outlier   *models.OutlierInfo
		cost      float64
	)
	if req.CarrierCost.Auto {
		rateRange, outlier = s.autoCarrierCost(isMultistop, googleMiles, datMiles, milesUsed, drops, req.CustomerName, hotshot.Adjustment, &pickup, &delivery, quotes, &lane)
		if rateRange != nil {
			cost = rateRange.CarrierCost
		}
	} else {
		cost = req.CarrierCost.Amount.InexactFloat64()
		rateRange = &models.RateRange{
			CarrierCost:       cost,
			HotshotAdjustment: hotshot.Adjustment,
			Method:            methodFor(isMultistop),
		}
	}
	if cost <= 0 || math.IsNaN(cost) {
		return nil, utils.NewInputError("Could not determine carrier cost")
	}

	proposed := req.ProposedPrice.InexactFloat64()
	prc := s.validator.Validate(table, proposed, cost, origin.Zip, dest.Zip, req.CustomerName, outlier)

	combined := int(prc.ConfidenceScore*0.6 + float64(lane.HistConfidence)*0.4)
	suggested, adjusted := s.suggestedPrice(prc, cost)
	finalRating, marginFlag := s.finalRating(prc.Rating, proposed, cost, combined)

	loadType := models.LoadTypeSingleStop
	if isMultistop {
		loadType = models.LoadTypeMultistop
	}

	result := &models.AnalysisResult{
		ID:        uuid.NewString(),
		Timestamp: s.now(),
		LoadType:  loadType,
		Inputs: models.AnalysisInputs{
			ProposedPrice:     proposed,
			CarrierCost:       cost,
			CarrierCostInput:  req.CarrierCost.String(),
			Origin:            origin.Address(),
			Destination:       dest.Address(),
			OriginZip:         origin.Zip,
			DestinationZip:    dest.Zip,
			Stops:             stops,
			CustomerName:      req.CustomerName,
			EquipmentType:     equipment,
			OriginalEquipment: originalEquipment,
			Weight:            req.Weight,
			PickupDate:        pickup.Format(isoLocalLayout),
			DeliveryDate:      delivery.Format(isoLocalLayout),
		},
		Mileage: models.Mileage{
			GoogleMiles: googleMiles,
			DATMiles:    datMiles,
			MilesUsed:   milesUsed,
		},
		NegotiationRange:          rateRange,
		PRCValidation:             prc,
		IDAnalysis:                lane,
		DATData:                   quotes.DAT,
		GreenScreensData:          quotes.GreenScreens,
		MultistopOutlier:          outlier,
		CombinedConfidence:        combined,
		SuggestedPrice:            utils.Round(suggested, 2),
		SuggestedMarginPct:        (suggested - cost) / suggested * 100,
		PriceAdjustedForMinMargin: adjusted,
		FinalRating:               finalRating,
		MarginFlag:                marginFlag,
	}

	elapsed := s.now().Sub(start)
	s.metrics.RecordAnalysis(finalRating, loadType, elapsed.Seconds())
	s.logger.WithFields(logrus.Fields{
		"analysis_id":         result.ID,
		"load_type":           loadType,
		"origin":              result.Inputs.Origin,
		"destination":         result.Inputs.Destination,
		"equipment":           equipment,
		"carrier_cost":        utils.Round(cost, 2),
		"final_rating":        finalRating,
		"combined_confidence": combined,
		"suggested_price":     result.SuggestedPrice,
		"duration_ms":         elapsed.Milliseconds(),
	}).Info("Pricing analysis completed")

	return result, nil
}

// routeMiles asks the distance provider for the multistop route length.
func (s *AnalysisService) routeMiles(ctx context.Context, stops []models.ResolvedStop) (float64, bool) {
	if s.distance == nil {
		s.logger.Warn("Multistop route miles unavailable: no distance provider configured")
		return 0, false
	}
	var miles float64
	err := s.timeouts.Run(ctx, OpRouteCall, func(ctx context.Context) error {
		m, err := s.distance.RouteMiles(ctx, stops)
		miles = m
		return err
	})
	if err != nil || miles <= 0 {
		s.logger.WithFields(logrus.Fields{
			"stops": len(stops),
			"error": errorString(err),
		}).Warn("Route miles calculation failed")
		return 0, false
	}
	return miles, true
}

func (s *AnalysisService) autoCarrierCost(
	isMultistop bool,
	googleMiles *float64,
	datMiles, milesUsed float64,
	drops int,
	customer string,
	hotshotAdjustment float64,
	pickup, delivery *time.Time,
	quotes models.MarketQuotes,
	lane *models.LaneAnalysis,
) (*models.RateRange, *models.OutlierInfo) {
	if isMultistop {
		return s.multistop.Compute(MultistopInput{
			GoogleMiles:       *googleMiles,
			DATMiles:          datMiles,
			StopCount:         drops,
			CustomerName:      customer,
			Quotes:            quotes,
			HotshotAdjustment: hotshotAdjustment,
			Lane:              lane,
		})
	}

	r := s.negotiation.Compute(milesUsed, pickup, delivery, quotes, lane)
	if hotshotAdjustment != 1 {
		r.TargetRate = utils.RoundToNearest5(r.TargetRate * hotshotAdjustment)
		r.MaxBuy = utils.RoundToNearest5(r.MaxBuy * hotshotAdjustment)
		r.HotshotAdjustment = hotshotAdjustment
	}
	if r.TargetRate <= 0 || r.MaxBuy <= 0 {
		return nil, nil
	}
	r.CarrierCost = r.Midpoint()
	return &r, nil
}

// suggestedPrice picks the price to recommend and reports whether it was
// raised to meet the minimum margin.
func (s *AnalysisService) suggestedPrice(prc models.PRCResult, cost float64) (float64, bool) {
	var suggested float64
	switch {
	case prc.IndustrySuggestedPrice != nil && *prc.IndustrySuggestedPrice > 0:
		suggested = *prc.IndustrySuggestedPrice
	case prc.CustomerHistoricalMargin != nil:
		markup := prc.CustomerHistoricalMargin.MedianMarkup
		if markup <= 0 {
			markup = s.pricing.PRC.DefaultCustomerMarkup
		}
		suggested = cost * markup
	default:
		suggested = priceForMargin(cost, s.pricing.PRC.TargetMarginPct)
	}

	floor := priceForMargin(cost, s.pricing.PRC.MinimumMarginPct)
	if suggested < floor {
		return floor, true
	}
	return suggested, false
}

func (s *AnalysisService) finalRating(prcRating string, proposed, cost float64, combined int) (string, string) {
	margin := (proposed - cost) / proposed * 100
	if margin < s.pricing.PRC.MinimumMarginPct {
		return models.RatingPoor, models.MarginFlagBelowMinimum
	}
	switch {
	case (prcRating == models.RatingRisky || prcRating == models.RatingPoor) && combined < 50:
		return models.RatingNeedsReview, ""
	case prcRating == models.RatingAcceptable && combined > 80:
		return models.RatingGood, ""
	}
	return prcRating, ""
}

// laneEnds returns the first PICKUP, the last DROP and the number of drops.
func laneEnds(stops []models.ResolvedStop) (models.ResolvedStop, models.ResolvedStop, int) {
	var origin, dest models.ResolvedStop
	foundPickup := false
	drops := 0
	for _, s := range stops {
		switch s.Type {
		case models.StopPickup:
			if !foundPickup {
				origin, foundPickup = s, true
			}
		case models.StopDrop:
			dest = s
			drops++
		}
	}
	return origin, dest, drops
}

func methodFor(multistop bool) string {
	if multistop {
		return models.MethodMultistop
	}
	return models.MethodSingleStop
}

// Decide turns a result into the executive decision shown to sales.
func Decide(r *models.AnalysisResult) models.Decision {
	d := models.Decision{
		Rating:         r.FinalRating,
		Confidence:     r.CombinedConfidence,
		LoadType:       r.LoadType,
		ProposedMargin: r.PRCValidation.ProposedMarginPct,
		MarginWarning:  r.MarginFlag == models.MarginFlagBelowMinimum,
		SuggestedPrice: r.SuggestedPrice,
	}

	switch {
	case r.FinalRating == models.RatingNoData:
		d.Decision = models.DecisionNeedsManualReview
		d.Reason = "No historical data available"
	case r.CombinedConfidence < 30:
		d.Decision = models.DecisionNeedsManualReview
		d.Reason = fmt.Sprintf("Confidence too low (%d%%)", r.CombinedConfidence)
	case r.FinalRating == models.RatingExcellent || r.FinalRating == models.RatingGood:
		d.Decision = models.DecisionApprove
		d.Reason = "Price is in line with history and market"
	case r.FinalRating == models.RatingAcceptable && r.CombinedConfidence >= 60:
		d.Decision = models.DecisionReview
		d.Reason = "Acceptable with good confidence"
	case r.FinalRating == models.RatingAcceptable:
		d.Decision = models.DecisionNeedsManualReview
		d.Reason = "Low confidence"
	default:
		d.Decision = models.DecisionRejectRenegotiate
		d.Reason = fmt.Sprintf("Rated %s", r.FinalRating)
	}

	d.PriceDelta = utils.Round(r.SuggestedPrice-r.Inputs.ProposedPrice, 2)
	switch {
	case r.CombinedConfidence < 30:
		d.PriceAction = models.PriceActionInsufficientData
		d.Notes = []string{
			"Verify similar historical loads exist",
			"Check if lane/customer combination is new",
			"Consider manual price review",
		}
	case math.Abs(d.PriceDelta) > 100 && d.PriceDelta > 0:
		d.PriceAction = models.PriceActionIncrease
	case math.Abs(d.PriceDelta) > 100:
		d.PriceAction = models.PriceActionReduce
	default:
		d.PriceAction = models.PriceActionKeep
	}
	return d
}
