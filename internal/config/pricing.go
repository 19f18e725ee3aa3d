package config

import (
	"fmt"

	"github.com/creasty/defaults"
)

// PricingConfig holds every tunable threshold of the pricing engine. The
// default tags mirror setDefaults so policies can be built without viper.
type PricingConfig struct {
	Hotshot          HotshotConfig     `mapstructure:"hotshot" json:"hotshot"`
	Multistop        MultistopConfig   `mapstructure:"multistop" json:"multistop"`
	Negotiation      NegotiationConfig `mapstructure:"negotiation" json:"negotiation"`
	ID               IDConfig          `mapstructure:"id" json:"id"`
	PRC              PRCConfig         `mapstructure:"prc" json:"prc"`
	RatingThresholds RatingThresholds  `mapstructure:"rating_thresholds" json:"rating_thresholds"`
	SegmentsFile     string            `mapstructure:"segments_file" json:"segments_file" default:"configs/segments.yaml"`
}

type HotshotConfig struct {
	Enabled         bool    `mapstructure:"enabled" json:"enabled" default:"true"`
	WeightThreshold float64 `mapstructure:"weight_threshold" json:"weight_threshold" default:"10000"`
	MapToEquipment  string  `mapstructure:"map_to_equipment" json:"map_to_equipment" default:"FLATBED"`
	HeavyAdjustment float64 `mapstructure:"heavy_adjustment" json:"heavy_adjustment" default:"0.80"`
	LightAdjustment float64 `mapstructure:"light_adjustment" json:"light_adjustment" default:"0.65"`
}

// MultistopConfig drives the three multistop regimes. Stop charges by
// mileage band are indexed low/medium/high.
type MultistopConfig struct {
	HistoricalMinConfidence int     `mapstructure:"historical_min_confidence" json:"historical_min_confidence" default:"40"`
	HistoricalMinRecords    int     `mapstructure:"historical_min_records" json:"historical_min_records" default:"3"`
	OutlierDeviation        float64 `mapstructure:"outlier_deviation" json:"outlier_deviation" default:"0.30"`
	OutlierStopCharge       float64 `mapstructure:"outlier_stop_charge" json:"outlier_stop_charge" default:"50"`
	OutlierTargetFactor     float64 `mapstructure:"outlier_target_factor" json:"outlier_target_factor" default:"0.95"`
	OutlierMaxFactor        float64 `mapstructure:"outlier_max_factor" json:"outlier_max_factor" default:"1.05"`
	DefaultLaneMarkup       float64 `mapstructure:"default_lane_markup" json:"default_lane_markup" default:"1.20"`
	DefaultLaneMarginPct    float64 `mapstructure:"default_lane_margin_pct" json:"default_lane_margin_pct" default:"15"`

	MilesBandLowPct  float64 `mapstructure:"miles_band_low_pct" json:"miles_band_low_pct" default:"20"`
	MilesBandHighPct float64 `mapstructure:"miles_band_high_pct" json:"miles_band_high_pct" default:"40"`

	HighComplexityStopCharges []float64 `mapstructure:"high_complexity_stop_charges" json:"high_complexity_stop_charges" default:"[150,200,250]"`
	StandardStopCharges       []float64 `mapstructure:"standard_stop_charges" json:"standard_stop_charges" default:"[50,75,100]"`
	HistoricalTargetFactor    float64   `mapstructure:"historical_target_factor" json:"historical_target_factor" default:"0.98"`
	HistoricalMaxFactor       float64   `mapstructure:"historical_max_factor" json:"historical_max_factor" default:"1.03"`

	MilesPerDay               float64 `mapstructure:"miles_per_day" json:"miles_per_day" default:"500"`
	LayoverThresholdDays      float64 `mapstructure:"layover_threshold_days" json:"layover_threshold_days" default:"1.5"`
	LayoverRate               float64 `mapstructure:"layover_rate" json:"layover_rate" default:"200"`
	LayoverRateHighComplexity float64 `mapstructure:"layover_rate_high_complexity" json:"layover_rate_high_complexity" default:"125"`

	VariableStopChargeHighComplexity float64   `mapstructure:"variable_stop_charge_high_complexity" json:"variable_stop_charge_high_complexity" default:"150"`
	VariableStopCharge               float64   `mapstructure:"variable_stop_charge" json:"variable_stop_charge" default:"75"`
	VariableStopBandMultipliers      []float64 `mapstructure:"variable_stop_band_multipliers" json:"variable_stop_band_multipliers" default:"[0.67,1,1.33]"`
	ExtraStopsBonusMinStops          int       `mapstructure:"extra_stops_bonus_min_stops" json:"extra_stops_bonus_min_stops" default:"4"`
	ExtraStopsBonusDivisor           float64   `mapstructure:"extra_stops_bonus_divisor" json:"extra_stops_bonus_divisor" default:"4"`
	ExtraStopsBonusMultiplier        float64   `mapstructure:"extra_stops_bonus_multiplier" json:"extra_stops_bonus_multiplier" default:"100"`
	Markup                           float64   `mapstructure:"markup" json:"markup" default:"0.02"`
	FallbackSpreadFactor             float64   `mapstructure:"fallback_spread_factor" json:"fallback_spread_factor" default:"1.10"`
	MinimumSpread                    float64   `mapstructure:"minimum_spread" json:"minimum_spread" default:"50"`
}

// NegotiationTier is one row of the historical tier table. Tiers are
// evaluated in order; the first whose thresholds are met wins.
type NegotiationTier struct {
	Name             string  `mapstructure:"name" json:"name"`
	MinConfidence    int     `mapstructure:"min_confidence" json:"min_confidence"`
	MaxConfidence    int     `mapstructure:"max_confidence" json:"max_confidence"`
	MinRecords       int     `mapstructure:"min_records" json:"min_records"`
	HistoricalWeight float64 `mapstructure:"historical_weight" json:"historical_weight"`
	TargetFactor     float64 `mapstructure:"target_factor" json:"target_factor"`
	MaxFactor        float64 `mapstructure:"max_factor" json:"max_factor"`
}

// StrongTierConfig tunes the market cushion applied to strong history.
type StrongTierConfig struct {
	MinConfidence       int     `mapstructure:"min_confidence" json:"min_confidence" default:"80"`
	MinRecords          int     `mapstructure:"min_records" json:"min_records" default:"8"`
	SpreadFactor        float64 `mapstructure:"spread_factor" json:"spread_factor" default:"1.05"`
	ExcellentConfidence int     `mapstructure:"excellent_confidence" json:"excellent_confidence" default:"90"`
	ExcellentRecords    int     `mapstructure:"excellent_records" json:"excellent_records" default:"20"`
	HighConfidence      int     `mapstructure:"high_confidence" json:"high_confidence" default:"85"`
	HighRecords         int     `mapstructure:"high_records" json:"high_records" default:"15"`
	HighTrend           float64 `mapstructure:"high_trend" json:"high_trend" default:"0.20"`
	HighCushion         float64 `mapstructure:"high_cushion" json:"high_cushion" default:"1.05"`
	ModerateTrendHigh   float64 `mapstructure:"moderate_trend_high" json:"moderate_trend_high" default:"0.15"`
	ModerateCushionHigh float64 `mapstructure:"moderate_cushion_high" json:"moderate_cushion_high" default:"1.03"`
	ModerateTrendLow    float64 `mapstructure:"moderate_trend_low" json:"moderate_trend_low" default:"0.10"`
	ModerateCushionLow  float64 `mapstructure:"moderate_cushion_low" json:"moderate_cushion_low" default:"1.02"`
}

type NegotiationConfig struct {
	TransitDaysDefault    int               `mapstructure:"transit_days_default" json:"transit_days_default" default:"2"`
	CapacitySensitivity   float64           `mapstructure:"capacity_sensitivity" json:"capacity_sensitivity" default:"0.15"`
	LowCapacityCompanies  int               `mapstructure:"low_capacity_companies" json:"low_capacity_companies" default:"5"`
	HighCapacityCompanies int               `mapstructure:"high_capacity_companies" json:"high_capacity_companies" default:"20"`
	WeekendPenalty        float64           `mapstructure:"weekend_penalty" json:"weekend_penalty" default:"50"`
	LongHaulThreshold     float64           `mapstructure:"long_haul_threshold" json:"long_haul_threshold" default:"700"`
	ShortHaulThreshold    float64           `mapstructure:"short_haul_threshold" json:"short_haul_threshold" default:"200"`
	MinimumMarginBuffer   float64           `mapstructure:"minimum_margin_buffer" json:"minimum_margin_buffer" default:"100"`
	FallbackRatePerMile   float64           `mapstructure:"fallback_rate_per_mile" json:"fallback_rate_per_mile" default:"2.50"`
	FallbackSpread        float64           `mapstructure:"fallback_spread" json:"fallback_spread" default:"1.15"`
	MarketSpread          float64           `mapstructure:"market_spread" json:"market_spread" default:"1.10"`
	DefaultGSConfidence   float64           `mapstructure:"default_gs_confidence" json:"default_gs_confidence" default:"50"`
	MinimumSpread         float64           `mapstructure:"minimum_spread" json:"minimum_spread" default:"50"`
	Strong                StrongTierConfig  `mapstructure:"strong" json:"strong"`
	Tiers                 []NegotiationTier `mapstructure:"tiers" json:"tiers"`
}

type IDConfig struct {
	LookbackDays   int    `mapstructure:"lookback_days" json:"lookback_days" default:"90"`
	FallbackToYear bool   `mapstructure:"fallback_to_year" json:"fallback_to_year" default:"true"`
	EquipmentMatch string `mapstructure:"equipment_match" json:"equipment_match" default:"contains"`
	StopTypeFilter string `mapstructure:"stop_type_filter" json:"stop_type_filter" default:"UNIQUE STOP"`
}

type PRCConfig struct {
	MinLoadsForMatch      int     `mapstructure:"min_loads_for_match" json:"min_loads_for_match" default:"3"`
	EnableZip4Fallback    bool    `mapstructure:"enable_zip4_fallback" json:"enable_zip4_fallback" default:"true"`
	EnableZip3Fallback    bool    `mapstructure:"enable_zip3_fallback" json:"enable_zip3_fallback" default:"true"`
	MinimumMarginPct      float64 `mapstructure:"minimum_margin_pct" json:"minimum_margin_pct" default:"5"`
	MaximumMarginPct      float64 `mapstructure:"maximum_margin_pct" json:"maximum_margin_pct" default:"35"`
	TargetMarginPct       float64 `mapstructure:"target_margin_pct" json:"target_margin_pct" default:"16"`
	WarningMarginHigh     float64 `mapstructure:"warning_margin_high" json:"warning_margin_high" default:"30"`
	RecentDays            int     `mapstructure:"recent_days" json:"recent_days" default:"90"`
	CustomerMinLoads      int     `mapstructure:"customer_min_loads" json:"customer_min_loads" default:"5"`
	CustomerQualifyLoads  int     `mapstructure:"customer_qualify_loads" json:"customer_qualify_loads" default:"3"`
	DefaultCustomerMarkup float64 `mapstructure:"default_customer_markup" json:"default_customer_markup" default:"1.20"`
	LimitedRecentLoads    int     `mapstructure:"limited_recent_loads" json:"limited_recent_loads" default:"3"`
}

// RatingThresholds are the maximum absolute markup deviation (percent) for
// each rating band. Anything above Risky is POOR.
type RatingThresholds struct {
	Excellent  float64 `mapstructure:"excellent" json:"excellent" default:"5"`
	Good       float64 `mapstructure:"good" json:"good" default:"10"`
	Acceptable float64 `mapstructure:"acceptable" json:"acceptable" default:"15"`
	Risky      float64 `mapstructure:"risky" json:"risky" default:"25"`
}

// DefaultTiers is the historical blend table used when none is configured.
func DefaultTiers() []NegotiationTier {
	return []NegotiationTier{
		{Name: "good", MinConfidence: 60, MaxConfidence: 101, MinRecords: 3, HistoricalWeight: 0.7, TargetFactor: 0.97, MaxFactor: 1.08},
		{Name: "moderate", MinConfidence: 50, MaxConfidence: 60, MinRecords: 2, HistoricalWeight: 0.6, TargetFactor: 0.96, MaxFactor: 1.09},
		{Name: "acceptable", MinConfidence: 40, MaxConfidence: 50, MinRecords: 1, HistoricalWeight: 0.5, TargetFactor: 0.95, MaxFactor: 1.10},
	}
}

// DefaultPricing returns the pricing policy with every default applied.
func DefaultPricing() PricingConfig {
	var p PricingConfig
	if err := defaults.Set(&p); err != nil {
		// default tags are static; a failure here is a programming error
		panic(fmt.Sprintf("pricing defaults: %v", err))
	}
	p.Negotiation.Tiers = DefaultTiers()
	return p
}

// Validate rejects policies the calculators cannot evaluate.
func (p PricingConfig) Validate() error {
	if len(p.Multistop.HighComplexityStopCharges) != 3 || len(p.Multistop.StandardStopCharges) != 3 {
		return fmt.Errorf("multistop stop charges need exactly three bands")
	}
	if len(p.Multistop.VariableStopBandMultipliers) != 3 {
		return fmt.Errorf("multistop variable stop multipliers need exactly three bands")
	}
	if p.PRC.MinimumMarginPct >= p.PRC.MaximumMarginPct {
		return fmt.Errorf("prc minimum margin %.1f must be below maximum %.1f", p.PRC.MinimumMarginPct, p.PRC.MaximumMarginPct)
	}
	if p.PRC.TargetMarginPct <= 0 || p.PRC.TargetMarginPct >= 100 {
		return fmt.Errorf("prc target margin must be between 0 and 100, got %.1f", p.PRC.TargetMarginPct)
	}
	switch p.ID.EquipmentMatch {
	case "contains", "exact":
	default:
		return fmt.Errorf("id equipment_match must be contains or exact, got %q", p.ID.EquipmentMatch)
	}
	t := p.RatingThresholds
	if !(t.Excellent <= t.Good && t.Good <= t.Acceptable && t.Acceptable <= t.Risky) {
		return fmt.Errorf("rating thresholds must be ascending")
	}
	return nil
}
