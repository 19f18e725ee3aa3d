package models

import (
	"strings"
	"time"
)

// LaneQuery identifies a lane for market-rate providers
type LaneQuery struct {
	OriginCity     string    `json:"origin_city"`
	OriginState    string    `json:"origin_state"`
	DestCity       string    `json:"dest_city"`
	DestState      string    `json:"dest_state"`
	Equipment      string    `json:"equipment"`
	PickupDate     time.Time `json:"pickup_date"`
	EstimatedMiles float64   `json:"estimated_miles"`
}

// DATCurrentRate is the current spot rate. Per-mile figures exclude fuel;
// totals include it.
type DATCurrentRate struct {
	RateUSD             float64 `json:"rateUsd"`
	HighUSD             float64 `json:"highUsd"`
	LowUSD              float64 `json:"lowUsd"`
	Mileage             float64 `json:"mileage"`
	FuelPerMile         float64 `json:"fuel_per_mile"`
	FuelTotalUSD        float64 `json:"fuel_totalUSD"`
	LinehaulForecastUSD float64 `json:"linehaul_forecastUSD"`
	LinehaulHighUSD     float64 `json:"linehaul_mae_highUSD"`
	LinehaulLowUSD      float64 `json:"linehaul_mae_lowUSD"`
	TotalForecastUSD    float64 `json:"total_forecastUSD"`
	TotalHighUSD        float64 `json:"total_mae_highUSD"`
	TotalLowUSD         float64 `json:"total_mae_lowUSD"`
	Reports             int     `json:"reports"`
	Companies           *int    `json:"companies,omitempty"`
	Source              string  `json:"source"`
}

// DATForecast is the 8-day forecast scaled to the estimated miles
type DATForecast struct {
	ForecastDate        string  `json:"forecastDate"`
	ForecastUSD         float64 `json:"forecastUSD"`
	MaeHighUSD          float64 `json:"mae_highUSD"`
	MaeLowUSD           float64 `json:"mae_lowUSD"`
	FuelPerMile         float64 `json:"fuel_per_mile"`
	FuelTotalUSD        float64 `json:"fuel_totalUSD"`
	LinehaulForecastUSD float64 `json:"linehaul_forecastUSD"`
	LinehaulHighUSD     float64 `json:"linehaul_mae_highUSD"`
	LinehaulLowUSD      float64 `json:"linehaul_mae_lowUSD"`
	TotalForecastUSD    float64 `json:"total_forecastUSD"`
	TotalHighUSD        float64 `json:"total_mae_highUSD"`
	TotalLowUSD         float64 `json:"total_mae_lowUSD"`
}

// DATQuote bundles the DAT current rate and forecast
type DATQuote struct {
	Equipment string          `json:"equipment,omitempty"`
	Current   *DATCurrentRate `json:"rates_mci,omitempty"`
	Forecast  *DATForecast    `json:"forecast,omitempty"`
}

// CurrentTotal returns the current total forecast, or 0 when absent.
func (q *DATQuote) CurrentTotal() float64 {
	if q == nil || q.Current == nil {
		return 0
	}
	return q.Current.TotalForecastUSD
}

// Mileage returns the DAT mileage, or 0 when absent.
func (q *DATQuote) Mileage() float64 {
	if q == nil || q.Current == nil {
		return 0
	}
	return q.Current.Mileage
}

// GreenScreensRate is one GreenScreens prediction block
type GreenScreensRate struct {
	Source          string   `json:"source"`
	ConfidenceLevel *float64 `json:"confidenceLevel,omitempty"`
	Distance        float64  `json:"distance"`
	FuelRate        float64  `json:"fuelRate"`
	RateLowBuy      float64  `json:"rate_lowBuyRate"`
	RateHighBuy     float64  `json:"rate_highBuyRate"`
	RateStartBuy    float64  `json:"rate_startBuyRate"`
	RateTargetBuy   float64  `json:"rate_targetBuyRate"`
	TotalLowBuy     float64  `json:"total_lowBuyRate"`
	TotalHighBuy    float64  `json:"total_highBuyRate"`
	TotalStartBuy   float64  `json:"total_startBuyRate"`
	TotalTargetBuy  float64  `json:"total_targetBuyRate"`
}

// GreenScreensQuote carries the forecast and network predictions
type GreenScreensQuote struct {
	Forecast *GreenScreensRate `json:"RateForecast,omitempty"`
	Network  *GreenScreensRate `json:"RateNetwork,omitempty"`
}

// MarketQuotes holds whatever the market providers returned
type MarketQuotes struct {
	DAT          *DATQuote          `json:"dat,omitempty"`
	GreenScreens *GreenScreensQuote `json:"greenscreens,omitempty"`
}

// Pool collects the non-zero market totals used as the market reference:
// DAT current, DAT forecast, then GreenScreens forecast (target, high, low).
func (m MarketQuotes) Pool() []float64 {
	var pool []float64
	add := func(vs ...float64) {
		for _, v := range vs {
			if v != 0 {
				pool = append(pool, v)
			}
		}
	}
	if m.DAT != nil {
		if c := m.DAT.Current; c != nil {
			add(c.TotalForecastUSD, c.TotalHighUSD, c.TotalLowUSD)
		}
		if f := m.DAT.Forecast; f != nil {
			add(f.TotalForecastUSD, f.TotalHighUSD, f.TotalLowUSD)
		}
	}
	if m.GreenScreens != nil && m.GreenScreens.Forecast != nil {
		f := m.GreenScreens.Forecast
		add(f.TotalTargetBuy, f.TotalHighBuy, f.TotalLowBuy)
	}
	return pool
}

// OutlierPool collects the positive DAT current and GreenScreens forecast
// totals used for multistop outlier detection.
func (m MarketQuotes) OutlierPool() []float64 {
	var pool []float64
	add := func(vs ...float64) {
		for _, v := range vs {
			if v > 0 {
				pool = append(pool, v)
			}
		}
	}
	if m.DAT != nil && m.DAT.Current != nil {
		c := m.DAT.Current
		add(c.TotalForecastUSD, c.TotalHighUSD, c.TotalLowUSD)
	}
	if m.GreenScreens != nil && m.GreenScreens.Forecast != nil {
		f := m.GreenScreens.Forecast
		add(f.TotalTargetBuy, f.TotalHighBuy, f.TotalLowBuy)
	}
	return pool
}

// GreenScreensConfidence returns the forecast confidence level, or def.
func (m MarketQuotes) GreenScreensConfidence(def float64) float64 {
	if m.GreenScreens == nil || m.GreenScreens.Forecast == nil || m.GreenScreens.Forecast.ConfidenceLevel == nil {
		return def
	}
	return *m.GreenScreens.Forecast.ConfidenceLevel
}

var apiEquipmentMap = []struct{ contains, mapped string }{
	{"VAN", "VAN"},
	{"DRY VAN", "VAN"},
	{"STRAIGHT VAN", "VAN"},
	{"REEFER", "REEFER"},
	{"FLATBED", "FLATBED"},
}

// APIEquipment maps a free-text equipment type to the category the rate
// providers accept. Unknown types map to VAN.
func APIEquipment(equipment string) string {
	upper := strings.ToUpper(strings.TrimSpace(equipment))
	for _, m := range apiEquipmentMap {
		if strings.Contains(upper, m.contains) {
			return m.mapped
		}
	}
	return "VAN"
}
