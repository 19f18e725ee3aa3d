package dat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// Escalation modes, tried in order until one returns a rate.
const (
	ModeMinimum  = "minimum"
	ModeFallback = "fallback"
	ModeStrict   = "strict"
)

// DefaultFuelPerMile is used when DAT reports no fuel surcharge.
const DefaultFuelPerMile = 0.37

const forecastDays = 8

var (
	// ErrNoRate is returned when no escalation mode produced a rate.
	ErrNoRate = errors.New("dat: no rate available for lane")
	// ErrNotConfigured is returned when credentials or endpoints are missing.
	ErrNotConfigured = errors.New("dat: credentials not configured")
)

var escalations = []struct {
	mode string
	body map[string]string
}{
	{ModeMinimum, map[string]string{
		"escalationType":   "MINIMUM_AREA_TYPE_AND_MINIMUM_TIME_FRAME",
		"minimumTimeFrame": "7_DAYS",
		"minimumAreaType":  "MARKET_AREA",
	}},
	{ModeFallback, map[string]string{
		"escalationType": "BEST_FIT",
	}},
	{ModeStrict, map[string]string{
		"escalationType":    "SPECIFIC_AREA_TYPE_AND_SPECIFIC_TIME_FRAME",
		"specificTimeFrame": "7_DAYS",
		"specificAreaType":  "MARKET_AREA",
	}},
}

var _ interfaces.MarketRateProvider = (*Client)(nil)

// Client talks to the DAT rate view and forecast APIs.
type Client struct {
	HTTPClient *http.Client
	cfg        config.DATConfig
	logger     *logrus.Logger
}

// NewClient creates a DAT client. timeout bounds each HTTP call.
func NewClient(cfg config.DATConfig, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// FetchRates authenticates, looks up the current spot rate and, when the
// query carries an estimated distance, the 8-day forecast.
func (c *Client) FetchRates(ctx context.Context, q models.LaneQuery) (*models.DATQuote, error) {
	if !c.cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	token, err := c.userToken(ctx)
	if err != nil {
		return nil, err
	}

	equipment := models.APIEquipment(q.Equipment)
	current, err := c.currentRate(ctx, token, q, equipment)
	if err != nil {
		return nil, err
	}

	quote := &models.DATQuote{Equipment: q.Equipment, Current: current}
	if c.cfg.ForecastURL != "" && q.EstimatedMiles > 0 {
		forecast, err := c.forecast(ctx, token, q, equipment, current.FuelPerMile)
		if err != nil {
			c.logger.WithError(err).Debug("DAT forecast unavailable")
		} else {
			quote.Forecast = forecast
		}
	}
	return quote, nil
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// userToken runs the two-step org then user token exchange.
func (c *Client) userToken(ctx context.Context) (string, error) {
	var org tokenResponse
	err := c.postJSON(ctx, c.cfg.OrgTokenURL, "", map[string]string{
		"username": c.cfg.OrgUsername,
		"password": c.cfg.OrgPassword,
	}, &org)
	if err != nil {
		return "", fmt.Errorf("failed to get DAT org token: %w", err)
	}
	if org.AccessToken == "" {
		return "", errors.New("dat: empty org token")
	}

	var user tokenResponse
	err = c.postJSON(ctx, c.cfg.UserTokenURL, org.AccessToken, map[string]string{
		"username": c.cfg.UserEmail,
	}, &user)
	if err != nil {
		return "", fmt.Errorf("failed to get DAT user token: %w", err)
	}
	if user.AccessToken == "" {
		return "", errors.New("dat: empty user token")
	}
	return user.AccessToken, nil
}

type place struct {
	City            string `json:"city"`
	StateOrProvince string `json:"stateOrProvince"`
}

type rateRequest struct {
	Origin           place             `json:"origin"`
	Destination      place             `json:"destination"`
	RateType         string            `json:"rateType"`
	Equipment        string            `json:"equipment"`
	IncludeMyRate    bool              `json:"includeMyRate"`
	TargetEscalation map[string]string `json:"targetEscalation"`
	RateTimePeriod   map[string]string `json:"rateTimePeriod"`
}

type perTrip struct {
	RateUSD float64 `json:"rateUsd"`
	HighUSD float64 `json:"highUsd"`
	LowUSD  float64 `json:"lowUsd"`
}

type rateResponse struct {
	RateResponses []struct {
		Response struct {
			Rate *struct {
				Mileage                 float64  `json:"mileage"`
				PerTrip                 *perTrip `json:"perTrip"`
				FuelSurchargePerMileUSD *float64 `json:"averageFuelSurchargePerMileUsd"`
				FuelSurchargePerTripUSD *float64 `json:"averageFuelSurchargePerTripUsd"`
				Reports                 int      `json:"reports"`
				Companies               *int     `json:"companies"`
			} `json:"rate"`
		} `json:"response"`
	} `json:"rateResponses"`
}

func (c *Client) currentRate(ctx context.Context, token string, q models.LaneQuery, equipment string) (*models.DATCurrentRate, error) {
	for _, esc := range escalations {
		payload := []rateRequest{{
			Origin:           place{City: q.OriginCity, StateOrProvince: q.OriginState},
			Destination:      place{City: q.DestCity, StateOrProvince: q.DestState},
			RateType:         "SPOT",
			Equipment:        equipment,
			TargetEscalation: esc.body,
			RateTimePeriod:   map[string]string{"rateTense": "CURRENT"},
		}}

		var resp rateResponse
		if err := c.postJSON(ctx, c.cfg.RateLookupURL, token, payload, &resp); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.WithFields(logrus.Fields{
				"mode":  esc.mode,
				"error": err.Error(),
			}).Debug("DAT rate lookup failed")
			continue
		}
		if len(resp.RateResponses) == 0 {
			continue
		}
		rate := resp.RateResponses[0].Response.Rate
		if rate == nil || rate.PerTrip == nil || rate.Mileage <= 0 {
			continue
		}

		fuelPerMile := DefaultFuelPerMile
		switch {
		case rate.FuelSurchargePerMileUSD != nil && *rate.FuelSurchargePerMileUSD != 0:
			fuelPerMile = *rate.FuelSurchargePerMileUSD
		case rate.FuelSurchargePerTripUSD != nil && *rate.FuelSurchargePerTripUSD != 0:
			fuelPerMile = *rate.FuelSurchargePerTripUSD / rate.Mileage
		}
		fuelPerMile = utils.Round(fuelPerMile, 2)
		fuelTotal := utils.Round(fuelPerMile*rate.Mileage, 2)

		linehaul := utils.Round(rate.PerTrip.RateUSD, 2)
		high := utils.Round(rate.PerTrip.HighUSD, 2)
		low := utils.Round(rate.PerTrip.LowUSD, 2)

		c.logger.WithFields(logrus.Fields{
			"mode":     esc.mode,
			"linehaul": linehaul,
			"fuel":     fuelTotal,
			"mileage":  rate.Mileage,
		}).Debug("DAT rate found")

		return &models.DATCurrentRate{
			RateUSD:             utils.Round(rate.PerTrip.RateUSD/rate.Mileage, 2),
			HighUSD:             utils.Round(rate.PerTrip.HighUSD/rate.Mileage, 2),
			LowUSD:              utils.Round(rate.PerTrip.LowUSD/rate.Mileage, 2),
			Mileage:             rate.Mileage,
			FuelPerMile:         fuelPerMile,
			FuelTotalUSD:        fuelTotal,
			LinehaulForecastUSD: linehaul,
			LinehaulHighUSD:     high,
			LinehaulLowUSD:      low,
			TotalForecastUSD:    utils.Round(linehaul+fuelTotal, 2),
			TotalHighUSD:        utils.Round(high+fuelTotal, 2),
			TotalLowUSD:         utils.Round(low+fuelTotal, 2),
			Reports:             rate.Reports,
			Companies:           rate.Companies,
			Source:              esc.mode,
		}, nil
	}
	return nil, ErrNoRate
}

type forecastPlace struct {
	City      string `json:"city"`
	StateProv string `json:"stateProv"`
}

type forecastRequest struct {
	Origin            forecastPlace `json:"origin"`
	Destination       forecastPlace `json:"destination"`
	EquipmentCategory string        `json:"equipmentCategory"`
	ForecastPeriod    string        `json:"forecastPeriod"`
}

type forecastResponse struct {
	Forecasts struct {
		PerMile []struct {
			ForecastDate string  `json:"forecastDate"`
			ForecastUSD  float64 `json:"forecastUSD"`
			Mae          struct {
				HighUSD float64 `json:"highUSD"`
				LowUSD  float64 `json:"lowUSD"`
			} `json:"mae"`
		} `json:"perMile"`
	} `json:"forecasts"`
}

func (c *Client) forecast(ctx context.Context, token string, q models.LaneQuery, equipment string, fuelPerMile float64) (*models.DATForecast, error) {
	payload := forecastRequest{
		Origin:            forecastPlace{City: q.OriginCity, StateProv: q.OriginState},
		Destination:       forecastPlace{City: q.DestCity, StateProv: q.DestState},
		EquipmentCategory: equipment,
		ForecastPeriod:    "8DAYS",
	}

	var resp forecastResponse
	if err := c.postJSON(ctx, c.cfg.ForecastURL, token, payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Forecasts.PerMile) < forecastDays {
		return nil, fmt.Errorf("dat: forecast has %d days, want %d", len(resp.Forecasts.PerMile), forecastDays)
	}

	f := resp.Forecasts.PerMile[forecastDays-1]
	miles := q.EstimatedMiles
	perMile := utils.Round(f.ForecastUSD, 2)
	high := utils.Round(f.Mae.HighUSD, 2)
	low := utils.Round(f.Mae.LowUSD, 2)
	fuelTotal := utils.Round(fuelPerMile*miles, 2)
	linehaul := utils.Round(perMile*miles, 2)
	linehaulHigh := utils.Round(high*miles, 2)
	linehaulLow := utils.Round(low*miles, 2)

	return &models.DATForecast{
		ForecastDate:        f.ForecastDate,
		ForecastUSD:         perMile,
		MaeHighUSD:          high,
		MaeLowUSD:           low,
		FuelPerMile:         fuelPerMile,
		FuelTotalUSD:        fuelTotal,
		LinehaulForecastUSD: linehaul,
		LinehaulHighUSD:     linehaulHigh,
		LinehaulLowUSD:      linehaulLow,
		TotalForecastUSD:    utils.Round(linehaul+fuelTotal, 2),
		TotalHighUSD:        utils.Round(linehaulHigh+fuelTotal, 2),
		TotalLowUSD:         utils.Round(linehaulLow+fuelTotal, 2),
	}, nil
}

func (c *Client) postJSON(ctx context.Context, url, bearer string, body interface{}, result interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Debug("Failed to close DAT response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("DAT API error (%d): %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
