package greenscreens

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	forecastPath = "/v3/prediction/rates"
	networkPath  = "/v3/prediction/network-rates"
	pickupLayout = "2006-01-02T00:00:00Z"
)

var (
	// ErrNoPrediction is returned when neither prediction endpoint answered.
	ErrNoPrediction = errors.New("greenscreens: no prediction available for lane")
	// ErrNotConfigured is returned when client credentials are missing.
	ErrNotConfigured = errors.New("greenscreens: credentials not configured")
)

var _ interfaces.SecondaryMarketRateProvider = (*Client)(nil)

// Client queries the GreenScreens prediction API. Tokens come from the
// client-credentials grant and are reused until they expire.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	enabled    bool
	logger     *logrus.Logger
}

// NewClient creates a client. timeout bounds each HTTP call, including the
// token request.
func NewClient(cfg config.GreenScreensConfig, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.AuthURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	base := &http.Client{Timeout: timeout}
	httpClient := cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	httpClient.Timeout = timeout

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.greenscreens.ai"
	}
	return &Client{
		HTTPClient: httpClient,
		BaseURL:    baseURL,
		enabled:    cfg.Enabled(),
		logger:     logger,
	}
}

type stop struct {
	Order   int    `json:"order"`
	Country string `json:"country"`
	City    string `json:"city"`
	State   string `json:"state"`
}

type predictionRequest struct {
	PickupDateTime string `json:"pickupDateTime"`
	TransportType  string `json:"transportType"`
	Stops          []stop `json:"stops"`
	Commodity      string `json:"commodity"`
	Tag            string `json:"tag"`
	Currency       string `json:"currency"`
}

type predictionResponse struct {
	ConfidenceLevel *float64 `json:"confidenceLevel"`
	Distance        float64  `json:"distance"`
	FuelRate        float64  `json:"fuelRate"`
	LowBuyRate      float64  `json:"lowBuyRate"`
	HighBuyRate     float64  `json:"highBuyRate"`
	StartBuyRate    float64  `json:"startBuyRate"`
	TargetBuyRate   float64  `json:"targetBuyRate"`
}

// FetchRates calls the forecast and network endpoints. Either may fail; the
// call succeeds when at least one block is returned.
func (c *Client) FetchRates(ctx context.Context, q models.LaneQuery) (*models.GreenScreensQuote, error) {
	if !c.enabled {
		return nil, ErrNotConfigured
	}

	payload := predictionRequest{
		PickupDateTime: q.PickupDate.UTC().Format(pickupLayout),
		TransportType:  models.APIEquipment(q.Equipment),
		Stops: []stop{
			{Order: 0, Country: "US", City: q.OriginCity, State: q.OriginState},
			{Order: 1, Country: "US", City: q.DestCity, State: q.DestState},
		},
		Commodity: "General",
		Tag:       "GreenScreensLane",
		Currency:  "USD",
	}

	quote := &models.GreenScreensQuote{}
	var lastErr error

	if rate, err := c.predict(ctx, forecastPath, "forecast", payload); err != nil {
		lastErr = err
		c.logger.WithError(err).Debug("GreenScreens forecast failed")
	} else {
		quote.Forecast = rate
	}

	if rate, err := c.predict(ctx, networkPath, "network", payload); err != nil {
		lastErr = err
		c.logger.WithError(err).Debug("GreenScreens network prediction failed")
	} else {
		quote.Network = rate
	}

	if quote.Forecast == nil && quote.Network == nil {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoPrediction, lastErr)
		}
		return nil, ErrNoPrediction
	}
	return quote, nil
}

func (c *Client) predict(ctx context.Context, path, source string, payload predictionRequest) (*models.GreenScreensRate, error) {
	var resp predictionResponse
	if err := c.makeRequest(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	d := resp.Distance
	return &models.GreenScreensRate{
		Source:          source,
		ConfidenceLevel: resp.ConfidenceLevel,
		Distance:        d,
		FuelRate:        resp.FuelRate,
		RateLowBuy:      resp.LowBuyRate,
		RateHighBuy:     resp.HighBuyRate,
		RateStartBuy:    resp.StartBuyRate,
		RateTargetBuy:   resp.TargetBuyRate,
		TotalLowBuy:     utils.Round(resp.LowBuyRate*d, 2),
		TotalHighBuy:    utils.Round(resp.HighBuyRate*d, 2),
		TotalStartBuy:   utils.Round(resp.StartBuyRate*d, 2),
		TotalTargetBuy:  utils.Round(resp.TargetBuyRate*d, 2),
	}, nil
}

func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Debug("Failed to close GreenScreens response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("GreenScreens API error (%d): %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
