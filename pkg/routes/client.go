package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
)

const metersPerMile = 1609.344

var (
	ErrNotConfigured = errors.New("routes: api key not configured")
	ErrTooFewStops   = errors.New("routes: at least two stops are required")
	ErrMissingZip    = errors.New("routes: stop has no zip code")
	ErrNoRoute       = errors.New("routes: no route found")
)

var _ interfaces.DistanceProvider = (*Client)(nil)

// Client computes driving distance with the Google Routes API
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	apiKey     string
}

func NewClient(cfg config.RoutesConfig, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		BaseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

type waypoint struct {
	Address string `json:"address"`
}

type computeRoutesRequest struct {
	Origin        waypoint   `json:"origin"`
	Destination   waypoint   `json:"destination"`
	Intermediates []waypoint `json:"intermediates,omitempty"`
	TravelMode    string     `json:"travelMode"`
}

type computeRoutesResponse struct {
	Routes []struct {
		DistanceMeters float64 `json:"distanceMeters"`
	} `json:"routes"`
}

// RouteMiles returns the driving miles from the first stop to the last via
// every stop in between, rounded to a whole mile.
func (c *Client) RouteMiles(ctx context.Context, stops []models.ResolvedStop) (float64, error) {
	if c.apiKey == "" {
		return 0, ErrNotConfigured
	}
	if len(stops) < 2 {
		return 0, ErrTooFewStops
	}

	addresses := make([]waypoint, 0, len(stops))
	for _, s := range stops {
		if strings.TrimSpace(s.Zip) == "" {
			return 0, ErrMissingZip
		}
		addresses = append(addresses, waypoint{Address: s.Address()})
	}

	body := computeRoutesRequest{
		Origin:      addresses[0],
		Destination: addresses[len(addresses)-1],
		TravelMode:  "DRIVE",
	}
	if len(addresses) > 2 {
		body.Intermediates = addresses[1 : len(addresses)-1]
	}

	var resp computeRoutesResponse
	if err := c.makeRequest(ctx, body, &resp); err != nil {
		return 0, err
	}
	if len(resp.Routes) == 0 {
		return 0, ErrNoRoute
	}
	return math.Round(resp.Routes[0].DistanceMeters / metersPerMile), nil
}

func (c *Client) makeRequest(ctx context.Context, body interface{}, result interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", "routes.distanceMeters")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(respBody)
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return fmt.Errorf("routes API error (%d): %s", resp.StatusCode, snippet)
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
