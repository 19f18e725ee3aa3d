package dat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/pkg/dat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDAT struct {
	// rateBodies is indexed by escalation attempt; missing entries return 500.
	rateBodies   []string
	forecastBody string
	rateCalls    int
	escalations  []string
}

func (f *fakeDAT) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/org", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "org-user", body["username"])
		_, _ = w.Write([]byte(`{"accessToken":"org-token"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer org-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"accessToken":"user-token"}`))
	})
	mux.HandleFunc("/rates", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		var payload []map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload, 1)
		esc := payload[0]["targetEscalation"].(map[string]interface{})
		f.escalations = append(f.escalations, esc["escalationType"].(string))
		assert.Equal(t, "REEFER", payload[0]["equipment"])

		idx := f.rateCalls
		f.rateCalls++
		if idx >= len(f.rateBodies) || f.rateBodies[idx] == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(f.rateBodies[idx]))
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		if f.forecastBody == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(f.forecastBody))
	})
	return mux
}

func testConfig(base string) config.DATConfig {
	return config.DATConfig{
		OrgUsername:   "org-user",
		OrgPassword:   "secret",
		UserEmail:     "ops@example.com",
		OrgTokenURL:   base + "/org",
		UserTokenURL:  base + "/user",
		RateLookupURL: base + "/rates",
		ForecastURL:   base + "/forecast",
	}
}

const rateBody = `{"rateResponses":[{"response":{"rate":{"mileage":1000,"perTrip":{"rateUsd":2000,"highUsd":2300,"lowUsd":1800},"averageFuelSurchargePerMileUsd":0.5,"reports":42,"companies":12}}}]}`

func forecastBody() string {
	days := make([]string, 8)
	for i := range days {
		days[i] = fmt.Sprintf(`{"forecastDate":"2025-01-%02d","forecastUSD":2.1,"mae":{"highUSD":2.4,"lowUSD":1.9}}`, i+1)
	}
	return `{"forecasts":{"perMile":[` + strings.Join(days, ",") + `]}}`
}

func TestClient_FetchRates(t *testing.T) {
	fake := &fakeDAT{rateBodies: []string{rateBody}, forecastBody: forecastBody()}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	c := dat.NewClient(testConfig(server.URL), 5*time.Second, nil)
	q := models.LaneQuery{OriginCity: "Dallas", OriginState: "TX", DestCity: "Chicago", DestState: "IL", Equipment: "Reefer", EstimatedMiles: 900}

	quote, err := c.FetchRates(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, quote.Current)

	cur := quote.Current
	assert.Equal(t, dat.ModeMinimum, cur.Source)
	assert.Equal(t, 2.0, cur.RateUSD)
	assert.Equal(t, 0.5, cur.FuelPerMile)
	assert.Equal(t, 500.0, cur.FuelTotalUSD)
	assert.Equal(t, 2500.0, cur.TotalForecastUSD)
	assert.Equal(t, 2800.0, cur.TotalHighUSD)
	assert.Equal(t, 2300.0, cur.TotalLowUSD)
	assert.Equal(t, 42, cur.Reports)
	require.NotNil(t, cur.Companies)
	assert.Equal(t, 12, *cur.Companies)

	require.NotNil(t, quote.Forecast)
	assert.Equal(t, "2025-01-08", quote.Forecast.ForecastDate)
	assert.Equal(t, 1890.0, quote.Forecast.LinehaulForecastUSD)
	assert.Equal(t, 450.0, quote.Forecast.FuelTotalUSD)
	assert.Equal(t, 2340.0, quote.Forecast.TotalForecastUSD)
}

func TestClient_FetchRates_Escalation(t *testing.T) {
	tests := []struct {
		name        string
		bodies      []string
		wantMode    string
		wantCalls   int
		expectError bool
	}{
		{
			name:      "falls back after a failed minimum lookup",
			bodies:    []string{"", rateBody},
			wantMode:  dat.ModeFallback,
			wantCalls: 2,
		},
		{
			name:      "skips responses without per-trip rates",
			bodies:    []string{`{"rateResponses":[{"response":{}}]}`, `{}`, rateBody},
			wantMode:  dat.ModeStrict,
			wantCalls: 3,
		},
		{
			name:        "no mode returns a rate",
			bodies:      nil,
			wantCalls:   3,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDAT{rateBodies: tt.bodies}
			server := httptest.NewServer(fake.handler(t))
			defer server.Close()

			c := dat.NewClient(testConfig(server.URL), 5*time.Second, nil)
			quote, err := c.FetchRates(context.Background(), models.LaneQuery{Equipment: "REEFER"})

			assert.Equal(t, tt.wantCalls, fake.rateCalls)
			if tt.expectError {
				assert.ErrorIs(t, err, dat.ErrNoRate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, quote.Current.Source)
			assert.Nil(t, quote.Forecast, "no estimated miles means no forecast")
		})
	}
}

func TestClient_FuelFallbacks(t *testing.T) {
	tests := []struct {
		name string
		rate string
		want float64
	}{
		{
			name: "per trip surcharge divided by mileage",
			rate: `{"mileage":500,"perTrip":{"rateUsd":1000,"highUsd":1100,"lowUsd":900},"averageFuelSurchargePerTripUsd":210}`,
			want: 0.42,
		},
		{
			name: "default when DAT reports no fuel",
			rate: `{"mileage":500,"perTrip":{"rateUsd":1000,"highUsd":1100,"lowUsd":900}}`,
			want: dat.DefaultFuelPerMile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"rateResponses":[{"response":{"rate":` + tt.rate + `}}]}`
			fake := &fakeDAT{rateBodies: []string{body}}
			server := httptest.NewServer(fake.handler(t))
			defer server.Close()

			c := dat.NewClient(testConfig(server.URL), 5*time.Second, nil)
			quote, err := c.FetchRates(context.Background(), models.LaneQuery{Equipment: "REEFER"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, quote.Current.FuelPerMile)
		})
	}
}

func TestClient_NotConfigured(t *testing.T) {
	c := dat.NewClient(config.DATConfig{}, 0, nil)
	_, err := c.FetchRates(context.Background(), models.LaneQuery{})
	assert.ErrorIs(t, err, dat.ErrNotConfigured)
}
