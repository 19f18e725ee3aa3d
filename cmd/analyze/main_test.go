package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-request", "load.json"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "load.json", opts.request)
	assert.Equal(t, "validation_results.json", opts.out)

	_, err = parseFlags(nil, io.Discard)
	assert.EqualError(t, err, "-request is required")

	_, err = parseFlags([]string{"-bogus"}, io.Discard)
	assert.Error(t, err)
}

func TestReadRequest(t *testing.T) {
	t.Run("valid request gets defaults", func(t *testing.T) {
		body := `{
			"proposed_price": 2450,
			"carrier_cost": "auto",
			"customer_name": " Fabuwood Cabinetry ",
			"stops": [
				{"type": "PICKUP", "zip": "07105"},
				{"type": "DROP", "zip": "30303"}
			],
			"pickup_date": "2025-03-20"
		}`
		req, err := readRequest(context.Background(), strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, "2450", req.ProposedPrice.String())
		assert.True(t, req.CarrierCost.Auto)
		assert.Equal(t, "Fabuwood Cabinetry", req.CustomerName)
		assert.Equal(t, "VAN", req.EquipmentType)
		require.NotNil(t, req.PickupDate)
		assert.Equal(t, "2025-03-20", req.PickupDate.Format(models.DateLayout))
		assert.Nil(t, req.DeliveryDate)
	})

	t.Run("single stop is rejected", func(t *testing.T) {
		body := `{"proposed_price": 1000, "customer_name": "ACME", "stops": [{"type": "PICKUP", "zip": "07105"}]}`
		_, err := readRequest(context.Background(), strings.NewReader(body))
		require.Error(t, err)
		assert.True(t, utils.IsKind(err, utils.KindInput))
		assert.Contains(t, err.Error(), "stops")
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := readRequest(context.Background(), strings.NewReader(`{"lane": "NJ-GA"}`))
		assert.ErrorContains(t, err, "invalid request JSON")
	})
}

func TestOpenRequest_Stdin(t *testing.T) {
	rc, err := openRequest("-", strings.NewReader("{}"))
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
	assert.NoError(t, rc.Close())
}

func summaryResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		LoadType:           models.LoadTypeSingleStop,
		Inputs:             models.AnalysisInputs{ProposedPrice: 2000},
		PRCValidation:      models.PRCResult{ProposedMarginPct: 18.4},
		CombinedConfidence: 72,
		SuggestedPrice:     2000,
		FinalRating:        models.RatingGood,
	}
}

func TestPrintSummary(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *models.AnalysisResult)
		action  string
		want    []string
		notWant []string
	}{
		{
			name:   "increase",
			mutate: func(r *models.AnalysisResult) { r.SuggestedPrice = 2200 },
			action: models.PriceActionIncrease,
			want:   []string{"DECISION: APPROVE", "Increase price to $2,200.00 (+$200.00)", "Proposed Margin: 18.4%"},
		},
		{
			name:   "reduce",
			mutate: func(r *models.AnalysisResult) { r.SuggestedPrice = 1750 },
			action: models.PriceActionReduce,
			want:   []string{"Reduce price to $1,750.00 (-$250.00)"},
		},
		{
			name:    "keep",
			mutate:  func(r *models.AnalysisResult) { r.SuggestedPrice = 2050 },
			action:  models.PriceActionKeep,
			want:    []string{"Price appears reasonable at $2,000.00"},
			notWant: []string{"NEGOTIATION RANGE", "WARNING"},
		},
		{
			name: "low confidence",
			mutate: func(r *models.AnalysisResult) {
				r.CombinedConfidence = 20
				r.SuggestedPrice = 2600
			},
			action: models.PriceActionInsufficientData,
			want: []string{
				"DECISION: NEEDS_MANUAL_REVIEW",
				"Insufficient data",
				"- Consider manual price review",
			},
		},
		{
			name: "negotiation range and margin warning",
			mutate: func(r *models.AnalysisResult) {
				r.NegotiationRange = &models.RateRange{TargetRate: 1500, MaxBuy: 1700}
				r.MarginFlag = models.MarginFlagBelowMinimum
			},
			action: models.PriceActionKeep,
			want: []string{
				"NEGOTIATION RANGE",
				"Target Rate:              $1,500.00",
				"Carrier Cost (midpoint):  $1,600.00",
				"Max Buy:                  $1,700.00",
				"Range spread:             $200.00",
				"WARNING: proposed margin is below the minimum",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := summaryResult()
			tt.mutate(r)
			var buf bytes.Buffer
			d := printSummary(&buf, r)

			assert.Equal(t, tt.action, d.PriceAction)
			out := buf.String()
			assert.Contains(t, out, "EXECUTIVE SUMMARY")
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestWriteResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	r := summaryResult()
	r.ID = "a1"
	require.NoError(t, writeResult(path, r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"id\": \"a1\"")

	var back models.AnalysisResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, models.RatingGood, back.FinalRating)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", money(1234.5))
	assert.Equal(t, "-$75.00", money(-75))
}
