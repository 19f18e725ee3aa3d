package services

import (
	"testing"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/stretchr/testify/assert"
)

func newTestNegotiation() *NegotiationCalculator {
	return NewNegotiationCalculator(config.DefaultPricing().Negotiation, quietLogger(), func() time.Time { return refPickup })
}

func datQuote(total float64, companies int) models.MarketQuotes {
	return models.MarketQuotes{DAT: &models.DATQuote{Current: &models.DATCurrentRate{
		TotalForecastUSD: total,
		Companies:        &companies,
	}}}
}

func strongLane(median float64, confidence, lane, zip3 int) *models.LaneAnalysis {
	return &models.LaneAnalysis{
		LaneMedianRate:      &median,
		HistConfidence:      confidence,
		RecordsAnalyzedLane: lane,
		RecordsAnalyzedZip3: zip3,
	}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestNegotiation_FallbackWithoutData(t *testing.T) {
	got := newTestNegotiation().Compute(1000, nil, nil, models.MarketQuotes{}, nil)

	assert.Equal(t, TierMarket, got.Tier)
	assert.Equal(t, 2500.0, got.TargetRate)
	assert.Equal(t, 2875.0, got.MaxBuy)
	assert.Equal(t, 2687.5, got.CarrierCost)
	assert.Equal(t, models.MethodSingleStop, got.Method)
	assert.Equal(t, 1.0, got.HotshotAdjustment)
}

func TestNegotiation_StrongHistory(t *testing.T) {
	tests := []struct {
		name       string
		lane       *models.LaneAnalysis
		quotes     models.MarketQuotes
		wantTarget float64
		wantMax    float64
	}{
		{
			name:       "excellent history ignores market",
			lane:       strongLane(2000, 95, 15, 10),
			quotes:     datQuote(3000, 10),
			wantTarget: 2000,
			wantMax:    2100,
		},
		{
			name:       "moderate trend adds cushion",
			lane:       strongLane(2000, 82, 6, 4),
			quotes:     datQuote(2400, 10),
			wantTarget: 2060,
			wantMax:    2165,
		},
		{
			name:       "no market uses median",
			lane:       strongLane(2000, 82, 6, 4),
			wantTarget: 2000,
			wantMax:    2100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestNegotiation().Compute(800, nil, nil, tt.quotes, tt.lane)
			assert.Equal(t, TierStrong, got.Tier)
			assert.Equal(t, tt.wantTarget, got.TargetRate)
			assert.Equal(t, tt.wantMax, got.MaxBuy)
		})
	}
}

func TestNegotiation_BlendTier(t *testing.T) {
	got := newTestNegotiation().Compute(800, nil, nil, datQuote(2400, 10), strongLane(2000, 65, 3, 0))

	// base 2000*0.7 + 2400*0.3 = 2120
	assert.Equal(t, "good", got.Tier)
	assert.Equal(t, 2055.0, got.TargetRate)
	assert.Equal(t, 2290.0, got.MaxBuy)
}

func TestNegotiation_WeakHistoryFallsToMarket(t *testing.T) {
	got := newTestNegotiation().Compute(500, date(2024, 6, 3), date(2024, 6, 5), datQuote(2000, 10), strongLane(1500, 30, 1, 0))

	assert.Equal(t, TierMarket, got.Tier)
	assert.Equal(t, 2000.0, got.TargetRate)
	// low blended confidence widens max buy by 5%
	assert.Equal(t, 2310.0, got.MaxBuy)
}

func TestNegotiation_WeekendPenalty(t *testing.T) {
	saturday := date(2024, 6, 1)
	got := newTestNegotiation().Compute(500, saturday, date(2024, 6, 3), datQuote(2000, 10), nil)
	assert.Equal(t, 2050.0, got.TargetRate)
}

func TestNegotiation_RangeInvariants(t *testing.T) {
	calc := newTestNegotiation()
	cases := []struct {
		miles  float64
		quotes models.MarketQuotes
		lane   *models.LaneAnalysis
	}{
		{150, datQuote(900, 2), nil},
		{1200, datQuote(3100, 30), nil},
		{640, datQuote(1777, 10), strongLane(1811, 55, 2, 3)},
		{640, models.MarketQuotes{}, strongLane(1811, 45, 1, 0)},
		{333, models.MarketQuotes{}, nil},
	}
	for _, c := range cases {
		got := calc.Compute(c.miles, nil, nil, c.quotes, c.lane)
		assert.Greater(t, got.MaxBuy, got.TargetRate)
		assert.Zero(t, int(got.TargetRate)%5, "target %v", got.TargetRate)
		assert.Zero(t, int(got.MaxBuy)%5, "max %v", got.MaxBuy)
		assert.Equal(t, float64(int(got.TargetRate)), got.TargetRate)
	}
}
