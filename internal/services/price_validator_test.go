package services

import (
	"testing"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prcRec(origin, dest, company string, cost, price float64, age int) models.HistoricalLaneRecord {
	return models.HistoricalLaneRecord{
		OriginZip:           origin,
		DestinationZip:      dest,
		CarrierFreightCost:  cost,
		CustomerFreightCost: price,
		CarrierName:         "Acme Carriers",
		CompanyName:         company,
		Status:              "Delivered",
		PickupDate:          daysBefore(age),
	}
}

func newTestValidator() *PriceValidator {
	p := config.DefaultPricing()
	return NewPriceValidator(p.PRC, p.RatingThresholds, nil, quietLogger(), func() time.Time { return refPickup })
}

func TestPriceValidator_CustomerExactMatch(t *testing.T) {
	table := lookupTable(
		prcRec("75201", "60601", "Fabu Wood", 1000, 1200, 5),
		prcRec("75201", "60601", "Fabu Wood", 1000, 1200, 10),
		prcRec("75201", "60601", "Fabu Wood", 1000, 1200, 15),
		prcRec("75201", "60601", "Other Co", 1000, 1500, 15),
	)

	got := newTestValidator().Validate(table, 2400, 2000, "75201", "60601", "fabu wood", nil)

	assert.Equal(t, models.RatingExcellent, got.Rating)
	require.NotNil(t, got.Historical)
	assert.Equal(t, models.MatchExact, got.Historical.MatchLevel)
	assert.Equal(t, "75201-60601", got.Historical.LaneIdentifier)
	assert.Equal(t, "fabu wood", got.Historical.Customer)
	assert.Equal(t, 3, got.Historical.TotalLoads)
	assert.Equal(t, 3, got.Historical.RecentLoads)
	// volume 6 + exact 30 + recency 20 + consistency 10
	assert.Equal(t, 66.0, got.ConfidenceScore)
	require.NotNil(t, got.IndustrySuggestedPrice)
	assert.Equal(t, 2400.0, *got.IndustrySuggestedPrice)
	require.NotNil(t, got.Comparison)
	assert.True(t, got.Comparison.WithinIQR)
	assert.Empty(t, got.Flags)
}

func TestPriceValidator_Zip3Fallback(t *testing.T) {
	table := lookupTable(
		prcRec("75299", "60699", "", 1000, 1100, 5),
		prcRec("75299", "60699", "", 1000, 1200, 5),
		prcRec("75299", "60699", "", 1000, 1300, 5),
	)

	got := newTestValidator().Validate(table, 1200, 1000, "75201", "60601", "", nil)

	require.NotNil(t, got.Historical)
	assert.Equal(t, models.MatchZip3, got.Historical.MatchLevel)
	assert.Equal(t, "752-606", got.Historical.LaneIdentifier)
	assert.Equal(t, models.AllCustomers, got.Historical.Customer)
	assert.Equal(t, models.RatingExcellent, got.Rating)
	assert.Contains(t, got.Flags, "Using ZIP3 match")
	assert.InDelta(t, 1200.0, *got.IndustrySuggestedPrice, 0.01)
}

func TestPriceValidator_Zip3FallbackDisabled(t *testing.T) {
	table := lookupTable(
		prcRec("75299", "60699", "", 1000, 1100, 5),
		prcRec("75299", "60699", "", 1000, 1200, 5),
		prcRec("75299", "60699", "", 1000, 1300, 5),
	)
	p := config.DefaultPricing()
	p.PRC.EnableZip3Fallback = false
	v := NewPriceValidator(p.PRC, p.RatingThresholds, nil, quietLogger(), func() time.Time { return refPickup })

	assert.Nil(t, v.FindLaneHistorical(table, "75201", "60601", ""))
}

func TestPriceValidator_MarginAboveMaximum(t *testing.T) {
	got := newTestValidator().Validate(lookupTable(), 2000, 1000, "75201", "60601", "", nil)

	assert.Equal(t, models.RatingPoor, got.Rating)
	assert.Equal(t, []string{FlagMarginAboveMax}, got.Flags)
	assert.Equal(t, 100.0, got.ConfidenceScore)
	assert.Contains(t, got.Recommendation, "REJECT. Margin too high (50.0% > 35.0% industry max).")
	require.NotNil(t, got.IndustrySuggestedPrice)
	assert.Equal(t, 1190.48, *got.IndustrySuggestedPrice)
}

func TestPriceValidator_MarginBelowMinimum(t *testing.T) {
	table := lookupTable(
		prcRec("75201", "60601", "Acme", 1000, 1200, 5),
		prcRec("75201", "60601", "Acme", 1000, 1200, 10),
		prcRec("75201", "60601", "Acme", 1000, 1200, 15),
	)

	got := newTestValidator().Validate(table, 1030, 1000, "75201", "60601", "Acme", nil)

	assert.Equal(t, models.RatingPoor, got.Rating)
	assert.Contains(t, got.Flags, FlagMarginBelowMinimum)
	assert.Contains(t, got.Flags, FlagBelowP25)
	assert.Contains(t, got.Flags, FlagOutsideRange)
	assert.False(t, got.Comparison.WithinHistoricalRange)
}

func TestPriceValidator_NoHistory(t *testing.T) {
	t.Run("industry standard", func(t *testing.T) {
		got := newTestValidator().Validate(lookupTable(), 1100, 1000, "75201", "60601", "", nil)
		assert.Equal(t, models.RatingNoData, got.Rating)
		assert.Equal(t, []string{FlagNoHistoricalData}, got.Flags)
		assert.Equal(t, "No historical data. Industry standard suggests ~$1,190.48 (16% margin)", got.Recommendation)
	})

	t.Run("multistop outlier markup", func(t *testing.T) {
		outlier := &models.OutlierInfo{Detected: true, LaneMarkup: 1.3, Records: 4}
		got := newTestValidator().Validate(lookupTable(), 1100, 1000, "75201", "60601", "", outlier)
		assert.Equal(t, models.RatingNoData, got.Rating)
		assert.InDelta(t, 1300.0, *got.IndustrySuggestedPrice, 0.001)
		assert.Same(t, outlier, got.MultistopOutlier)
		assert.Contains(t, got.Recommendation, "Multistop outlier detected")
		assert.Contains(t, got.Recommendation, "based on 4 historical loads")
	})

	t.Run("customer margin", func(t *testing.T) {
		var recs []models.HistoricalLaneRecord
		for i := 0; i < 5; i++ {
			recs = append(recs, prcRec("10001", "20001", "Acme", 1000, 1250, 5+i))
		}
		got := newTestValidator().Validate(lookupTable(recs...), 1100, 1000, "75201", "60601", "ACME", nil)
		require.NotNil(t, got.CustomerHistoricalMargin)
		assert.Equal(t, 5, got.CustomerHistoricalMargin.TotalLoads)
		assert.InDelta(t, 1250.0, *got.IndustrySuggestedPrice, 0.01)
		assert.Equal(t, "No lane data. Customer historical suggests ~$1,250.00 (20.0% margin based on 5 loads)", got.Recommendation)
	})
}

func TestPriceValidator_HighMarginWarning(t *testing.T) {
	got := newTestValidator().Validate(lookupTable(), 1000, 680, "75201", "60601", "", nil)
	assert.Contains(t, got.Flags, "margin_high_warning (>30.0%)")
	assert.Contains(t, got.Flags, FlagNoHistoricalData)
}

func TestPriceValidator_RatingBands(t *testing.T) {
	v := newTestValidator()
	tests := []struct {
		deviation float64
		want      string
	}{
		{0, models.RatingExcellent},
		{5, models.RatingExcellent},
		{7, models.RatingGood},
		{12, models.RatingAcceptable},
		{20, models.RatingRisky},
		{30, models.RatingPoor},
	}
	for _, tt := range tests {
		got, _ := v.rate(tt.deviation)
		assert.Equal(t, tt.want, got, "deviation %v", tt.deviation)
	}
}

func TestHistoricalConfidence(t *testing.T) {
	assert.Equal(t, 57.0, historicalConfidence([]float64{1.2}, models.MatchExact, 1))

	flat := make([]float64, 25)
	for i := range flat {
		flat[i] = 1.15
	}
	assert.Equal(t, 60.0, historicalConfidence(flat, models.MatchZip3, 0))
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "1,234,567.89", formatUSD(1234567.891))
	assert.Equal(t, "95.00", formatUSD(95))
}
