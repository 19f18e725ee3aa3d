package services

import (
	"testing"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCustomerMargin() *CustomerMarginCalculator {
	return NewCustomerMarginCalculator(config.DefaultPricing().PRC, func() time.Time { return refPickup })
}

func TestCustomerMargin_Calculate(t *testing.T) {
	cancelled := prcRec("10001", "20001", "Acme, Inc.", 1000, 1500, 5)
	cancelled.Status = "Cancelled"
	stale := prcRec("10001", "20001", "Acme, Inc.", 1000, 1500, 200)
	underwater := prcRec("10001", "20001", "Acme, Inc.", 1000, 900, 5)

	table := lookupTable(
		prcRec("10001", "20001", "Acme, Inc.", 1000, 1250, 5),
		prcRec("30301", "40201", "ACME INC", 800, 1000, 10),
		prcRec("75201", "60601", "acme inc", 900, 1000, 20),
		prcRec("75201", "60601", "Other", 900, 2000, 20),
		cancelled, stale, underwater,
	)

	got := newTestCustomerMargin().Calculate(table, "acme inc")
	require.NotNil(t, got)
	assert.Equal(t, "acme inc", got.CustomerName)
	assert.Equal(t, 3, got.TotalLoads)
	// margins 20, 20, 10
	assert.InDelta(t, 20.0, got.MedianMarginPct, 1e-9)
	assert.InDelta(t, 16.667, got.AvgMarginPct, 0.001)
	assert.InDelta(t, 10.0, got.MinMarginPct, 1e-9)
	assert.InDelta(t, 20.0, got.MaxMarginPct, 1e-9)
	assert.InDelta(t, 1.25, got.MedianMarkup, 1e-9)
}

func TestCustomerMargin_NotEnoughLoads(t *testing.T) {
	table := lookupTable(
		prcRec("10001", "20001", "Acme", 1000, 1250, 5),
		prcRec("10001", "20001", "Acme", 1000, 1250, 6),
	)
	assert.Nil(t, newTestCustomerMargin().Calculate(table, "Acme"))
}

func TestCustomerMargin_Unavailable(t *testing.T) {
	calc := newTestCustomerMargin()
	table := lookupTable(prcRec("10001", "20001", "Acme", 1000, 1250, 5))

	assert.Nil(t, calc.Calculate(table, ""))
	assert.Nil(t, calc.Calculate(nil, "Acme"))
	assert.Nil(t, calc.Calculate(table, "Unknown"))

	noCompany := models.NewLookupTable(table.Records, []string{models.ColCarrierFreightCost, models.ColCustomerFreightCost}, "test", refPickup)
	assert.Nil(t, calc.Calculate(noCompany, "Acme"))
}

func TestCustomerMargin_OptionalColumns(t *testing.T) {
	cancelled := prcRec("10001", "20001", "Acme", 1000, 1250, 500)
	cancelled.Status = "Cancelled"
	table := models.NewLookupTable(
		[]models.HistoricalLaneRecord{cancelled, cancelled, cancelled},
		[]string{models.ColCompanyName, models.ColCarrierFreightCost, models.ColCustomerFreightCost},
		"test", refPickup,
	)

	// without status and date columns every matched load qualifies
	got := newTestCustomerMargin().Calculate(table, "Acme")
	require.NotNil(t, got)
	assert.Equal(t, 3, got.TotalLoads)
}
