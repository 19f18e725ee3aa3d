package services

import (
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
)

var completedStatuses = map[string]bool{"Delivered": true, "Completed": true}

// CustomerMarginCalculator computes a customer's recent margin across all
// lanes. It is the fallback when no lane history exists.
type CustomerMarginCalculator struct {
	config config.PRCConfig
	now    func() time.Time
}

func NewCustomerMarginCalculator(cfg config.PRCConfig, now func() time.Time) *CustomerMarginCalculator {
	if now == nil {
		now = time.Now
	}
	return &CustomerMarginCalculator{config: cfg, now: now}
}

// Calculate returns nil when the customer is unknown, the table lacks the
// needed columns, or too few delivered loads qualify.
func (c *CustomerMarginCalculator) Calculate(table *models.LookupTable, customer string) *models.CustomerMargin {
	if customer == "" || table == nil {
		return nil
	}
	if len(table.MissingColumns([]string{models.ColCompanyName, models.ColCarrierFreightCost, models.ColCustomerFreightCost})) > 0 {
		return nil
	}

	target := utils.NormalizeCustomerName(customer)
	hasStatus := table.HasColumn(models.ColStatus)
	hasDate := table.HasColumn(models.ColPickupDate)
	cutoff := c.now().AddDate(0, 0, -c.recentDays())

	matched := 0
	var margins, markups []float64
	for i := range table.Records {
		r := &table.Records[i]
		if utils.NormalizeCustomerName(r.CompanyName) != target {
			continue
		}
		matched++
		if hasStatus && !completedStatuses[r.Status] {
			continue
		}
		if hasDate && !onOrAfter(r.PickupDate, cutoff) {
			continue
		}
		price, cost := r.CustomerFreightCost, r.CarrierFreightCost
		if cost <= 0 || price <= 0 || price < cost {
			continue
		}
		margins = append(margins, (price-cost)/price*100)
		markups = append(markups, price/cost)
	}

	if matched == 0 || len(margins) < c.qualifyLoads() {
		return nil
	}

	lo, hi := utils.MinMax(margins)
	return &models.CustomerMargin{
		CustomerName:    customer,
		TotalLoads:      len(margins),
		MedianMarginPct: utils.Median(margins),
		AvgMarginPct:    utils.Mean(margins),
		MedianMarkup:    utils.Median(markups),
		AvgMarkup:       utils.Mean(markups),
		MinMarginPct:    lo,
		MaxMarginPct:    hi,
		StdMarginPct:    nanToZero(utils.SampleStdDev(margins)),
	}
}

func (c *CustomerMarginCalculator) recentDays() int {
	if c.config.RecentDays <= 0 {
		return 90
	}
	return c.config.RecentDays
}

func (c *CustomerMarginCalculator) qualifyLoads() int {
	if c.config.CustomerQualifyLoads <= 0 {
		return 3
	}
	return c.config.CustomerQualifyLoads
}
