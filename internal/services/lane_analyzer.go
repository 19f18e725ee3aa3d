package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	equipmentMatchContains = "contains"
	equipmentMatchExact    = "exact"
	defaultStopType        = "UNIQUE STOP"
	allEquipment           = "ALL"
)

// LaneAnalyzer summarizes the internal shipment history of a lane: the
// cheapest carrier, the lane median, ZIP3 market context and a confidence
// score.
type LaneAnalyzer struct {
	config config.IDConfig
	logger *logrus.Logger
	now    func() time.Time
}

// NewLaneAnalyzer creates a lane analyzer. now defaults to time.Now.
func NewLaneAnalyzer(cfg config.IDConfig, logger *logrus.Logger, now func() time.Time) *LaneAnalyzer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &LaneAnalyzer{config: cfg, logger: logger, now: now}
}

// laneRow is a record with its derived match keys.
type laneRow struct {
	rec       *models.HistoricalLaneRecord
	pickup    *time.Time
	equipment string
	stopType  string
}

// Analyze runs the historical lane analysis for a ZIP pair.
func (a *LaneAnalyzer) Analyze(table *models.LookupTable, originZip, destZip, equipment string, pickup *time.Time) models.LaneAnalysis {
	ref := a.now()
	if pickup != nil {
		ref = *pickup
	}

	if missing := table.MissingColumns(models.RequiredLaneColumns); len(missing) > 0 {
		return models.LaneAnalysis{
			Error: fmt.Sprintf("Missing columns: ['%s']", strings.Join(missing, "', '")),
		}
	}

	keyword := utils.NormalizeText(equipment)
	rows := a.deriveRows(table, ref)

	origin4, dest4 := utils.Prefix(originZip, 4), utils.Prefix(destZip, 4)
	origin3, dest3 := utils.Prefix(originZip, 3), utils.Prefix(destZip, 3)
	windowStart := ref.AddDate(0, 0, -a.lookbackDays())

	lane := a.filter(rows, func(r laneRow) bool {
		return onOrAfter(r.pickup, windowStart) &&
			utils.Prefix(r.rec.OriginZip, 4) == origin4 &&
			utils.Prefix(r.rec.DestinationZip, 4) == dest4 &&
			r.rec.CarrierFreightCost > 0
	}, keyword, true)

	if len(lane) == 0 && a.config.FallbackToYear {
		lane = a.filter(rows, func(r laneRow) bool {
			return r.pickup != nil && r.pickup.Year() == ref.Year() &&
				utils.Prefix(r.rec.OriginZip, 4) == origin4 &&
				utils.Prefix(r.rec.DestinationZip, 4) == dest4 &&
				r.rec.CarrierFreightCost > 0
		}, keyword, false)
	}

	result := models.LaneAnalysis{
		PodToPod:         origin3 + "-" + dest3,
		Zip4Lane:         origin4 + "-" + dest4,
		EquipmentKeyword: keyword,
	}
	if keyword == "" {
		result.EquipmentKeyword = allEquipment
	}

	costs := dedupeCosts(lane, table.HasColumn(models.ColClientLoadID))
	if len(costs) > 0 {
		carrier, avg := cheapestCarrier(costs)
		result.RecommendedCarrier = &carrier
		result.BestCarrierAverageRate = floatPtr(utils.Round(avg, 2))
		values := make([]float64, len(costs))
		for i, c := range costs {
			values[i] = c.cost
		}
		result.LaneMedianRate = floatPtr(utils.Round(utils.Median(values), 2))
	}

	if table.HasColumn(models.ColCustomerFreightCost) {
		a.customerPricing(lane, &result)
	}

	pod := a.filter(rows, func(r laneRow) bool {
		return utils.Prefix(r.rec.OriginZip, 3) == origin3 &&
			utils.Prefix(r.rec.DestinationZip, 3) == dest3 &&
			onOrAfter(r.pickup, windowStart) &&
			r.rec.CarrierFreightCost > 0
	}, keyword, true)
	a.zip3Context(pod, &result)

	result.RecordsAnalyzedLane = len(costs)
	result.RecordsAnalyzedZip3 = len(pod)
	result.HistConfidence = laneConfidence(costs, len(pod), result.LaneMedianRate, result.Zip3MedianLaneRate)

	a.logger.WithFields(logrus.Fields{
		"zip4_lane":    result.Zip4Lane,
		"equipment":    result.EquipmentKeyword,
		"lane_records": result.RecordsAnalyzedLane,
		"zip3_records": result.RecordsAnalyzedZip3,
		"confidence":   result.HistConfidence,
	}).Debug("Lane analysis completed")

	return result
}

func (a *LaneAnalyzer) lookbackDays() int {
	if a.config.LookbackDays <= 0 {
		return 90
	}
	return a.config.LookbackDays
}

// deriveRows applies the optional-column rules: without a PickupDate column
// every row is dated at the reference date, and without Stop_Type every row
// is a unique stop.
func (a *LaneAnalyzer) deriveRows(table *models.LookupTable, ref time.Time) []laneRow {
	hasDate := table.HasColumn(models.ColPickupDate)
	hasEquipment := table.HasColumn(models.ColEquipment)
	hasStopType := table.HasColumn(models.ColStopType)

	rows := make([]laneRow, len(table.Records))
	for i := range table.Records {
		rec := &table.Records[i]
		row := laneRow{rec: rec, pickup: rec.PickupDate, stopType: defaultStopType}
		if !hasDate {
			row.pickup = &ref
		}
		if hasEquipment {
			row.equipment = utils.NormalizeText(rec.Equipment)
		}
		if hasStopType {
			row.stopType = utils.NormalizeText(rec.StopType)
		}
		rows[i] = row
	}
	return rows
}

// filter keeps rows matching base, the equipment keyword and, when
// withStopType is set, the configured stop type.
func (a *LaneAnalyzer) filter(rows []laneRow, base func(laneRow) bool, keyword string, withStopType bool) []laneRow {
	stopType := utils.NormalizeText(a.config.StopTypeFilter)
	var out []laneRow
	for _, r := range rows {
		if !base(r) || !a.equipmentMatches(r.equipment, keyword) {
			continue
		}
		if withStopType && stopType != "" && r.stopType != stopType {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (a *LaneAnalyzer) equipmentMatches(equipment, keyword string) bool {
	if keyword == "" {
		return true
	}
	if a.config.EquipmentMatch == equipmentMatchExact {
		return equipment == keyword
	}
	return strings.Contains(equipment, keyword)
}

func (a *LaneAnalyzer) customerPricing(lane []laneRow, result *models.LaneAnalysis) {
	var prices, markups, margins []float64
	for _, r := range lane {
		price, cost := r.rec.CustomerFreightCost, r.rec.CarrierFreightCost
		if price <= 0 || cost <= 0 {
			continue
		}
		prices = append(prices, price)
		markups = append(markups, price/cost)
		margins = append(margins, (price-cost)/price*100)
	}
	if len(prices) == 0 {
		return
	}
	result.CustomerMedianPrice = floatPtr(utils.Round(utils.Median(prices), 2))
	result.CustomerAveragePrice = floatPtr(utils.Round(utils.Mean(prices), 2))
	result.HistoricalMarkup = floatPtr(utils.Round(utils.Median(markups), 3))
	result.HistoricalMarginPct = floatPtr(utils.Round(utils.Median(margins), 2))
}

// zip3Context fills the ZIP3 median and the start rate, the lowest cost
// that survives a 1.5 IQR outlier fence.
func (a *LaneAnalyzer) zip3Context(pod []laneRow, result *models.LaneAnalysis) {
	if len(pod) == 0 {
		return
	}
	costs := make([]float64, len(pod))
	for i, r := range pod {
		costs[i] = r.rec.CarrierFreightCost
	}
	result.Zip3MedianLaneRate = floatPtr(utils.Round(utils.Median(costs), 2))

	q1, q3 := utils.Quantile(costs, 0.25), utils.Quantile(costs, 0.75)
	iqr := q3 - q1
	lower, upper := q1-1.5*iqr, q3+1.5*iqr

	var start *laneRow
	for i := range pod {
		c := pod[i].rec.CarrierFreightCost
		if c < lower || c > upper {
			continue
		}
		if start == nil || c < start.rec.CarrierFreightCost {
			start = &pod[i]
		}
	}
	if start == nil {
		return
	}
	result.Zip3StartRate = floatPtr(utils.Round(start.rec.CarrierFreightCost, 2))
	if start.rec.CarrierName != "" {
		result.Zip3StartRateCarrier = stringPtr(start.rec.CarrierName)
	}
	if start.rec.ClientLoadID != "" {
		result.Zip3StartRateLoadID = stringPtr(start.rec.ClientLoadID)
	}
}

type carrierCost struct {
	carrier string
	cost    float64
}

// dedupeCosts removes repeated (load, carrier, cost, date) rows, keeping the
// first occurrence.
func dedupeCosts(rows []laneRow, withLoadID bool) []carrierCost {
	seen := make(map[string]bool, len(rows))
	var out []carrierCost
	for _, r := range rows {
		date := ""
		if r.pickup != nil {
			date = r.pickup.Format(time.RFC3339)
		}
		loadID := ""
		if withLoadID {
			loadID = r.rec.ClientLoadID
		}
		key := fmt.Sprintf("%s|%s|%g|%s", loadID, r.rec.CarrierName, r.rec.CarrierFreightCost, date)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, carrierCost{carrier: r.rec.CarrierName, cost: r.rec.CarrierFreightCost})
	}
	return out
}

// cheapestCarrier returns the carrier with the lowest mean cost. Ties go to
// the carrier whose name sorts first, so the pick does not depend on row
// order.
func cheapestCarrier(costs []carrierCost) (string, float64) {
	type agg struct {
		sum   float64
		count int
	}
	var names []string
	totals := make(map[string]*agg)
	for _, c := range costs {
		t, ok := totals[c.carrier]
		if !ok {
			t = &agg{}
			totals[c.carrier] = t
			names = append(names, c.carrier)
		}
		t.sum += c.cost
		t.count++
	}
	sort.Strings(names)
	best, bestAvg := "", math.Inf(1)
	for _, name := range names {
		avg := totals[name].sum / float64(totals[name].count)
		if avg < bestAvg {
			best, bestAvg = name, avg
		}
	}
	return best, bestAvg
}

// laneConfidence scores volume (40), cost consistency (35) and agreement
// between the lane and ZIP3 medians (25).
func laneConfidence(costs []carrierCost, zip3Records int, laneMedian, zip3Median *float64) int {
	volume := math.Min(40, float64(len(costs))*2+float64(zip3Records)*0.5)

	consistency := 35.0
	if len(costs) > 1 {
		values := make([]float64, len(costs))
		for i, c := range costs {
			values[i] = c.cost
		}
		if mean := utils.Mean(values); mean > 0 {
			cv := utils.SampleStdDev(values) / mean
			consistency = math.Max(0, 35-cv*50)
		}
	}

	quality := 0.0
	if laneMedian != nil && zip3Median != nil && *laneMedian > 0 && *zip3Median > 0 {
		diff := math.Abs(*laneMedian-*zip3Median) / *laneMedian * 100
		switch {
		case diff < 20:
			quality = 25
		case diff < 40:
			quality = 15
		default:
			quality = 5
		}
	}

	return int(math.Min(100, volume+consistency+quality))
}

func onOrAfter(t *time.Time, start time.Time) bool {
	return t != nil && !t.Before(start)
}

func floatPtr(v float64) *float64 { return &v }

func stringPtr(s string) *string { return &s }
