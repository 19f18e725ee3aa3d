package models

import (
	"strconv"
	"strings"
	"time"
)

// DefaultAuditUser is recorded when the caller is not identified.
const DefaultAuditUser = "api_user"

// AuditEntry records one completed analysis for later review
type AuditEntry struct {
	ID               string          `json:"id"`
	Timestamp        time.Time       `json:"timestamp"`
	QuoteID          string          `json:"quote_id"`
	User             string          `json:"user"`
	ExecutionSeconds float64         `json:"execution_time_seconds"`
	Request          ShipmentRequest `json:"request"`
	Result           *AnalysisResult `json:"result"`
}

// AuditColumns is the header of the audit CSV.
var AuditColumns = []string{
	"timestamp", "quote_id", "user", "execution_time_seconds",
	"proposed_price", "carrier_cost_input", "customer_name", "equipment_type", "weight",
	"pickup_date", "delivery_date",
	"origin_zip", "destination_zip", "total_stops", "is_multistop",
	"final_rating", "combined_confidence", "suggested_price", "carrier_cost_calculated",
	"proposed_margin_pct", "suggested_margin_pct",
	"prc_rating", "prc_confidence", "prc_recommendation",
	"hist_confidence", "records_analyzed_lane", "records_analyzed_zip3",
	"dat_rate_usd", "dat_forecast_usd", "gs_target_rate",
	"has_flags", "flags",
}

// Row renders the entry in AuditColumns order. Missing values are empty.
func (e AuditEntry) Row() []string {
	req := e.Request
	r := e.Result
	if r == nil {
		r = &AnalysisResult{}
	}

	originZip, destZip := "", ""
	if len(req.Stops) > 0 {
		originZip = req.Stops[0].Zip
	}
	if len(req.Stops) > 1 {
		destZip = req.Stops[len(req.Stops)-1].Zip
	}

	weight := ""
	if req.Weight != nil {
		weight = formatFloat(*req.Weight)
	}

	carrierCost := ""
	if r.NegotiationRange != nil {
		carrierCost = formatFloat(r.NegotiationRange.CarrierCost)
	} else if r.Inputs.CarrierCost > 0 {
		carrierCost = formatFloat(r.Inputs.CarrierCost)
	}

	datRate, datForecast := "", ""
	if r.DATData != nil && r.DATData.Current != nil {
		datRate = formatFloat(r.DATData.Current.RateUSD)
		datForecast = formatFloat(r.DATData.Current.TotalForecastUSD)
	}
	gsTarget := ""
	if r.GreenScreensData != nil && r.GreenScreensData.Forecast != nil {
		gsTarget = formatFloat(r.GreenScreensData.Forecast.TotalTargetBuy)
	}

	prc := r.PRCValidation
	return []string{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.QuoteID,
		e.User,
		formatFloat(e.ExecutionSeconds),
		req.ProposedPrice.String(),
		req.CarrierCost.String(),
		req.CustomerName,
		req.EquipmentType,
		weight,
		formatDate(req.PickupDate),
		formatDate(req.DeliveryDate),
		originZip,
		destZip,
		strconv.Itoa(len(req.Stops)),
		strconv.FormatBool(len(req.Stops) > 2),
		r.FinalRating,
		strconv.Itoa(r.CombinedConfidence),
		formatFloat(r.SuggestedPrice),
		carrierCost,
		formatFloat(prc.ProposedMarginPct),
		formatFloat(r.SuggestedMarginPct),
		prc.Rating,
		formatFloat(prc.ConfidenceScore),
		prc.Recommendation,
		strconv.Itoa(r.IDAnalysis.HistConfidence),
		strconv.Itoa(r.IDAnalysis.RecordsAnalyzedLane),
		strconv.Itoa(r.IDAnalysis.RecordsAnalyzedZip3),
		datRate,
		datForecast,
		gsTarget,
		strconv.FormatBool(len(prc.Flags) > 0),
		strings.Join(prc.Flags, ", "),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
