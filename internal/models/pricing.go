package models

// Ratings produced by price validation and the final analysis.
const (
	RatingExcellent   = "EXCELLENT"
	RatingGood        = "GOOD"
	RatingAcceptable  = "ACCEPTABLE"
	RatingRisky       = "RISKY"
	RatingPoor        = "POOR"
	RatingNoData      = "NO_DATA"
	RatingNeedsReview = "NEEDS_REVIEW"
)

// Historical match levels, most specific first.
const (
	MatchExact = "exact"
	MatchZip4  = "zip4"
	MatchZip3  = "zip3"
)

// AllCustomers marks lane statistics that were not customer-scoped.
const AllCustomers = "ALL"

// LaneAnalysis is the result of historical lane analysis
type LaneAnalysis struct {
	RecommendedCarrier     *string  `json:"RecommendedCarrier"`
	BestCarrierAverageRate *float64 `json:"BestCarrierAverageRate"`
	LaneMedianRate         *float64 `json:"LaneMedianRate"`
	Zip3MedianLaneRate     *float64 `json:"Zip3MedianLaneRate"`
	Zip3StartRate          *float64 `json:"Zip3StartRate"`
	Zip3StartRateCarrier   *string  `json:"Zip3StartRateCarrier"`
	Zip3StartRateLoadID    *string  `json:"Zip3StartRateLoadId"`
	PodToPod               string   `json:"PodToPod,omitempty"`
	Zip4Lane               string   `json:"ZIP4_Lane,omitempty"`
	RecordsAnalyzedLane    int      `json:"RecordsAnalyzed_Lane"`
	RecordsAnalyzedZip3    int      `json:"RecordsAnalyzed_Zip3"`
	HistConfidence         int      `json:"HistConfidence"`
	EquipmentKeyword       string   `json:"EquipmentKeyword,omitempty"`
	CustomerMedianPrice    *float64 `json:"CustomerMedianPrice"`
	CustomerAveragePrice   *float64 `json:"CustomerAveragePrice"`
	HistoricalMarginPct    *float64 `json:"HistoricalMarginPct"`
	HistoricalMarkup       *float64 `json:"HistoricalMarkup"`
	Error                  string   `json:"error,omitempty"`
}

// LaneMedian returns the lane median rate, or 0 when unknown.
func (l *LaneAnalysis) LaneMedian() float64 {
	if l == nil || l.LaneMedianRate == nil {
		return 0
	}
	return *l.LaneMedianRate
}

// Confidence returns the historical confidence, or 0 for a nil analysis.
func (l *LaneAnalysis) Confidence() int {
	if l == nil {
		return 0
	}
	return l.HistConfidence
}

// LaneRecords returns the number of lane records analyzed.
func (l *LaneAnalysis) LaneRecords() int {
	if l == nil {
		return 0
	}
	return l.RecordsAnalyzedLane
}

// TotalRecords returns lane plus ZIP3 records.
func (l *LaneAnalysis) TotalRecords() int {
	if l == nil {
		return 0
	}
	return l.RecordsAnalyzedLane + l.RecordsAnalyzedZip3
}

// Negotiation methods.
const (
	MethodSingleStop = "singlestop"
	MethodMultistop  = "multistop"
)

// RateRange is a negotiation range for buying carrier capacity
type RateRange struct {
	TargetRate        float64 `json:"target_rate"`
	MaxBuy            float64 `json:"max_buy"`
	CarrierCost       float64 `json:"carrier_cost"`
	HotshotAdjustment float64 `json:"hotshot_adjustment"`
	Method            string  `json:"method"`
	Tier              string  `json:"tier,omitempty"`
}

// Midpoint returns the carrier cost implied by the range.
func (r RateRange) Midpoint() float64 {
	return (r.TargetRate + r.MaxBuy) / 2
}

// OutlierInfo describes a lane whose history is far below the market
type OutlierInfo struct {
	Detected             bool     `json:"detected"`
	LaneCarrierCost      float64  `json:"lane_carrier_cost"`
	MarketMedian         float64  `json:"market_median"`
	DeviationPct         float64  `json:"deviation_pct"`
	Records              int      `json:"records"`
	CustomerMedianPrice  *float64 `json:"customer_median_price"`
	CustomerAveragePrice *float64 `json:"customer_average_price"`
	LaneMarkup           float64  `json:"lane_markup"`
	LaneMarginPct        float64  `json:"lane_margin_pct"`
}

// LaneHistorical holds markup and margin statistics for a matched lane tier
type LaneHistorical struct {
	MatchLevel      string  `json:"match_level"`
	LaneIdentifier  string  `json:"lane_identifier"`
	Customer        string  `json:"customer"`
	AvgMarkup       float64 `json:"avg_markup"`
	MedianMarkup    float64 `json:"median_markup"`
	StdMarkup       float64 `json:"std_markup"`
	MinMarkup       float64 `json:"min_markup"`
	MaxMarkup       float64 `json:"max_markup"`
	P25Markup       float64 `json:"p25_markup"`
	P75Markup       float64 `json:"p75_markup"`
	AvgMarginPct    float64 `json:"avg_margin_pct"`
	MedianMarginPct float64 `json:"median_margin_pct"`
	StdMarginPct    float64 `json:"std_margin_pct"`
	MinMarginPct    float64 `json:"min_margin_pct"`
	MaxMarginPct    float64 `json:"max_margin_pct"`
	P25MarginPct    float64 `json:"p25_margin_pct"`
	P75MarginPct    float64 `json:"p75_margin_pct"`
	TotalLoads      int     `json:"total_loads"`
	RecentLoads     int     `json:"recent_loads"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// CustomerScoped reports whether the statistics were filtered to one customer.
func (h *LaneHistorical) CustomerScoped() bool {
	return h != nil && h.Customer != "" && h.Customer != AllCustomers
}

// HistoricalSummary is the API view of a LaneHistorical
type HistoricalSummary struct {
	MatchLevel      string  `json:"match_level"`
	LaneIdentifier  string  `json:"lane_identifier"`
	Customer        string  `json:"customer"`
	MedianMarkup    float64 `json:"median_markup"`
	AvgMarkup       float64 `json:"avg_markup"`
	MedianMarginPct float64 `json:"median_margin_pct"`
	AvgMarginPct    float64 `json:"avg_margin_pct"`
	MarkupRange     string  `json:"markup_range"`
	MarginRange     string  `json:"margin_range"`
	TotalLoads      int     `json:"total_loads"`
	RecentLoads     int     `json:"recent_loads"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Comparison relates the proposed markup to lane history
type Comparison struct {
	MarkupDiff            float64 `json:"markup_diff"`
	MarkupDiffPct         float64 `json:"markup_diff_pct"`
	MarginDiffPct         float64 `json:"margin_diff_pct"`
	WithinHistoricalRange bool    `json:"within_historical_range"`
	WithinIQR             bool    `json:"within_iqr"`
}

// CustomerMargin summarizes a customer's recent margins across all lanes
type CustomerMargin struct {
	CustomerName    string  `json:"customer_name"`
	TotalLoads      int     `json:"total_loads"`
	MedianMarginPct float64 `json:"median_margin_pct"`
	AvgMarginPct    float64 `json:"avg_margin_pct"`
	MedianMarkup    float64 `json:"median_markup"`
	AvgMarkup       float64 `json:"avg_markup"`
	MinMarginPct    float64 `json:"min_margin_pct"`
	MaxMarginPct    float64 `json:"max_margin_pct"`
	StdMarginPct    float64 `json:"std_margin_pct"`
}

// PRCResult is the outcome of price validation
type PRCResult struct {
	ProposedCustomerPrice    float64            `json:"proposed_customer_price"`
	CarrierCost              float64            `json:"carrier_cost"`
	ProposedMarkup           float64            `json:"proposed_markup"`
	ProposedMarginDollars    float64            `json:"proposed_margin_dollars"`
	ProposedMarginPct        float64            `json:"proposed_margin_pct"`
	OriginZip                string             `json:"origin_zip"`
	DestinationZip           string             `json:"destination_zip"`
	CustomerName             string             `json:"customer_name"`
	Historical               *HistoricalSummary `json:"historical"`
	Comparison               *Comparison        `json:"comparison"`
	Rating                   string             `json:"rating"`
	ConfidenceScore          float64            `json:"confidence_score"`
	Recommendation           string             `json:"recommendation"`
	Flags                    []string           `json:"flags"`
	IndustrySuggestedPrice   *float64           `json:"industry_suggested_price,omitempty"`
	CustomerHistoricalMargin *CustomerMargin    `json:"customer_historical_margin,omitempty"`
	MultistopOutlier         *OutlierInfo       `json:"multistop_outlier,omitempty"`
}

// HasFlag reports whether the result carries a flag with the given prefix.
func (p *PRCResult) HasFlag(prefix string) bool {
	for _, f := range p.Flags {
		if len(f) >= len(prefix) && f[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
