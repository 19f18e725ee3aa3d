package models

import "time"

// MarginFlagBelowMinimum marks a proposed price whose margin is under the floor.
const MarginFlagBelowMinimum = "below_minimum"

// AnalysisInputs echoes the normalized request on the result
type AnalysisInputs struct {
	ProposedPrice     float64        `json:"proposed_price"`
	CarrierCost       float64        `json:"carrier_cost"`
	CarrierCostInput  string         `json:"carrier_cost_input"`
	Origin            string         `json:"origin"`
	Destination       string         `json:"destination"`
	OriginZip         string         `json:"origin_zip"`
	DestinationZip    string         `json:"destination_zip"`
	Stops             []ResolvedStop `json:"stops"`
	CustomerName      string         `json:"customer_name"`
	EquipmentType     string         `json:"equipment_type"`
	OriginalEquipment string         `json:"original_equipment"`
	Weight            *float64       `json:"weight"`
	PickupDate        string         `json:"pickup_date,omitempty"`
	DeliveryDate      string         `json:"delivery_date,omitempty"`
}

// Mileage records the distances considered for a load
type Mileage struct {
	GoogleMiles *float64 `json:"google_miles"`
	DATMiles    float64  `json:"dat_miles"`
	MilesUsed   float64  `json:"miles_used"`
}

// AnalysisResult is the full outcome of one pricing analysis. It is built
// once and not modified afterwards.
type AnalysisResult struct {
	ID                        string             `json:"id"`
	Timestamp                 time.Time          `json:"timestamp"`
	LoadType                  string             `json:"load_type"`
	Inputs                    AnalysisInputs     `json:"inputs"`
	Mileage                   Mileage            `json:"mileage"`
	NegotiationRange          *RateRange         `json:"negotiation_range"`
	PRCValidation             PRCResult          `json:"prc_validation"`
	IDAnalysis                LaneAnalysis       `json:"id_analysis"`
	DATData                   *DATQuote          `json:"dat_api_data"`
	GreenScreensData          *GreenScreensQuote `json:"greenscreens_api_data"`
	MultistopOutlier          *OutlierInfo       `json:"multistop_outlier,omitempty"`
	CombinedConfidence        int                `json:"combined_confidence"`
	SuggestedPrice            float64            `json:"suggested_price"`
	SuggestedMarginPct        float64            `json:"suggested_margin_pct"`
	PriceAdjustedForMinMargin bool               `json:"price_adjusted_for_min_margin"`
	FinalRating               string             `json:"final_rating"`
	MarginFlag                string             `json:"margin_flag,omitempty"`
}

// IsMultistop reports whether the load had more than one drop.
func (r *AnalysisResult) IsMultistop() bool {
	return r.LoadType == LoadTypeMultistop
}

// Executive decisions.
const (
	DecisionApprove             = "APPROVE"
	DecisionReview              = "REVIEW"
	DecisionNeedsManualReview   = "NEEDS_MANUAL_REVIEW"
	DecisionRejectRenegotiate   = "REJECT_RENEGOTIATE"
	PriceActionIncrease         = "INCREASE"
	PriceActionReduce           = "REDUCE"
	PriceActionKeep             = "KEEP"
	PriceActionInsufficientData = "INSUFFICIENT_DATA"
)

// Decision is the executive summary of an analysis
type Decision struct {
	Decision       string   `json:"decision"`
	Reason         string   `json:"reason"`
	Rating         string   `json:"rating"`
	Confidence     int      `json:"confidence"`
	LoadType       string   `json:"load_type"`
	ProposedMargin float64  `json:"proposed_margin_pct"`
	MarginWarning  bool     `json:"margin_warning"`
	PriceAction    string   `json:"price_action"`
	PriceDelta     float64  `json:"price_delta"`
	SuggestedPrice float64  `json:"suggested_price"`
	Notes          []string `json:"notes,omitempty"`
}

// AIRecommendation is the short sales advice generated for an analysis
type AIRecommendation struct {
	Text       string   `json:"text"`
	Lines      []string `json:"lines"`
	Confidence string   `json:"confidence"`
	Action     string   `json:"action"`
	KeyFactors []string `json:"key_factors"`
	Model      string   `json:"model"`
}
