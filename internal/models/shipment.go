package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Stop roles.
const (
	StopPickup = "PICKUP"
	StopDrop   = "DROP"
)

// Load types reported on an analysis.
const (
	LoadTypeSingleStop = "SINGLE-STOP"
	LoadTypeMultistop  = "MULTISTOP"
)

// CarrierCostAuto is the sentinel asking the engine to derive carrier cost
// from the negotiation range.
const CarrierCostAuto = "auto"

// DateLayout is the request format for pickup and delivery dates.
const DateLayout = "2006-01-02"

// Stop is a pickup or drop location as submitted by the caller.
type Stop struct {
	Type  string `json:"type" validate:"required,oneof=PICKUP DROP pickup drop Pickup Drop"`
	Zip   string `json:"zip" validate:"required,min=3,max=10"`
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

// ResolvedStop is a stop with city and state filled in.
type ResolvedStop struct {
	Type  string `json:"type"`
	City  string `json:"city"`
	State string `json:"state"`
	Zip   string `json:"zip"`
}

// Address renders the stop as "City, ST ZIP", or just the zip when the city
// is unknown.
func (s ResolvedStop) Address() string {
	if s.City != "" && s.State != "" {
		return fmt.Sprintf("%s, %s %s", s.City, s.State, s.Zip)
	}
	return s.Zip
}

// CarrierCostInput is either the "auto" sentinel or a fixed amount.
type CarrierCostInput struct {
	Auto   bool
	Amount decimal.Decimal
}

// AutoCarrierCost returns the "auto" sentinel.
func AutoCarrierCost() CarrierCostInput {
	return CarrierCostInput{Auto: true}
}

// FixedCarrierCost returns a fixed carrier cost.
func FixedCarrierCost(amount float64) CarrierCostInput {
	return CarrierCostInput{Amount: decimal.NewFromFloat(amount)}
}

// UnmarshalJSON accepts a number, a numeric string, "auto", or null (auto).
func (c *CarrierCostInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*c = AutoCarrierCost()
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, CarrierCostAuto) {
			*c = AutoCarrierCost()
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("carrier_cost must be a number or %q: %w", CarrierCostAuto, err)
		}
		*c = CarrierCostInput{Amount: d}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("carrier_cost must be a number or %q: %w", CarrierCostAuto, err)
	}
	*c = CarrierCostInput{Amount: d}
	return nil
}

// MarshalJSON writes "auto" or the numeric amount.
func (c CarrierCostInput) MarshalJSON() ([]byte, error) {
	if c.Auto {
		return json.Marshal(CarrierCostAuto)
	}
	return []byte(c.Amount.String()), nil
}

// String renders the input the way it appears in requests and audit rows.
func (c CarrierCostInput) String() string {
	if c.Auto {
		return CarrierCostAuto
	}
	return c.Amount.String()
}

// ShipmentRequest is one pricing question.
type ShipmentRequest struct {
	ProposedPrice decimal.Decimal  `json:"proposed_price"`
	CarrierCost   CarrierCostInput `json:"carrier_cost"`
	Stops         []Stop           `json:"stops"`
	CustomerName  string           `json:"customer_name"`
	EquipmentType string           `json:"equipment_type"`
	PickupDate    *time.Time       `json:"pickup_date,omitempty"`
	DeliveryDate  *time.Time       `json:"delivery_date,omitempty"`
	Weight        *float64         `json:"weight,omitempty"`
}

// WeightOrZero returns the shipment weight, or 0 when unknown.
func (r ShipmentRequest) WeightOrZero() float64 {
	if r.Weight == nil {
		return 0
	}
	return *r.Weight
}

// Validate checks the stop invariants: at least one pickup and one drop.
func (r ShipmentRequest) Validate() error {
	if !r.ProposedPrice.IsPositive() {
		return fmt.Errorf("proposed_price must be positive")
	}
	if !r.CarrierCost.Auto && !r.CarrierCost.Amount.IsPositive() {
		return fmt.Errorf("carrier_cost must be positive or %q", CarrierCostAuto)
	}
	pickups, drops := 0, 0
	for i, s := range r.Stops {
		switch strings.ToUpper(strings.TrimSpace(s.Type)) {
		case StopPickup:
			pickups++
		case StopDrop:
			drops++
		default:
			return fmt.Errorf("stop %d has unknown type %q", i, s.Type)
		}
	}
	if pickups == 0 || drops == 0 {
		return fmt.Errorf("at least one PICKUP and one DROP stop are required")
	}
	return nil
}

// DropCount returns the number of DROP stops.
func DropCount(stops []ResolvedStop) int {
	n := 0
	for _, s := range stops {
		if s.Type == StopDrop {
			n++
		}
	}
	return n
}
