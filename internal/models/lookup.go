package models

import "time"

// Column names of the historical lookup table.
const (
	ColOriginZip           = "Origin_Zip"
	ColDestinationZip      = "Destination_Zip"
	ColCarrierFreightCost  = "CarrierFreightCost"
	ColCustomerFreightCost = "CustomerFreightCost"
	ColCarrierName         = "CarrierName"
	ColEquipment           = "Equipment"
	ColStopType            = "Stop_Type"
	ColPickupDate          = "PickupDate"
	ColCompanyName         = "CompanyName"
	ColClientLoadID        = "ClientLoadId"
	ColStatus              = "Status"
)

// RequiredLaneColumns must be present for lane analysis.
var RequiredLaneColumns = []string{ColOriginZip, ColDestinationZip, ColCarrierFreightCost, ColCarrierName}

// AllColumns lists every column the loaders understand.
var AllColumns = []string{
	ColOriginZip, ColDestinationZip, ColCarrierFreightCost, ColCustomerFreightCost,
	ColCarrierName, ColEquipment, ColStopType, ColPickupDate, ColCompanyName,
	ColClientLoadID, ColStatus,
}

// HistoricalLaneRecord is one shipment in the lookup table. Costs that were
// blank or unparseable in the source are zero.
type HistoricalLaneRecord struct {
	OriginZip           string     `json:"origin_zip" db:"origin_zip"`
	DestinationZip      string     `json:"destination_zip" db:"destination_zip"`
	CarrierFreightCost  float64    `json:"carrier_freight_cost" db:"carrier_freight_cost"`
	CustomerFreightCost float64    `json:"customer_freight_cost" db:"customer_freight_cost"`
	CarrierName         string     `json:"carrier_name" db:"carrier_name"`
	Equipment           string     `json:"equipment" db:"equipment"`
	StopType            string     `json:"stop_type" db:"stop_type"`
	PickupDate          *time.Time `json:"pickup_date,omitempty" db:"pickup_date"`
	CompanyName         string     `json:"company_name" db:"company_name"`
	ClientLoadID        string     `json:"client_load_id" db:"client_load_id"`
	Status              string     `json:"status" db:"status"`
}

// LookupTable is an immutable snapshot of historical shipments. Columns
// records which source columns existed so optional-column semantics survive
// the conversion to typed records.
type LookupTable struct {
	Records  []HistoricalLaneRecord
	Columns  map[string]bool
	Source   string
	LoadedAt time.Time
}

// NewLookupTable builds a snapshot with the given column set.
func NewLookupTable(records []HistoricalLaneRecord, columns []string, source string, loadedAt time.Time) *LookupTable {
	cols := make(map[string]bool, len(columns))
	for _, c := range columns {
		cols[c] = true
	}
	return &LookupTable{Records: records, Columns: cols, Source: source, LoadedAt: loadedAt}
}

// HasColumn reports whether the source carried the named column.
func (t *LookupTable) HasColumn(name string) bool {
	return t != nil && t.Columns[name]
}

// MissingColumns returns the names in required that the table lacks.
func (t *LookupTable) MissingColumns(required []string) []string {
	var missing []string
	for _, c := range required {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Len returns the number of records, tolerating a nil table.
func (t *LookupTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}
