package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
)

// ErrMissingLookupColumns is returned when a snapshot lacks the lane columns.
var ErrMissingLookupColumns = errors.New("lookup snapshot is missing required columns")

// dateLayouts are the pickup date formats seen in warehouse exports.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05.000",
	"1/2/2006",
	"1/2/2006 15:04",
	"01/02/2006",
}

// ParseLookupDate parses a pickup date in any known export layout. Unparseable
// values yield nil.
func ParseLookupDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// normalizeZip keeps zips as text and removes the ".0" float suffix that
// spreadsheet exports add.
func normalizeZip(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSuffix(s, ".0")
}

// ParseLookupCSV reads a historical shipment export. Optional columns may be
// absent; the returned table records which ones were present.
func ParseLookupCSV(r io.Reader, source string, loadedAt time.Time) (*models.LookupTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup header: %w", err)
	}

	index := make(map[string]int, len(header))
	columns := make([]string, 0, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		index[name] = i
		columns = append(columns, name)
	}

	field := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []models.HistoricalLaneRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read lookup row: %w", err)
		}
		records = append(records, models.HistoricalLaneRecord{
			OriginZip:           normalizeZip(field(row, models.ColOriginZip)),
			DestinationZip:      normalizeZip(field(row, models.ColDestinationZip)),
			CarrierFreightCost:  utils.SafeFloat(field(row, models.ColCarrierFreightCost), 0),
			CustomerFreightCost: utils.SafeFloat(field(row, models.ColCustomerFreightCost), 0),
			CarrierName:         field(row, models.ColCarrierName),
			Equipment:           field(row, models.ColEquipment),
			StopType:            field(row, models.ColStopType),
			PickupDate:          ParseLookupDate(field(row, models.ColPickupDate)),
			CompanyName:         field(row, models.ColCompanyName),
			ClientLoadID:        field(row, models.ColClientLoadID),
			Status:              field(row, models.ColStatus),
		})
	}

	table := models.NewLookupTable(records, columns, source, loadedAt)
	if missing := table.MissingColumns(models.RequiredLaneColumns); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingLookupColumns, missing)
	}
	return table, nil
}

var _ interfaces.LookupSource = (*CSVFileSource)(nil)

// CSVFileSource loads the lookup table from a local CSV file.
type CSVFileSource struct {
	Path string
	now  func() time.Time
}

func NewCSVFileSource(path string) *CSVFileSource {
	return &CSVFileSource{Path: path, now: time.Now}
}

func (s *CSVFileSource) Name() string { return "file" }

func (s *CSVFileSource) Load(ctx context.Context) (*models.LookupTable, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lookup file: %w", err)
	}
	defer f.Close()
	return ParseLookupCSV(f, s.Name(), s.now())
}
