package database

import (
	"context"
	"fmt"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
	"github.com/jackc/pgx/v5"
)

// DefaultLookupTable is the Postgres table holding historical shipments.
const DefaultLookupTable = "historical_loads"

// rowIterator is satisfied by both pgx.Rows and *sql.Rows.
type rowIterator interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// collectLaneRecords scans rows produced by one of the lookup queries. Every
// query selects the same eleven columns with NULLs already replaced.
func collectLaneRecords(rows rowIterator) ([]models.HistoricalLaneRecord, error) {
	var records []models.HistoricalLaneRecord
	for rows.Next() {
		var (
			rec    models.HistoricalLaneRecord
			pickup string
		)
		if err := rows.Scan(
			&rec.OriginZip,
			&rec.DestinationZip,
			&rec.CarrierFreightCost,
			&rec.CustomerFreightCost,
			&rec.CarrierName,
			&rec.Equipment,
			&rec.StopType,
			&pickup,
			&rec.CompanyName,
			&rec.ClientLoadID,
			&rec.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lookup row: %w", err)
		}
		rec.OriginZip = normalizeZip(rec.OriginZip)
		rec.DestinationZip = normalizeZip(rec.DestinationZip)
		rec.PickupDate = ParseLookupDate(pickup)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lookup rows: %w", err)
	}
	return records, nil
}

var _ interfaces.LookupSource = (*PostgresLookupSource)(nil)

// PostgresLookupSource loads the lookup table from Postgres.
type PostgresLookupSource struct {
	db    DatabasePool
	table string
	now   func() time.Time
}

func NewPostgresLookupSource(db DatabasePool, table string) *PostgresLookupSource {
	if table == "" {
		table = DefaultLookupTable
	}
	return &PostgresLookupSource{db: db, table: table, now: time.Now}
}

func (s *PostgresLookupSource) Name() string { return "postgres" }

func (s *PostgresLookupSource) query() string {
	return `SELECT origin_zip, destination_zip,
		COALESCE(carrier_freight_cost, 0)::float8,
		COALESCE(customer_freight_cost, 0)::float8,
		COALESCE(carrier_name, ''),
		COALESCE(equipment, ''),
		COALESCE(stop_type, ''),
		COALESCE(to_char(pickup_date, 'YYYY-MM-DD'), ''),
		COALESCE(company_name, ''),
		COALESCE(client_load_id, ''),
		COALESCE(status, '')
	FROM ` + pgx.Identifier{s.table}.Sanitize()
}

func (s *PostgresLookupSource) Load(ctx context.Context) (*models.LookupTable, error) {
	rows, err := s.db.Query(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("failed to query lookup table: %w", err)
	}
	defer rows.Close()

	records, err := collectLaneRecords(rows)
	if err != nil {
		return nil, err
	}
	return models.NewLookupTable(records, models.AllColumns, s.Name(), s.now()), nil
}
