package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
)

// sqlQuerier is the part of *sql.DB the ClickHouse source needs.
type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ClickHouseDB is a ClickHouse connection pool opened through database/sql.
type ClickHouseDB struct {
	DB *sql.DB
}

func NewClickHouseConnection(cfg config.ClickHouseConfig) (*ClickHouseDB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("clickhouse dsn is required")
	}
	db, err := sql.Open("clickhouse", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &ClickHouseDB{DB: db}, nil
}

func (c *ClickHouseDB) HealthCheck(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *ClickHouseDB) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

var _ interfaces.LookupSource = (*ClickHouseLookupSource)(nil)

// ClickHouseLookupSource loads the lookup table from a warehouse table with
// the same column names as the Postgres one.
type ClickHouseLookupSource struct {
	db    sqlQuerier
	table string
	now   func() time.Time
}

func NewClickHouseLookupSource(db sqlQuerier, table string) *ClickHouseLookupSource {
	if table == "" {
		table = DefaultLookupTable
	}
	return &ClickHouseLookupSource{db: db, table: table, now: time.Now}
}

func (s *ClickHouseLookupSource) Name() string { return "clickhouse" }

func (s *ClickHouseLookupSource) query() string {
	return fmt.Sprintf(`SELECT
		toString(origin_zip),
		toString(destination_zip),
		toFloat64(ifNull(carrier_freight_cost, 0)),
		toFloat64(ifNull(customer_freight_cost, 0)),
		ifNull(carrier_name, ''),
		ifNull(equipment, ''),
		ifNull(stop_type, ''),
		ifNull(formatDateTime(pickup_date, '%%Y-%%m-%%d'), ''),
		ifNull(company_name, ''),
		ifNull(client_load_id, ''),
		ifNull(status, '')
	FROM %s`, quoteClickHouseIdent(s.table))
}

func (s *ClickHouseLookupSource) Load(ctx context.Context) (*models.LookupTable, error) {
	rows, err := s.db.QueryContext(ctx, s.query())
	if err != nil {
		return nil, fmt.Errorf("clickhouse lookup query: %w", err)
	}
	defer rows.Close()

	records, err := collectLaneRecords(rows)
	if err != nil {
		return nil, err
	}
	return models.NewLookupTable(records, models.AllColumns, s.Name(), s.now()), nil
}

// quoteClickHouseIdent backquotes each part of a possibly qualified name.
func quoteClickHouseIdent(name string) string {
	out := make([]byte, 0, len(name)+4)
	out = append(out, '`')
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '.':
			out = append(out, '`', '.', '`')
		case '`':
			out = append(out, '\\', '`')
		default:
			out = append(out, name[i])
		}
	}
	return string(append(out, '`'))
}
