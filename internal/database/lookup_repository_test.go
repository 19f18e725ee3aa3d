package database

import (
	"context"
	"errors"
	"testing"

	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lookupQueryColumns = []string{
	"origin_zip", "destination_zip", "carrier_freight_cost", "customer_freight_cost",
	"carrier_name", "equipment", "stop_type", "pickup_date", "company_name",
	"client_load_id", "status",
}

func TestPostgresLookupSource_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := mock.NewRows(lookupQueryColumns).
		AddRow("75201", "60601", 1800.0, 2100.0, "Acme", "V", "PICKUP", "2024-03-01", "Fabuwood", "L-1", "Delivered").
		AddRow("2108.0", "75201", 0.0, 0.0, "", "", "", "", "", "", "")
	mock.ExpectQuery(`FROM "historical_loads"`).WillReturnRows(rows)

	src := NewPostgresLookupSource(mock, "")
	assert.Equal(t, "postgres", src.Name())

	table, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "postgres", table.Source)
	assert.Empty(t, table.MissingColumns(models.AllColumns))

	assert.Equal(t, "Acme", table.Records[0].CarrierName)
	require.NotNil(t, table.Records[0].PickupDate)
	assert.Equal(t, "2108", table.Records[1].OriginZip)
	assert.Nil(t, table.Records[1].PickupDate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLookupSource_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM "loads_2024"`).WillReturnError(errors.New("relation does not exist"))

	_, err = NewPostgresLookupSource(mock, "loads_2024").Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeRows struct {
	rows    [][]any
	pos     int
	scanErr error
	iterErr error
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	row := f.rows[f.pos-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *float64:
			*p = row[i].(float64)
		}
	}
	return nil
}

func (f *fakeRows) Err() error { return f.iterErr }

func TestCollectLaneRecords(t *testing.T) {
	row := []any{"75201", "60601", 900.0, 1100.0, "Acme", "R", "", "2024-01-05 00:00:00", "", "", ""}

	tests := []struct {
		name    string
		rows    *fakeRows
		want    int
		wantErr bool
	}{
		{name: "rows", rows: &fakeRows{rows: [][]any{row, row}}, want: 2},
		{name: "empty", rows: &fakeRows{}, want: 0},
		{name: "scan error", rows: &fakeRows{rows: [][]any{row}, scanErr: errors.New("bad type")}, wantErr: true},
		{name: "iteration error", rows: &fakeRows{iterErr: errors.New("conn reset")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := collectLaneRecords(tt.rows)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
			if tt.want > 0 {
				assert.Equal(t, 900.0, records[0].CarrierFreightCost)
				require.NotNil(t, records[0].PickupDate)
			}
		})
	}
}

func TestClickHouseLookupSource_Query(t *testing.T) {
	src := NewClickHouseLookupSource(nil, "warehouse.loads")
	assert.Equal(t, "clickhouse", src.Name())
	q := src.query()
	assert.Contains(t, q, "FROM `warehouse`.`loads`")
	assert.Contains(t, q, "formatDateTime(pickup_date, '%Y-%m-%d')")

	assert.Contains(t, NewClickHouseLookupSource(nil, "").query(), "`historical_loads`")
}

func TestQuoteClickHouseIdent(t *testing.T) {
	assert.Equal(t, "`loads`", quoteClickHouseIdent("loads"))
	assert.Equal(t, "`db`.`loads`", quoteClickHouseIdent("db.loads"))
	assert.Equal(t, "`a\\`b`", quoteClickHouseIdent("a`b"))
}
