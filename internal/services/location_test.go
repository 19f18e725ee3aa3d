package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGeocoder struct {
	places map[string][2]string
	calls  int
}

func (f *fakeGeocoder) Lookup(ctx context.Context, zip string) (string, string, error) {
	f.calls++
	p, ok := f.places[zip]
	if !ok {
		return "", "", errors.New("zip not found")
	}
	return p[0], p[1], nil
}

func TestLocationResolver_Resolve(t *testing.T) {
	geo := &fakeGeocoder{places: map[string][2]string{"81050": {"LA JUNTA", "co"}}}
	r := NewLocationResolver(geo, quietLogger())
	ctx := context.Background()

	got, err := r.Resolve(ctx, models.Stop{Type: "pickup", Zip: " 81050 "})
	require.NoError(t, err)
	assert.Equal(t, models.ResolvedStop{Type: "PICKUP", City: "La Junta", State: "CO", Zip: "81050"}, got)

	_, err = r.Resolve(ctx, models.Stop{Type: "drop", Zip: "81050"})
	require.NoError(t, err)
	assert.Equal(t, 1, geo.calls, "second lookup served from cache")
}

func TestLocationResolver_TrustsGivenPlace(t *testing.T) {
	geo := &fakeGeocoder{}
	r := NewLocationResolver(geo, quietLogger())

	got, err := r.Resolve(context.Background(), models.Stop{Type: "Drop", Zip: "60601", City: " Chicago ", State: "il"})
	require.NoError(t, err)
	assert.Equal(t, "Chicago", got.City)
	assert.Equal(t, "IL", got.State)
	assert.Zero(t, geo.calls)
}

func TestLocationResolver_Failures(t *testing.T) {
	geo := &fakeGeocoder{places: map[string][2]string{}}
	r := NewLocationResolver(geo, quietLogger())
	ctx := context.Background()

	_, err := r.Resolve(ctx, models.Stop{Type: "pickup", Zip: "99999"})
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindInput))
	assert.Contains(t, err.Error(), "could not resolve ZIP code: 99999")

	// failures are not cached
	_, _ = r.Resolve(ctx, models.Stop{Type: "pickup", Zip: "99999"})
	assert.Equal(t, 2, geo.calls)

	_, err = NewLocationResolver(nil, quietLogger()).Resolve(ctx, models.Stop{Type: "pickup", Zip: "75201"})
	assert.True(t, utils.IsKind(err, utils.KindInput))
}

func TestLocationResolver_ResolveAll(t *testing.T) {
	geo := &fakeGeocoder{places: map[string][2]string{
		"75201": {"Dallas", "TX"},
		"60601": {"Chicago", "IL"},
	}}
	r := NewLocationResolver(geo, quietLogger())

	stops, err := r.ResolveAll(context.Background(), []models.Stop{
		{Type: "pickup", Zip: "75201"},
		{Type: "drop", Zip: "60601"},
	})
	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, "Dallas", stops[0].City)
	assert.Equal(t, "DROP", stops[1].Type)

	_, err = r.ResolveAll(context.Background(), []models.Stop{{Type: "pickup", Zip: "75201"}, {Type: "drop", Zip: "00000"}})
	assert.Error(t, err)
}
