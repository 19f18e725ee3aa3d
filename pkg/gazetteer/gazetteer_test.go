package gazetteer_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dtslogistics/pricing-agent/pkg/gazetteer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "US\t75201\tDallas\tTexas\tTX\tDallas\t113\t\t\t32.7876\t-96.7994\t4\n" +
	"US\t02108\tBoston\tMassachusetts\tMA\tSuffolk\t025\t\t\t42.3576\t-71.0684\t4\n" +
	"US\t75201\tDuplicate\tTexas\tTX\t\t\t\t\t0\t0\t1\n" +
	"CA\tH2X\tMontreal\tQuebec\tQC\t\t\t\t\t45.5\t-73.5\t4\n" +
	"US\t1234\n"

func TestParseAndLookup(t *testing.T) {
	g, err := gazetteer.Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	tests := []struct {
		name      string
		zip       string
		wantPlace string
		wantState string
		wantErr   bool
	}{
		{name: "exact", zip: "75201", wantPlace: "Dallas", wantState: "TX"},
		{name: "leading zero restored", zip: "2108", wantPlace: "Boston", wantState: "MA"},
		{name: "non US rows ignored", zip: "H2X", wantErr: true},
		{name: "unknown", zip: "99999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			place, state, err := g.Lookup(context.Background(), tt.zip)
			if tt.wantErr {
				assert.ErrorIs(t, err, gazetteer.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPlace, place)
			assert.Equal(t, tt.wantState, state)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "US.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	g, err := gazetteer.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	_, err = gazetteer.Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
