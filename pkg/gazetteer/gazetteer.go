package gazetteer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
)

// GeoNames postal code dump column positions.
const (
	colCountry   = 0
	colPostal    = 1
	colPlace     = 2
	colStateCode = 4
	minColumns   = 5
)

// ErrNotFound is returned for a ZIP code missing from the gazetteer.
var ErrNotFound = errors.New("gazetteer: zip code not found")

var _ interfaces.GeocodeProvider = (*Gazetteer)(nil)

type entry struct {
	place string
	state string
}

// Gazetteer is an in-memory US postal code index
type Gazetteer struct {
	entries map[string]entry
}

// Load reads a GeoNames-format tab-separated file.
func Load(path string) (*Gazetteer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gazetteer: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads GeoNames rows from r. Only US rows are kept, and the first
// row for a postal code wins.
func Parse(r io.Reader) (*Gazetteer, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	g := &Gazetteer{entries: make(map[string]entry)}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse gazetteer: %w", err)
		}
		if len(row) < minColumns || !strings.EqualFold(strings.TrimSpace(row[colCountry]), "US") {
			continue
		}
		zip := utils.PadZip(strings.TrimSpace(row[colPostal]))
		if _, exists := g.entries[zip]; exists {
			continue
		}
		g.entries[zip] = entry{
			place: strings.TrimSpace(row[colPlace]),
			state: strings.ToUpper(strings.TrimSpace(row[colStateCode])),
		}
	}
	return g, nil
}

// Len returns the number of postal codes indexed.
func (g *Gazetteer) Len() int {
	return len(g.entries)
}

// Lookup returns the place name and state code for zip.
func (g *Gazetteer) Lookup(ctx context.Context, zip string) (string, string, error) {
	e, ok := g.entries[utils.PadZip(strings.TrimSpace(zip))]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrNotFound, zip)
	}
	return e.place, e.state, nil
}
