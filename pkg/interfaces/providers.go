package interfaces

import (
	"context"

	"github.com/dtslogistics/pricing-agent/internal/models"
)

// MarketRateProvider returns the primary spot-market quote for a lane.
// Implementations return an error when no rate could be obtained; callers
// treat the quote as optional.
type MarketRateProvider interface {
	// FetchRates retrieves the current rate, and a forecast when the query
	// carries an estimated distance.
	//
	// Returns:
	//   *models.DATQuote: The quote.
	//   error: Error if no rate was available.
	FetchRates(ctx context.Context, query models.LaneQuery) (*models.DATQuote, error)
}

// SecondaryMarketRateProvider returns the machine-learned buy-rate prediction
// for a lane.
type SecondaryMarketRateProvider interface {
	// FetchRates retrieves the forecast and network predictions. At least one
	// block is present on success.
	FetchRates(ctx context.Context, query models.LaneQuery) (*models.GreenScreensQuote, error)
}

// DistanceProvider computes driving distance through an ordered stop list.
type DistanceProvider interface {
	// RouteMiles returns the rounded driving miles from the first to the last
	// stop via every intermediate stop.
	RouteMiles(ctx context.Context, stops []models.ResolvedStop) (float64, error)
}

// GeocodeProvider resolves a US ZIP code to a place.
type GeocodeProvider interface {
	// Lookup returns the place name and two-letter state code for zip.
	Lookup(ctx context.Context, zip string) (city string, state string, err error)
}

// LookupSource loads the historical shipment table.
type LookupSource interface {
	Load(ctx context.Context) (*models.LookupTable, error)
	// Name identifies the source in logs and health output.
	Name() string
}

// AuditSink persists one audit entry. Errors are reported but never abort
// the analysis that produced the entry.
type AuditSink interface {
	Record(ctx context.Context, entry models.AuditEntry) error
	Name() string
}

// Recommender produces short sales advice for a finished analysis.
type Recommender interface {
	// Recommend returns the advice. contextPrompt describes the business
	// situation; an empty value selects the configured default.
	Recommend(ctx context.Context, result *models.AnalysisResult, contextPrompt string) (*models.AIRecommendation, error)
}
