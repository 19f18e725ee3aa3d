package services

import (
	"context"
	"strings"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

type place struct {
	city  string
	state string
}

// LocationResolver fills in city and state for stops submitted with only a
// ZIP code. Successful lookups are cached; failures are not.
type LocationResolver struct {
	geocoder interfaces.GeocodeProvider
	cache    *cache.Cache
	logger   *logrus.Logger
}

func NewLocationResolver(geocoder interfaces.GeocodeProvider, logger *logrus.Logger) *LocationResolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &LocationResolver{
		geocoder: geocoder,
		cache:    cache.New(24*time.Hour, time.Hour),
		logger:   logger,
	}
}

// Resolve returns the stop with its type upper-cased and its place filled
// in. A caller-supplied city and state are trusted as given.
func (r *LocationResolver) Resolve(ctx context.Context, stop models.Stop) (models.ResolvedStop, error) {
	zip := strings.TrimSpace(stop.Zip)
	resolved := models.ResolvedStop{Type: strings.ToUpper(strings.TrimSpace(stop.Type)), Zip: zip}

	if strings.TrimSpace(stop.City) != "" && strings.TrimSpace(stop.State) != "" {
		resolved.City = strings.TrimSpace(stop.City)
		resolved.State = strings.ToUpper(strings.TrimSpace(stop.State))
		return resolved, nil
	}
	if zip == "" {
		return resolved, utils.NewInputError("could not resolve ZIP code: %s", zip)
	}

	if cached, ok := r.cache.Get(zip); ok {
		p := cached.(place)
		resolved.City, resolved.State = p.city, p.state
		return resolved, nil
	}

	if r.geocoder == nil {
		return resolved, utils.NewInputError("could not resolve ZIP code: %s", zip)
	}
	city, state, err := r.geocoder.Lookup(ctx, zip)
	if err != nil || city == "" || state == "" {
		r.logger.WithFields(logrus.Fields{
			"zip":   zip,
			"error": errorString(err),
		}).Warn("ZIP code lookup failed")
		return resolved, utils.NewInputError("could not resolve ZIP code: %s", zip)
	}

	p := place{city: utils.TitleCase(city), state: strings.ToUpper(state)}
	r.cache.Set(zip, p, cache.DefaultExpiration)
	resolved.City, resolved.State = p.city, p.state
	return resolved, nil
}

// ResolveAll resolves every stop in order, failing on the first error.
func (r *LocationResolver) ResolveAll(ctx context.Context, stops []models.Stop) ([]models.ResolvedStop, error) {
	out := make([]models.ResolvedStop, 0, len(stops))
	for _, s := range stops {
		rs, err := r.Resolve(ctx, s)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, nil
}
