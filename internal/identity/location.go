package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/biter777/countries"

	"github.com/opensource-finance/skua/internal/domain"
)

// Resolver normalizes raw country names into (code, name, continent)
// triples. Lookups never fail: an unresolvable name yields the UNKNOWN
// sentinel triple and a warning.
type Resolver struct {
	cache domain.LocationCache
	ttl   time.Duration
}

// NewResolver creates a resolver. cache may be nil, in which case every
// call hits the ISO dataset directly.
func NewResolver(cache domain.LocationCache) *Resolver {
	return &Resolver{
		cache: cache,
		ttl:   24 * time.Hour,
	}
}

// Resolve looks up a country by name or common alias.
//
// On success the returned location carries the ISO alpha-3 code, the
// continent name, and the *original* supplied name — dim_location keys on
// the name as delivered, so "UK" and "United Kingdom" are distinct rows
// even though both resolve to GBR.
func (r *Resolver) Resolve(ctx context.Context, countryName string) domain.Location {
	if r.cache != nil {
		if loc, err := r.cache.Get(ctx, countryName); err == nil && loc != nil {
			return *loc
		}
	}

	loc := lookup(countryName)
	if loc.IsUnknown() {
		slog.Warn("country lookup failed, marking as UNKNOWN",
			"country", countryName,
		)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, countryName, &loc, r.ttl); err != nil {
			slog.Debug("location cache write failed", "error", err)
		}
	}

	return loc
}

func lookup(countryName string) domain.Location {
	if countryName == "" {
		return domain.UnknownLocation()
	}

	code := countries.ByName(countryName)
	if code == countries.Unknown {
		return domain.UnknownLocation()
	}

	return domain.Location{
		CountryCode: code.Alpha3(),
		CountryName: countryName,
		Continent:   code.Region().String(),
	}
}
