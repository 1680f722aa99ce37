// Package geo resolves a free-form location to the UTC offset in effect there.
package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"googlemaps.github.io/maps"
)

// ErrNotFound is returned when a location cannot be geocoded.
var ErrNotFound = errors.New("location not found")

// Resolver returns the UTC offset in seconds (DST included) for location at instant at.
type Resolver interface {
	UTCOffset(ctx context.Context, location string, at time.Time) (int, error)
}

// mapsClient is the subset of *maps.Client used by GoogleResolver.
type mapsClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	Timezone(ctx context.Context, r *maps.TimezoneRequest) (*maps.TimezoneResult, error)
}

// GoogleResolver geocodes with the Google Maps Geocoding API, then asks the
// Time Zone API for the offsets at the resolved coordinates.
type GoogleResolver struct {
	client mapsClient
}

// NewGoogleResolver creates a resolver authenticated with apiKey.
func NewGoogleResolver(apiKey string) (*GoogleResolver, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("geocoder.api_key is required")
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleResolver{client: client}, nil
}

// UTCOffset implements Resolver.
func (r *GoogleResolver) UTCOffset(ctx context.Context, location string, at time.Time) (int, error) {
	results, err := r.client.Geocode(ctx, &maps.GeocodingRequest{Address: location})
	if err != nil {
		return 0, fmt.Errorf("geocode %q: %w", location, err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("geocode %q: %w", location, ErrNotFound)
	}
	latLng := results[0].Geometry.Location
	tz, err := r.client.Timezone(ctx, &maps.TimezoneRequest{
		Location:  &latLng,
		Timestamp: at,
	})
	if err != nil {
		return 0, fmt.Errorf("timezone for %q: %w", location, err)
	}
	return tz.RawOffset + tz.DstOffset, nil
}

// ZoneResolver ignores the location and reports the offset of a fixed IANA zone.
// It serves deployments without a Maps API key.
type ZoneResolver struct {
	loc *time.Location
}

// NewZoneResolver loads the named zone, e.g. "America/Chicago".
func NewZoneResolver(name string) (*ZoneResolver, error) {
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", name, err)
	}
	return &ZoneResolver{loc: loc}, nil
}

// UTCOffset implements Resolver.
func (r *ZoneResolver) UTCOffset(_ context.Context, _ string, at time.Time) (int, error) {
	_, offset := at.In(r.loc).Zone()
	return offset, nil
}
