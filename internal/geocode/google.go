package geocode

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
	"github.com/paulmach/orb"

	"github.com/i474232898/mapsi/internal/geo"
)

// The geocoder package keeps its API key in a package variable.
var googleKeyMu sync.Mutex

// Google implements Geocoder on top of the Google Geocoding API. It has no
// notion of OSM class or importance, so matches carry neither.
type Google struct {
	name   string
	apiKey string
}

func NewGoogle(apiKey string) *Google {
	return &Google{name: "google", apiKey: apiKey}
}

func (g *Google) Name() string {
	return g.name
}

func (g *Google) Search(ctx context.Context, query string) (Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Place{}, ErrNotFound
	}

	loc, err := call(ctx, g, func() (geocoder.Location, error) {
		return geocoder.Geocoding(geocoder.Address{Street: query})
	})
	if err != nil {
		return Place{}, g.classify(err)
	}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return Place{}, ErrNotFound
	}

	return Place{
		Point:       geo.LatLng(loc.Latitude, loc.Longitude),
		DisplayName: query,
		Provider:    g.name,
	}, nil
}

func (g *Google) Reverse(ctx context.Context, p orb.Point, zoom int) (Place, error) {
	addrs, err := call(ctx, g, func() ([]geocoder.Address, error) {
		return geocoder.GeocodingReverse(geocoder.Location{Latitude: p.Lat(), Longitude: p.Lon()})
	})
	if err != nil {
		return Place{}, g.classify(err)
	}
	if len(addrs) == 0 {
		return Place{}, ErrNotFound
	}

	addr := addrs[0]
	name := addr.FormatAddress()
	if name == "" {
		return Place{}, ErrNotFound
	}
	return Place{Point: p, DisplayName: name, Provider: g.name}, nil
}

func (g *Google) classify(err error) error {
	if strings.Contains(err.Error(), "ZERO_RESULTS") {
		return ErrNotFound
	}
	return transportError(g.name, err)
}

// call runs fn with the key installed and abandons it when ctx ends; the
// library itself takes no context.
func call[T any](ctx context.Context, g *Google, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}

	var zero T
	if g.apiKey == "" {
		return zero, errors.New("google geocoder api key is not configured")
	}

	done := make(chan result, 1)
	go func() {
		googleKeyMu.Lock()
		defer googleKeyMu.Unlock()

		geocoder.ApiKey = g.apiKey
		v, err := fn()
		done <- result{v: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-done:
		return r.v, r.err
	}
}
