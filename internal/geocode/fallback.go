package geocode

import (
	"context"
	"errors"
	"log"

	"github.com/paulmach/orb"
)

// Fallback tries each geocoder in order and moves on only when the previous
// one failed at the transport level. A definitive "not found" is final.
type Fallback struct {
	geocoders []Geocoder
}

func NewFallback(geocoders ...Geocoder) *Fallback {
	return &Fallback{geocoders: geocoders}
}

func (f *Fallback) Name() string {
	return "fallback"
}

func (f *Fallback) Search(ctx context.Context, query string) (Place, error) {
	return f.run(ctx, func(g Geocoder) (Place, error) {
		return g.Search(ctx, query)
	})
}

func (f *Fallback) Reverse(ctx context.Context, p orb.Point, zoom int) (Place, error) {
	return f.run(ctx, func(g Geocoder) (Place, error) {
		return g.Reverse(ctx, p, zoom)
	})
}

func (f *Fallback) run(ctx context.Context, fn func(Geocoder) (Place, error)) (Place, error) {
	if len(f.geocoders) == 0 {
		return Place{}, &TransportError{Provider: f.Name(), Err: errors.New("no geocoders configured")}
	}

	var lastErr error
	for _, g := range f.geocoders {
		place, err := fn(g)
		if err == nil || errors.Is(err, ErrNotFound) {
			return place, err
		}
		if ctx.Err() != nil {
			return Place{}, err
		}
		log.Printf("ERROR: geocoder %s failed, trying next: %v", g.Name(), err)
		lastErr = err
	}
	return Place{}, lastErr
}
