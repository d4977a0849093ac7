// Package geocode resolves free-text queries to coordinates and coordinates
// to human-readable place descriptions.
package geocode

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/i474232898/mapsi/internal/resilient"
)

// Place is a single geocoder match.
type Place struct {
	Point       orb.Point `json:"-"`
	DisplayName string    `json:"displayName"`
	// Class is the OSM feature class, e.g. "tourism", "road", "amenity".
	Class string `json:"class"`
	// Importance is the geocoder's 0..1 prominence score.
	Importance float64 `json:"importance"`
	Provider   string  `json:"provider"`
}

// ErrNotFound is returned when the upstream answered but had no match.
var ErrNotFound = errors.New("location not found")

// TransportError is returned when the upstream could not be reached or
// answered with a failure status. Status is 0 for network-level failures.
type TransportError struct {
	Provider string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Geocoder abstracts a forward/reverse geocoding backend.
type Geocoder interface {
	Name() string
	// Search returns the top-ranked match for query.
	Search(ctx context.Context, query string) (Place, error)
	// Reverse describes p; zoom is the precision hint (3 country .. 18 building).
	Reverse(ctx context.Context, p orb.Point, zoom int) (Place, error)
}

func transportError(provider string, err error) error {
	te := &TransportError{Provider: provider, Err: err}
	var statusErr *resilient.StatusError
	if errors.As(err, &statusErr) {
		te.Status = statusErr.Code
	}
	return te
}
