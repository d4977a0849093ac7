package weather

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
)

// ErrIncomplete is returned when an upstream answered without the fields a
// snapshot needs.
var ErrIncomplete = errors.New("incomplete weather payload")

// Provider abstracts a weather data source (e.g. OpenWeatherMap, Open-Meteo).
type Provider interface {
	Name() string
	Current(ctx context.Context, p orb.Point) (Snapshot, error)
}
