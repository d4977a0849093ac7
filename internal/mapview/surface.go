package mapview

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/i474232898/mapsi/internal/geo"
	"github.com/i474232898/mapsi/internal/geocode"
	"github.com/i474232898/mapsi/internal/weather"
)

// ClickHandler receives clicks on the map surface.
type ClickHandler func(ctx context.Context, p orb.Point) error

// Surface is the map rendering surface. The controller calls it only from
// its own goroutine.
type Surface interface {
	SetView(center orb.Point, zoom int)
	SetZoom(zoom int)
	SetMinZoom(zoom int)
	SetMaxBounds(bounds orb.Bound)
	AddTileLayer(layer geo.TileLayer)
	RemoveTileLayer(layer geo.TileLayer)
	FlyTo(p orb.Point, zoom int)
	PlaceMarker(p orb.Point)
	RemoveMarker()
	OnClick(handler ClickHandler)
}

// Display holds the text regions and controls around the map. Each method
// writes one region only.
type Display interface {
	ShowLocation(text string)
	ShowWeather(w WeatherView)
	ShowButtons(ui UIState)
	Alert(message string)
}

// Geolocator obtains the user's position once.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (orb.Point, error)
}

// Geocoder resolves queries and coordinates.
type Geocoder interface {
	Search(ctx context.Context, query string) (geocode.Place, error)
	Reverse(ctx context.Context, p orb.Point, zoom int) (geocode.Place, error)
}

// WeatherSource returns current conditions at a point.
type WeatherSource interface {
	Current(ctx context.Context, p orb.Point) (weather.Snapshot, error)
}

// PlacementRecorder is told about every marker placement.
type PlacementRecorder interface {
	RecordPlacement(p Placement)
}
