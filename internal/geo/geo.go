// Package geo holds the coordinate and tile-layer primitives shared by the
// map controller, the geocoders and the weather providers.
package geo

import (
	"fmt"

	"github.com/paulmach/orb"
)

// WorldBounds is the viewport limit applied to every map. It is deliberately
// wider than the globe so panning across the antimeridian keeps working.
var WorldBounds = orb.Bound{
	Min: orb.Point{-360, -180},
	Max: orb.Point{360, 180},
}

// LatLng builds an orb.Point from latitude/longitude order, which is the
// order every upstream API and the browser use.
func LatLng(lat, lng float64) orb.Point {
	return orb.Point{lng, lat}
}

// Valid reports whether p is a real WGS84 coordinate.
func Valid(p orb.Point) bool {
	return p.Lat() >= -90 && p.Lat() <= 90 && p.Lon() >= -180 && p.Lon() <= 180
}

// Format renders p as "lat,lng" with six decimals.
func Format(p orb.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat(), p.Lon())
}

// Position is the JSON shape of a coordinate exchanged with the page.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ToPosition converts an orb.Point into its JSON shape.
func ToPosition(p orb.Point) Position {
	return Position{Lat: p.Lat(), Lng: p.Lon()}
}

// Point converts back to orb.
func (p Position) Point() orb.Point {
	return LatLng(p.Lat, p.Lng)
}
