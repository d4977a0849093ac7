package mapview

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/i474232898/mapsi/internal/geo"
	"github.com/i474232898/mapsi/internal/weather"
)

// User-facing texts.
const (
	LocationNotFound = "Location not found! Please try again with a different search term or check the spelling."
	WeatherNotFound  = "Weather not found!"
	TemperatureError = "ERROR"
)

// Zoom levels applied by the controller.
const (
	DefaultZoom    = 16
	DefaultMinZoom = 2
	LockedZoom     = 18
	LockedMinZoom  = 15
	// PlaceOfInterestZoom is forced whenever a reverse lookup lands on a
	// tourism feature.
	PlaceOfInterestZoom = 18
)

// Phase is the controller lifecycle.
type Phase int

const (
	Uninitialized Phase = iota
	Ready
)

func (p Phase) String() string {
	if p == Ready {
		return "ready"
	}
	return "uninitialized"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// InteractionMode is the coarse UI mode.
type InteractionMode string

const (
	Normal InteractionMode = "normal"
	Locked InteractionMode = "locked"
)

func ParseInteractionMode(s string) (InteractionMode, error) {
	switch InteractionMode(strings.ToLower(strings.TrimSpace(s))) {
	case Normal:
		return Normal, nil
	case Locked:
		return Locked, nil
	default:
		return "", fmt.Errorf("unknown interaction mode %q", s)
	}
}

// ViewState is the map viewport owned by the controller.
type ViewState struct {
	Center    orb.Point
	Zoom      int
	MinZoom   int
	MaxBounds orb.Bound
	Layer     geo.LayerMode
}

// Marker is the single location pin.
type Marker struct {
	Position orb.Point
}

// Button is the visual state of one toolbar button. The button of the
// active layer (and of the active mode) is hidden since it is not on offer.
type Button struct {
	Hidden   bool `json:"hidden"`
	Disabled bool `json:"disabled"`
}

// UIState drives which controls and panels the page shows.
type UIState struct {
	Mode InteractionMode `json:"mode"`

	StreetButton    Button `json:"streetButton"`
	SatelliteButton Button `json:"satelliteButton"`
	WeatherButton   Button `json:"weatherButton"`
	NormalButton    Button `json:"normalButton"`
	LockedButton    Button `json:"lockedButton"`

	WeatherPanelHidden bool `json:"weatherPanelHidden"`
	InfoPanelHidden    bool `json:"infoPanelHidden"`
}

// DefaultUIState is the toolbar as the page first renders it: street layer
// and normal mode active.
func DefaultUIState() UIState {
	return UIState{
		Mode:         Normal,
		StreetButton: Button{Hidden: true},
		NormalButton: Button{Hidden: true},
	}
}

func (u *UIState) setLayer(mode geo.LayerMode) {
	u.StreetButton.Hidden = mode == geo.Street
	u.SatelliteButton.Hidden = mode == geo.Satellite
}

func (u *UIState) lock() {
	u.Mode = Locked
	u.LockedButton.Hidden = true
	u.NormalButton.Hidden = false

	u.StreetButton.Disabled = true
	u.SatelliteButton.Disabled = true
	u.WeatherButton.Disabled = true
	u.WeatherButton.Hidden = false

	u.WeatherPanelHidden = true
	u.InfoPanelHidden = true
}

func (u *UIState) unlock() {
	u.Mode = Normal
	u.NormalButton.Hidden = true
	u.LockedButton.Hidden = false

	u.StreetButton.Disabled = false
	u.SatelliteButton.Disabled = false
	u.WeatherButton.Disabled = false
}

// WeatherView is what the weather panel shows.
type WeatherView struct {
	// Icon is the sprite id, "icon-<main>"; empty on failure.
	Icon string `json:"icon"`
	// Condition is the label under the icon, or the failure text.
	Condition string `json:"condition"`
	// Category is the coarse condition family; the page falls back to its
	// icon when it has none for Icon.
	Category    weather.Condition `json:"category,omitempty"`
	Temperature string            `json:"temperature"`
	Failed      bool              `json:"failed"`
}

// FormatTemperature renders t exactly as reported, suffixed with °C.
func FormatTemperature(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64) + "°C"
}

// PlacementSource tells why a marker was placed.
type PlacementSource string

const (
	SourceGeolocation PlacementSource = "geolocation"
	SourceClick       PlacementSource = "click"
	SourceSearch      PlacementSource = "search"
	SourceLayer       PlacementSource = "layer"
	SourceMode        PlacementSource = "mode"
)

// Placement records one marker placement.
type Placement struct {
	Position geo.Position    `json:"position"`
	Zoom     int             `json:"zoom"`
	Source   PlacementSource `json:"source"`
	At       time.Time       `json:"at"`
}

// State is a copy of the controller's state.
type State struct {
	Phase  Phase
	View   ViewState
	Marker *Marker
	UI     UIState
	Epoch  uint64
}
