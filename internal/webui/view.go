// Package webui keeps the server-side model of what a page shows. A View is
// the map surface and the panels a Controller draws on; the browser mirrors
// it through the event stream.
package webui

import (
	"context"
	"errors"
	"sync"

	"github.com/paulmach/orb"

	"github.com/i474232898/mapsi/internal/geo"
	"github.com/i474232898/mapsi/internal/mapview"
)

var ErrNoClickHandler = errors.New("map is not accepting clicks")

// maxAlerts bounds the alert history kept in a Model; older alerts are dropped.
const maxAlerts = 20

// Model is a serialisable copy of a View.
type Model struct {
	Center  geo.Position    `json:"center"`
	Zoom    int             `json:"zoom"`
	MinZoom int             `json:"minZoom"`
	Bounds  [2]geo.Position `json:"maxBounds"`
	Layers  []LayerModel    `json:"layers"`
	Marker  *geo.Position   `json:"marker,omitempty"`
	FlyTo   *geo.Position   `json:"flyTo,omitempty"`

	Location string              `json:"location"`
	Weather  mapview.WeatherView `json:"weather"`
	Buttons  mapview.UIState     `json:"buttons"`
	Alerts   []string            `json:"alerts,omitempty"`
}

// LayerModel is an attached tile layer plus the tile under the map center,
// which lets clients preload it.
type LayerModel struct {
	Mode        geo.LayerMode `json:"mode"`
	Name        string        `json:"name"`
	URL         string        `json:"url"`
	Attribution string        `json:"attribution"`
	CenterTile  string        `json:"centerTile"`
}

// View implements mapview.Surface and mapview.Display.
type View struct {
	bus *Bus

	mu      sync.RWMutex
	model   Model
	layers  []geo.TileLayer
	onClick mapview.ClickHandler
}

func NewView(bus *Bus) *View {
	if bus == nil {
		bus = NewBus()
	}
	return &View{
		bus: bus,
		model: Model{
			Buttons: mapview.DefaultUIState(),
		},
	}
}

func (v *View) Bus() *Bus {
	return v.bus
}

// Model returns a copy of the current view.
func (v *View) Model() Model {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := v.model
	out.Layers = v.layerModels()
	out.Alerts = append([]string(nil), v.model.Alerts...)
	if v.model.Marker != nil {
		m := *v.model.Marker
		out.Marker = &m
	}
	if v.model.FlyTo != nil {
		f := *v.model.FlyTo
		out.FlyTo = &f
	}
	return out
}

// Click forwards a click to whoever registered with OnClick.
func (v *View) Click(ctx context.Context, p orb.Point) error {
	v.mu.RLock()
	handler := v.onClick
	v.mu.RUnlock()

	if handler == nil {
		return ErrNoClickHandler
	}
	return handler(ctx, p)
}

func (v *View) SetView(center orb.Point, zoom int) {
	v.update("view", func(m *Model) any {
		m.Center = geo.ToPosition(center)
		m.Zoom = zoom
		return v.viewportData(m)
	})
}

func (v *View) SetZoom(zoom int) {
	v.update("view", func(m *Model) any {
		m.Zoom = zoom
		return v.viewportData(m)
	})
}

func (v *View) SetMinZoom(zoom int) {
	v.update("view", func(m *Model) any {
		m.MinZoom = zoom
		return v.viewportData(m)
	})
}

func (v *View) SetMaxBounds(bounds orb.Bound) {
	v.update("view", func(m *Model) any {
		m.Bounds = [2]geo.Position{geo.ToPosition(bounds.Min), geo.ToPosition(bounds.Max)}
		return v.viewportData(m)
	})
}

func (v *View) AddTileLayer(layer geo.TileLayer) {
	v.update("layers", func(m *Model) any {
		v.layers = append(v.layers, layer)
		return v.layerModels()
	})
}

func (v *View) RemoveTileLayer(layer geo.TileLayer) {
	v.update("layers", func(m *Model) any {
		for i, l := range v.layers {
			if l.Mode == layer.Mode {
				v.layers = append(v.layers[:i], v.layers[i+1:]...)
				break
			}
		}
		return v.layerModels()
	})
}

func (v *View) FlyTo(p orb.Point, zoom int) {
	v.update("view", func(m *Model) any {
		pos := geo.ToPosition(p)
		m.Center = pos
		m.Zoom = zoom
		m.FlyTo = &pos
		return v.viewportData(m)
	})
}

func (v *View) PlaceMarker(p orb.Point) {
	v.update("marker", func(m *Model) any {
		pos := geo.ToPosition(p)
		m.Marker = &pos
		return pos
	})
}

func (v *View) RemoveMarker() {
	v.update("marker", func(m *Model) any {
		m.Marker = nil
		return nil
	})
}

func (v *View) OnClick(handler mapview.ClickHandler) {
	v.mu.Lock()
	v.onClick = handler
	v.mu.Unlock()
}

func (v *View) ShowLocation(text string) {
	v.update("location", func(m *Model) any {
		m.Location = text
		return text
	})
}

func (v *View) ShowWeather(w mapview.WeatherView) {
	v.update("weather", func(m *Model) any {
		m.Weather = w
		return w
	})
}

func (v *View) ShowButtons(ui mapview.UIState) {
	v.update("buttons", func(m *Model) any {
		m.Buttons = ui
		return ui
	})
}

func (v *View) Alert(message string) {
	v.update("alert", func(m *Model) any {
		m.Alerts = append(m.Alerts, message)
		if n := len(m.Alerts); n > maxAlerts {
			m.Alerts = append([]string(nil), m.Alerts[n-maxAlerts:]...)
		}
		return message
	})
}

// update applies fn under the lock and publishes what it returns.
func (v *View) update(typ string, fn func(m *Model) any) {
	v.mu.Lock()
	data := fn(&v.model)
	v.mu.Unlock()

	v.bus.Publish(Event{Type: typ, Data: data})
}

type viewport struct {
	Center  geo.Position `json:"center"`
	Zoom    int          `json:"zoom"`
	MinZoom int          `json:"minZoom"`
}

func (v *View) viewportData(m *Model) viewport {
	return viewport{Center: m.Center, Zoom: m.Zoom, MinZoom: m.MinZoom}
}

// layerModels must be called with v.mu held.
func (v *View) layerModels() []LayerModel {
	out := make([]LayerModel, 0, len(v.layers))
	center := v.model.Center.Point()
	for _, l := range v.layers {
		out = append(out, LayerModel{
			Mode:        l.Mode,
			Name:        l.Name,
			URL:         l.URLTemplate,
			Attribution: l.Attribution,
			CenterTile:  l.TileURL(center, v.model.Zoom),
		})
	}
	return out
}

var (
	_ mapview.Surface = (*View)(nil)
	_ mapview.Display = (*View)(nil)
)
