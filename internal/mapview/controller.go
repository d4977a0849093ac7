// Package mapview implements the map controller: the viewport, the single
// marker, and the location/weather panels that follow it.
//
// All state lives on one goroutine started with Run. Public methods enqueue
// a command and wait for it; network lookups run on their own goroutines and
// post their results back, tagged with the placement epoch that started
// them. Results for a superseded placement are dropped.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/i474232898/mapsi/internal/geo"
	"github.com/i474232898/mapsi/internal/geocode"
	"github.com/i474232898/mapsi/internal/geolocate"
	"github.com/i474232898/mapsi/internal/weather"
)

var (
	ErrNotReady           = errors.New("map is not initialized")
	ErrAlreadyInitialized = errors.New("map is already initialized")
	ErrControlsLocked     = errors.New("map controls are locked")
	ErrStopped            = errors.New("map controller stopped")
)

const defaultFetchTimeout = 15 * time.Second

// Options tunes a Controller. The zero value is usable.
type Options struct {
	Layers       geo.Catalog
	FetchTimeout time.Duration
	Recorder     PlacementRecorder
}

// Controller owns one page session's map.
type Controller struct {
	surface      Surface
	display      Display
	geocoder     Geocoder
	weather      WeatherSource
	layers       geo.Catalog
	recorder     PlacementRecorder
	fetchTimeout time.Duration

	cmds     chan command
	stopped  chan struct{}
	inflight sync.WaitGroup

	// st is only touched by the Run goroutine.
	st state
}

type command struct {
	fn   func(*state)
	done chan struct{}
}

type state struct {
	phase    Phase
	view     ViewState
	marker   *Marker
	ui       UIState
	epoch    uint64
	attached *geo.TileLayer
}

// NewController creates a Controller. Call Run before any other method.
func NewController(surface Surface, display Display, geocoder Geocoder, weather WeatherSource, opts Options) *Controller {
	if opts.Layers == nil {
		opts.Layers = geo.DefaultCatalog()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}

	return &Controller{
		surface:      surface,
		display:      display,
		geocoder:     geocoder,
		weather:      weather,
		layers:       opts.Layers,
		recorder:     opts.Recorder,
		fetchTimeout: opts.FetchTimeout,
		cmds:         make(chan command),
		stopped:      make(chan struct{}),
		st: state{
			ui: DefaultUIState(),
		},
	}
}

// Run processes commands until ctx is done. It must be called exactly once.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.cmds:
			cmd.fn(&c.st)
			close(cmd.done)
		}
	}
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.stopped
}

// Wait blocks until every lookup started so far has been applied or dropped.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) exec(ctx context.Context, fn func(*state)) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case c.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
	// Run always finishes a command it has received.
	<-cmd.done
	return nil
}

func (c *Controller) do(ctx context.Context, fn func(*state) error) error {
	var opErr error
	if err := c.exec(ctx, func(st *state) { opErr = fn(st) }); err != nil {
		return err
	}
	return opErr
}

// post delivers a lookup result; it is dropped once the controller stopped.
func (c *Controller) post(fn func(*state)) {
	if err := c.exec(context.Background(), fn); err != nil {
		log.Printf("DEBUG: dropping lookup result: %v", err)
	}
}

// Initialize obtains the user's position and brings the map up around it.
// On failure the user is alerted, the map stays uninitialized and the
// *geolocate.Error is returned.
func (c *Controller) Initialize(ctx context.Context, locator Geolocator) error {
	p, err := locator.CurrentPosition(ctx)
	if err != nil {
		gerr := geolocate.AsError(err)
		log.Printf("ERROR: geolocation failed: %v", err)

		if execErr := c.exec(ctx, func(st *state) {
			c.display.Alert(fmt.Sprintf("%s! Allow location to continue", gerr.Error()))
		}); execErr != nil {
			return execErr
		}
		return gerr
	}

	return c.do(ctx, func(st *state) error {
		if st.phase == Ready {
			return ErrAlreadyInitialized
		}

		st.phase = Ready
		st.view = ViewState{
			Center:    p,
			Zoom:      DefaultZoom,
			MinZoom:   DefaultMinZoom,
			MaxBounds: geo.WorldBounds,
			Layer:     geo.Street,
		}

		c.surface.SetMaxBounds(st.view.MaxBounds)
		c.surface.SetMinZoom(st.view.MinZoom)
		c.surface.SetView(p, st.view.Zoom)
		c.surface.OnClick(c.Click)

		c.attachLayer(st, st.view.Layer)
		c.display.ShowButtons(st.ui)

		log.Printf("INFO: map initialized at %s", geo.Format(p))
		c.selectMarker(st, p, false, SourceGeolocation)
		return nil
	})
}

// Click places the marker where the user clicked.
func (c *Controller) Click(ctx context.Context, p orb.Point) error {
	return c.do(ctx, func(st *state) error {
		if st.phase != Ready {
			return ErrNotReady
		}
		c.selectMarker(st, p, true, SourceClick)
		return nil
	})
}

// Search geocodes query and moves the marker to the best match. A miss or
// an upstream failure is reported on the display, not returned.
func (c *Controller) Search(ctx context.Context, query string) error {
	if err := c.requireReady(ctx); err != nil {
		return err
	}

	place, err := c.geocoder.Search(ctx, query)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	return c.do(ctx, func(st *state) error {
		var te *geocode.TransportError
		switch {
		case errors.Is(err, geocode.ErrNotFound):
			log.Printf("INFO: search %q: no match", query)
			c.display.ShowLocation(LocationNotFound)
			return nil
		case errors.As(err, &te):
			log.Printf("ERROR: search %q failed: %v", query, err)
			c.display.Alert(fmt.Sprintf("Problem with geocoding %d", te.Status))
			return nil
		case err != nil:
			log.Printf("ERROR: search %q failed: %v", query, err)
			c.display.Alert("Problem with geocoding")
			return nil
		}

		decision := SelectZoom(place.Class, place.Importance)
		log.Printf("DEBUG: search %q matched %s (class=%s importance=%.2f rule=%s zoom=%d)",
			query, geo.Format(place.Point), place.Class, place.Importance, decision.Rule, decision.Zoom)

		c.setZoom(st, decision.Zoom)
		c.selectMarker(st, place.Point, true, SourceSearch)
		return nil
	})
}

// SetTileLayer swaps the map background and re-renders the marker in place.
func (c *Controller) SetTileLayer(ctx context.Context, mode geo.LayerMode) error {
	return c.do(ctx, func(st *state) error {
		if st.phase != Ready {
			return ErrNotReady
		}
		if st.ui.Mode == Locked {
			return ErrControlsLocked
		}

		c.attachLayer(st, mode)
		c.display.ShowButtons(st.ui)
		c.selectMarker(st, st.view.Center, false, SourceLayer)
		return nil
	})
}

// SetInteractionMode switches between the normal toolbar and the locked,
// satellite-only close-up view.
func (c *Controller) SetInteractionMode(ctx context.Context, mode InteractionMode) error {
	return c.do(ctx, func(st *state) error {
		if st.phase != Ready {
			return ErrNotReady
		}

		switch mode {
		case Locked:
			st.ui.lock()
			c.attachLayer(st, geo.Satellite)
			c.display.ShowButtons(st.ui)
			c.setZoom(st, LockedZoom)
			c.setMinZoom(st, LockedMinZoom)
		case Normal:
			st.ui.unlock()
			c.attachLayer(st, st.view.Layer)
			c.display.ShowButtons(st.ui)
			c.setZoom(st, DefaultZoom)
			c.setMinZoom(st, DefaultMinZoom)
		default:
			return fmt.Errorf("unknown interaction mode %q", mode)
		}

		c.selectMarker(st, st.view.Center, false, SourceMode)
		return nil
	})
}

// ToggleWeatherPanel shows or hides the weather panel.
func (c *Controller) ToggleWeatherPanel(ctx context.Context) error {
	return c.do(ctx, func(st *state) error {
		if st.ui.Mode == Locked {
			return ErrControlsLocked
		}
		st.ui.WeatherPanelHidden = !st.ui.WeatherPanelHidden
		st.ui.WeatherButton.Hidden = !st.ui.WeatherButton.Hidden
		c.display.ShowButtons(st.ui)
		return nil
	})
}

// ToggleInfoPanel shows or hides the information panel.
func (c *Controller) ToggleInfoPanel(ctx context.Context) error {
	return c.do(ctx, func(st *state) error {
		st.ui.InfoPanelHidden = !st.ui.InfoPanelHidden
		c.display.ShowButtons(st.ui)
		return nil
	})
}

// FocusMarker flies back to the marker at the current zoom.
func (c *Controller) FocusMarker(ctx context.Context) error {
	return c.do(ctx, func(st *state) error {
		if st.phase != Ready || st.marker == nil {
			return ErrNotReady
		}
		st.view.Center = st.marker.Position
		c.surface.FlyTo(st.marker.Position, st.view.Zoom)
		return nil
	})
}

// RefreshWeather re-fetches the weather for the current marker.
func (c *Controller) RefreshWeather(ctx context.Context) error {
	return c.do(ctx, func(st *state) error {
		if st.phase != Ready || st.marker == nil {
			return ErrNotReady
		}
		c.inflight.Add(1)
		go c.refreshWeather(st.epoch, st.marker.Position)
		return nil
	})
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot(ctx context.Context) (State, error) {
	var out State
	err := c.exec(ctx, func(st *state) {
		out = State{
			Phase: st.phase,
			View:  st.view,
			UI:    st.ui,
			Epoch: st.epoch,
		}
		if st.marker != nil {
			m := *st.marker
			out.Marker = &m
		}
	})
	return out, err
}

func (c *Controller) requireReady(ctx context.Context) error {
	return c.do(ctx, func(st *state) error {
		if st.phase != Ready {
			return ErrNotReady
		}
		return nil
	})
}

// attachLayer detaches the current background before attaching the new one.
func (c *Controller) attachLayer(st *state, mode geo.LayerMode) {
	if st.attached != nil {
		c.surface.RemoveTileLayer(*st.attached)
		st.attached = nil
	}

	layer := c.layers.Layer(mode)
	c.surface.AddTileLayer(layer)
	st.attached = &layer
	st.view.Layer = mode
	st.ui.setLayer(mode)
}

func (c *Controller) setZoom(st *state, zoom int) {
	if zoom < st.view.MinZoom {
		zoom = st.view.MinZoom
	}
	if zoom > geo.MaxZoom {
		zoom = geo.MaxZoom
	}
	st.view.Zoom = zoom
	c.surface.SetZoom(zoom)
}

func (c *Controller) setMinZoom(st *state, zoom int) {
	st.view.MinZoom = zoom
	c.surface.SetMinZoom(zoom)
	if st.view.Zoom < zoom {
		c.setZoom(st, zoom)
	}
}

// selectMarker replaces the marker and starts both panel lookups. The old
// marker is always removed before the new one is placed.
func (c *Controller) selectMarker(st *state, p orb.Point, animate bool, source PlacementSource) {
	if st.marker != nil {
		c.surface.RemoveMarker()
		st.marker = nil
	}

	st.marker = &Marker{Position: p}
	c.surface.PlaceMarker(p)

	if animate {
		st.view.Center = p
		c.surface.FlyTo(p, st.view.Zoom)
	}

	st.epoch++
	epoch, zoom := st.epoch, st.view.Zoom

	if c.recorder != nil {
		c.recorder.RecordPlacement(Placement{
			Position: geo.ToPosition(p),
			Zoom:     zoom,
			Source:   source,
			At:       time.Now().UTC(),
		})
	}

	c.inflight.Add(2)
	go c.refreshLocationDetails(epoch, p, zoom)
	go c.refreshWeather(epoch, p)
}

func (c *Controller) refreshLocationDetails(epoch uint64, p orb.Point, zoom int) {
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	place, err := c.geocoder.Reverse(ctx, p, zoom)

	c.post(func(st *state) {
		if st.epoch != epoch {
			log.Printf("DEBUG: discarding stale location details for %s", geo.Format(p))
			return
		}

		var te *geocode.TransportError
		switch {
		case err == nil:
			c.display.ShowLocation(place.DisplayName)
			if place.Class == "tourism" {
				c.setZoom(st, PlaceOfInterestZoom)
			}
		case errors.Is(err, geocode.ErrNotFound):
			c.display.ShowLocation(LocationNotFound)
		case errors.As(err, &te) && te.Status != 0:
			log.Printf("ERROR: reverse geocoding %s failed: %v", geo.Format(p), err)
			c.display.Alert(fmt.Sprintf("%d %s", te.Status, http.StatusText(te.Status)))
		default:
			log.Printf("ERROR: reverse geocoding %s failed: %v", geo.Format(p), err)
			c.display.Alert("Location service unavailable")
		}
	})
}

func (c *Controller) refreshWeather(epoch uint64, p orb.Point) {
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	snap, err := c.weather.Current(ctx, p)

	c.post(func(st *state) {
		if st.epoch != epoch {
			log.Printf("DEBUG: discarding stale weather for %s", geo.Format(p))
			return
		}

		if err != nil {
			log.Printf("ERROR: weather for %s failed: %v", geo.Format(p), err)
			c.display.ShowWeather(WeatherView{
				Condition:   WeatherNotFound,
				Temperature: TemperatureError,
				Failed:      true,
			})
			return
		}

		category := snap.Condition
		if category == "" {
			category = weather.NormalizeMain(snap.ConditionMain)
		}
		c.display.ShowWeather(WeatherView{
			Icon:        "icon-" + snap.ConditionMain,
			Condition:   snap.ConditionMain,
			Category:    category,
			Temperature: FormatTemperature(snap.TemperatureC),
		})
	})
}
