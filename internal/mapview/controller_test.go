package mapview

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/paulmach/orb"

	"github.com/i474232898/mapsi/internal/geo"
	"github.com/i474232898/mapsi/internal/geocode"
	"github.com/i474232898/mapsi/internal/geolocate"
	"github.com/i474232898/mapsi/internal/weather"
)

// recordingSurface fails the test if a second marker is ever placed while
// one is still on the map.
type recordingSurface struct {
	t *testing.T

	center   orb.Point
	zoom     int
	minZoom  int
	bounds   orb.Bound
	layers   []geo.TileLayer
	marker   *orb.Point
	places   int
	removes  int
	flights  []orb.Point
	onClick  ClickHandler
	layerOps []string
}

func (s *recordingSurface) SetView(center orb.Point, zoom int) { s.center, s.zoom = center, zoom }
func (s *recordingSurface) SetZoom(zoom int)                   { s.zoom = zoom }
func (s *recordingSurface) SetMinZoom(zoom int)                { s.minZoom = zoom }
func (s *recordingSurface) SetMaxBounds(b orb.Bound)           { s.bounds = b }
func (s *recordingSurface) OnClick(h ClickHandler)             { s.onClick = h }

func (s *recordingSurface) AddTileLayer(l geo.TileLayer) {
	s.layers = append(s.layers, l)
	s.layerOps = append(s.layerOps, "+"+string(l.Mode))
}

func (s *recordingSurface) RemoveTileLayer(l geo.TileLayer) {
	s.layerOps = append(s.layerOps, "-"+string(l.Mode))
	for i, have := range s.layers {
		if have.Mode == l.Mode {
			s.layers = append(s.layers[:i], s.layers[i+1:]...)
			return
		}
	}
	s.t.Errorf("removed layer %s that was not attached", l.Mode)
}

func (s *recordingSurface) FlyTo(p orb.Point, zoom int) {
	s.center, s.zoom = p, zoom
	s.flights = append(s.flights, p)
}

func (s *recordingSurface) PlaceMarker(p orb.Point) {
	if s.marker != nil {
		s.t.Errorf("marker placed at %v while one exists at %v", p, *s.marker)
	}
	s.marker = &p
	s.places++
}

func (s *recordingSurface) RemoveMarker() {
	if s.marker == nil {
		s.t.Errorf("removed a marker that does not exist")
	}
	s.marker = nil
	s.removes++
}

type recordingDisplay struct {
	location string
	weather  WeatherView
	ui       UIState
	alerts   []string
}

func (d *recordingDisplay) ShowLocation(text string)  { d.location = text }
func (d *recordingDisplay) ShowWeather(w WeatherView) { d.weather = w }
func (d *recordingDisplay) ShowButtons(ui UIState)    { d.ui = ui }
func (d *recordingDisplay) Alert(msg string)          { d.alerts = append(d.alerts, msg) }

type reverseResult struct {
	place geocode.Place
	err   error
	gate  chan struct{}
}

type fakeGeocoder struct {
	mu        sync.Mutex
	search    map[string]reverseResult
	reverse   map[string]reverseResult
	reverseNo int
}

func (g *fakeGeocoder) Search(ctx context.Context, q string) (geocode.Place, error) {
	r, ok := g.search[q]
	if !ok {
		return geocode.Place{}, geocode.ErrNotFound
	}
	return r.place, r.err
}

func (g *fakeGeocoder) Reverse(ctx context.Context, p orb.Point, zoom int) (geocode.Place, error) {
	g.mu.Lock()
	g.reverseNo++
	g.mu.Unlock()

	r, ok := g.reverse[geo.Format(p)]
	if !ok {
		return geocode.Place{DisplayName: "Somewhere"}, nil
	}
	if r.gate != nil {
		<-r.gate
	}
	return r.place, r.err
}

type fakeWeather struct {
	snap weather.Snapshot
	err  error
}

func (w *fakeWeather) Current(ctx context.Context, p orb.Point) (weather.Snapshot, error) {
	return w.snap, w.err
}

type recordingRecorder struct {
	mu     sync.Mutex
	placed []Placement
}

func (r *recordingRecorder) RecordPlacement(p Placement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placed = append(r.placed, p)
}

type harness struct {
	ctrl     *Controller
	surface  *recordingSurface
	display  *recordingDisplay
	geocoder *fakeGeocoder
	weather  *fakeWeather
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	h := &harness{
		surface: &recordingSurface{t: t},
		display: &recordingDisplay{},
		geocoder: &fakeGeocoder{
			search:  map[string]reverseResult{},
			reverse: map[string]reverseResult{},
		},
		weather: &fakeWeather{snap: weather.Snapshot{ConditionMain: "Clouds", TemperatureC: 7.34}},
	}
	h.ctrl = NewController(h.surface, h.display, h.geocoder, h.weather, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go h.ctrl.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.ctrl.Done()
	})
	return h
}

func (h *harness) snapshot(t *testing.T) State {
	t.Helper()
	h.ctrl.Wait()
	st, err := h.ctrl.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return st
}

var home = geo.LatLng(51.5237, -0.1585)

func (h *harness) init(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Initialize(context.Background(), geolocate.Fix{Point: home}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
}

func TestInitializeLoadsMapAroundPosition(t *testing.T) {
	h := newHarness(t, Options{})
	h.geocoder.reverse[geo.Format(home)] = reverseResult{place: geocode.Place{DisplayName: "221B Baker Street"}}
	h.init(t)

	st := h.snapshot(t)
	if st.Phase != Ready {
		t.Fatalf("expected ready, got %s", st.Phase)
	}
	if st.View.Zoom != DefaultZoom || st.View.MinZoom != DefaultMinZoom {
		t.Fatalf("unexpected zoom %d/%d", st.View.Zoom, st.View.MinZoom)
	}
	if st.View.Layer != geo.Street || st.View.MaxBounds != geo.WorldBounds {
		t.Fatalf("unexpected view %+v", st.View)
	}
	if st.Marker == nil || st.Marker.Position != home {
		t.Fatalf("expected marker at home, got %+v", st.Marker)
	}
	if h.surface.onClick == nil {
		t.Fatalf("expected click handler to be registered")
	}
	if len(h.surface.layers) != 1 || h.surface.layers[0].Mode != geo.Street {
		t.Fatalf("expected only the street layer, got %+v", h.surface.layers)
	}
	if h.display.location != "221B Baker Street" {
		t.Fatalf("unexpected location %q", h.display.location)
	}
	want := WeatherView{Icon: "icon-Clouds", Condition: "Clouds", Category: weather.ConditionCloudy, Temperature: "7.34°C"}
	if h.display.weather != want {
		t.Fatalf("unexpected weather %+v", h.display.weather)
	}
}

func TestInitializeTwiceIsRejected(t *testing.T) {
	h := newHarness(t, Options{})
	h.init(t)
	if err := h.ctrl.Initialize(context.Background(), geolocate.Fix{Point: home}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestInitializeGeolocationFailure(t *testing.T) {
	h := newHarness(t, Options{})

	err := h.ctrl.Initialize(context.Background(), geolocate.Failed(1, "User denied Geolocation"))
	if !errors.Is(err, geolocate.ErrDenied) {
		t.Fatalf("expected denied error, got %v", err)
	}

	st := h.snapshot(t)
	if st.Phase != Uninitialized || st.Marker != nil {
		t.Fatalf("map should stay uninitialized, got %+v", st)
	}
	if len(h.display.alerts) != 1 || h.display.alerts[0] != "User denied Geolocation! Allow location to continue" {
		t.Fatalf("unexpected alerts %v", h.display.alerts)
	}
	if h.surface.places != 0 {
		t.Fatalf("no marker should be placed")
	}
	if err := h.ctrl.Click(context.Background(), home); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestAtMostOneMarker(t *testing.T) {
	h := newHarness(t, Options{})
	h.init(t)

	points := []orb.Point{geo.LatLng(48.85, 2.35), geo.LatLng(40.71, -74.0), geo.LatLng(35.68, 139.69)}
	for _, p := range points {
		if err := h.surface.onClick(context.Background(), p); err != nil {
			t.Fatalf("click: %v", err)
		}
	}

	st := h.snapshot(t)
	if h.surface.places != 4 || h.surface.removes != 3 {
		t.Fatalf("expected 4 placements and 3 removals, got %d/%d", h.surface.places, h.surface.removes)
	}
	if st.Marker == nil || st.Marker.Position != points[2] {
		t.Fatalf("marker should follow the last click, got %+v", st.Marker)
	}
	if st.View.Center != points[2] {
		t.Fatalf("view should fly to the click, got %v", st.View.Center)
	}
}

func TestSearchNotFoundLeavesMarker(t *testing.T) {
	h := newHarness(t, Options{})
	h.init(t)
	before := h.snapshot(t)

	if err := h.ctrl.Search(context.Background(), "qwzxqwzx"); err != nil {
		t.Fatalf("search: %v", err)
	}

	after := h.snapshot(t)
	if after.Epoch != before.Epoch || *after.Marker != *before.Marker {
		t.Fatalf("marker should not move on a miss")
	}
	if h.display.location != LocationNotFound {
		t.Fatalf("unexpected location %q", h.display.location)
	}
}

func TestSearchTransportErrorAlerts(t *testing.T) {
	h := newHarness(t, Options{})
	h.init(t)
	h.geocoder.search["down"] = reverseResult{err: &geocode.TransportError{Provider: "nominatim", Status: 503, Err: errors.New("unavailable")}}

	if err := h.ctrl.Search(context.Background(), "down"); err != nil {
		t.Fatalf("search: %v", err)
	}
	h.ctrl.Wait()
	if len(h.display.alerts) != 1 || h.display.alerts[0] != "Problem with geocoding 503" {
		t.Fatalf("unexpected alerts %v", h.display.alerts)
	}
}

func TestSearchAppliesZoomHeuristic(t *testing.T) {
	h := newHarness(t, Options{})
	h.init(t)

	target := geo.LatLng(50.06, 19.94)
	h.geocoder.search["krakow"] = reverseResult{place: geocode.Place{Point: target, Class: "place", Importance: 0.75}}

	if err := h.ctrl.Search(context.Background(), "krakow"); err != nil {
		t.Fatalf("search: %v", err)
	}

	st := h.snapshot(t)
	if st.View.Zoom != 14 {
		t.Fatalf("expected zoom 14, got %d", st.View.Zoom)
	}
	if st.Marker.Position != target || st.View.Center != target {
		t.Fatalf("expected marker and view at target, got %+v %v", st.Marker, st.View.Center)
	}
	if n := len(h.surface.flights); n == 0 || h.surface.flights[n-1] != target {
		t.Fatalf("expected to fly to target, got %v", h.surface.flights)
	}
}

func TestReverseTourismForcesZoom(t *testing.T) {
	h := newHarness(t, Options{})
	h.init(t)

	eiffel := geo.LatLng(48.8584, 2.2945)
	h.geocoder.reverse[geo.Format(eiffel)] = reverseResult{place: geocode.Place{DisplayName: "Tour Eiffel", Class: "tourism"}}

	if err := h.ctrl.Click(context.Background(), eiffel); err != nil {
		t.Fatalf("click: %v", err)
	}

	st := h.snapshot(t)
	if st.View.Zoom != PlaceOfInterestZoom {
		t.Fatalf("expected zoom %d, got %d", PlaceOfInterestZoom, st.View.Zoom)
	}
	if h.display.location != "Tour Eiffel" {
		t.Fatalf("unexpected location %q", h.display.location)
	}
}

func TestReverseFailures(t *testing.T) {
	h := newHarness(t, Options{})
	h.init(t)

	nowhere := geo.LatLng(0, -160)
	blocked := geo.LatLng(1, 1)
	h.geocoder.reverse[geo.Format(nowhere)] = reverseResult{err: geocode.ErrNotFound}
	h.geocoder.reverse[geo.Format(blocked)] = reverseResult{err: &geocode.TransportError{Provider: "nominatim", Status: 403, Err: errors.New("forbidden")}}

	if err := h.ctrl.Click(context.Background(), nowhere); err != nil {
		t.Fatalf("click: %v", err)
	}
	h.ctrl.Wait()
	if h.display.location != LocationNotFound {
		t.Fatalf("unexpected location %q", h.display.location)
	}

	if err := h.ctrl.Click(context.Background(), blocked); err != nil {
		t.Fatalf("click: %v", err)
	}
	h.ctrl.Wait()
	if len(h.display.alerts) != 1 || h.display.alerts[0] != "403 Forbidden" {
		t.Fatalf("unexpected alerts %v", h.display.alerts)
	}
}

func TestWeatherFailureShowsPlaceholder(t *testing.T) {
	h := newHarness(t, Options{})
	h.weather.err = weather.ErrIncomplete
	h.geocoder.reverse[geo.Format(home)] = reverseResult{place: geocode.Place{DisplayName: "Marylebone"}}
	h.init(t)
	h.ctrl.Wait()

	want := WeatherView{Condition: WeatherNotFound, Temperature: TemperatureError, Failed: true}
	if h.display.weather != want {
		t.Fatalf("unexpected weather %+v", h.display.weather)
	}
	if h.display.location != "Marylebone" {
		t.Fatalf("location should be unaffected, got %q", h.display.location)
	}
}

func TestLockedModeRoundTrip(t *testing.T) {
	h := newHarness(t, Options{})
	h.init(t)
	ctx := context.Background()

	if err := h.ctrl.SetInteractionMode(ctx, Locked); err != nil {
		t.Fatalf("lock: %v", err)
	}
	st := h.snapshot(t)
	if st.View.Zoom != LockedZoom || st.View.MinZoom != LockedMinZoom {
		t.Fatalf("unexpected locked zoom %d/%d", st.View.Zoom, st.View.MinZoom)
	}
	if st.View.Layer != geo.Satellite || len(h.surface.layers) != 1 || h.surface.layers[0].Mode != geo.Satellite {
		t.Fatalf("locked mode should show satellite only, got %+v", h.surface.layers)
	}
	ui := h.display.ui
	if ui.Mode != Locked || !ui.StreetButton.Disabled || !ui.WeatherButton.Disabled || !ui.LockedButton.Hidden || ui.NormalButton.Hidden {
		t.Fatalf("unexpected locked toolbar %+v", ui)
	}
	if !ui.WeatherPanelHidden || !ui.InfoPanelHidden {
		t.Fatalf("panels should be hidden while locked")
	}
	if err := h.ctrl.SetTileLayer(ctx, geo.Street); !errors.Is(err, ErrControlsLocked) {
		t.Fatalf("expected ErrControlsLocked, got %v", err)
	}
	if err := h.ctrl.ToggleWeatherPanel(ctx); !errors.Is(err, ErrControlsLocked) {
		t.Fatalf("expected ErrControlsLocked, got %v", err)
	}

	if err := h.ctrl.SetInteractionMode(ctx, Normal); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	st = h.snapshot(t)
	if st.View.Zoom != DefaultZoom || st.View.MinZoom != DefaultMinZoom {
		t.Fatalf("unexpected normal zoom %d/%d", st.View.Zoom, st.View.MinZoom)
	}
	ui = h.display.ui
	if ui.Mode != Normal || ui.StreetButton.Disabled || ui.SatelliteButton.Disabled || ui.LockedButton.Hidden || !ui.NormalButton.Hidden {
		t.Fatalf("unexpected normal toolbar %+v", ui)
	}
	if len(h.surface.layers) != 1 {
		t.Fatalf("exactly one layer should stay attached, got %+v", h.surface.layers)
	}
	if err := h.ctrl.SetTileLayer(ctx, geo.Street); err != nil {
		t.Fatalf("layer switch after unlock: %v", err)
	}
}

func TestTileLayerSwitch(t *testing.T) {
	h := newHarness(t, Options{})
	h.init(t)
	ctx := context.Background()

	if err := h.ctrl.SetTileLayer(ctx, geo.Satellite); err != nil {
		t.Fatalf("satellite: %v", err)
	}
	h.ctrl.Wait()
	if !h.display.ui.SatelliteButton.Hidden || h.display.ui.StreetButton.Hidden {
		t.Fatalf("unexpected buttons on satellite %+v", h.display.ui)
	}

	if err := h.ctrl.SetTileLayer(ctx, geo.Street); err != nil {
		t.Fatalf("street: %v", err)
	}
	st := h.snapshot(t)

	wantOps := []string{"+street", "-street", "+satellite", "-satellite", "+street"}
	if len(h.surface.layerOps) != len(wantOps) {
		t.Fatalf("unexpected layer ops %v", h.surface.layerOps)
	}
	for i := range wantOps {
		if h.surface.layerOps[i] != wantOps[i] {
			t.Fatalf("unexpected layer ops %v", h.surface.layerOps)
		}
	}
	if st.View.Layer != geo.Street || !h.display.ui.StreetButton.Hidden || h.display.ui.SatelliteButton.Hidden {
		t.Fatalf("unexpected state after switching back %+v %+v", st.View, h.display.ui)
	}
	if st.Marker == nil || st.Marker.Position != home {
		t.Fatalf("marker should be re-rendered at the center, got %+v", st.Marker)
	}
}

func TestStaleLookupsAreDiscarded(t *testing.T) {
	h := newHarness(t, Options{})

	gate := make(chan struct{})
	h.geocoder.reverse[geo.Format(home)] = reverseResult{place: geocode.Place{DisplayName: "Old place"}, gate: gate}
	second := geo.LatLng(52.52, 13.40)
	h.geocoder.reverse[geo.Format(second)] = reverseResult{place: geocode.Place{DisplayName: "New place"}}

	h.init(t)
	if err := h.ctrl.Click(context.Background(), second); err != nil {
		t.Fatalf("click: %v", err)
	}
	close(gate)

	st := h.snapshot(t)
	if h.display.location != "New place" {
		t.Fatalf("stale lookup overwrote the panel: %q", h.display.location)
	}
	if st.Epoch != 2 {
		t.Fatalf("expected epoch 2, got %d", st.Epoch)
	}
}

func TestPlacementsAreRecorded(t *testing.T) {
	rec := &recordingRecorder{}
	h := newHarness(t, Options{Recorder: rec})
	h.init(t)
	if err := h.ctrl.Click(context.Background(), geo.LatLng(1, 2)); err != nil {
		t.Fatalf("click: %v", err)
	}
	h.ctrl.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.placed) != 2 {
		t.Fatalf("expected 2 placements, got %d", len(rec.placed))
	}
	if rec.placed[0].Source != SourceGeolocation || rec.placed[1].Source != SourceClick {
		t.Fatalf("unexpected sources %+v", rec.placed)
	}
	if rec.placed[1].Position != (geo.Position{Lat: 1, Lng: 2}) {
		t.Fatalf("unexpected position %+v", rec.placed[1].Position)
	}
}

func TestPanelToggles(t *testing.T) {
	h := newHarness(t, Options{})
	h.init(t)
	ctx := context.Background()

	if err := h.ctrl.ToggleWeatherPanel(ctx); err != nil {
		t.Fatalf("toggle weather: %v", err)
	}
	if err := h.ctrl.ToggleInfoPanel(ctx); err != nil {
		t.Fatalf("toggle info: %v", err)
	}
	st := h.snapshot(t)
	if !st.UI.WeatherPanelHidden || !st.UI.WeatherButton.Hidden || !st.UI.InfoPanelHidden {
		t.Fatalf("unexpected panels %+v", st.UI)
	}
}

func TestFocusAndRefreshWeather(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	if err := h.ctrl.FocusMarker(ctx); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	h.init(t)
	h.ctrl.Wait()
	h.weather.snap = weather.Snapshot{ConditionMain: "Rain", TemperatureC: -1.5}
	if err := h.ctrl.RefreshWeather(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := h.ctrl.FocusMarker(ctx); err != nil {
		t.Fatalf("focus: %v", err)
	}
	h.ctrl.Wait()

	if h.display.weather.Temperature != "-1.5°C" || h.display.weather.Icon != "icon-Rain" || h.display.weather.Category != weather.ConditionRain {
		t.Fatalf("unexpected weather %+v", h.display.weather)
	}
	if n := len(h.surface.flights); n == 0 || h.surface.flights[n-1] != home {
		t.Fatalf("expected to fly back home, got %v", h.surface.flights)
	}
}

func TestStoppedController(t *testing.T) {
	ctrl := NewController(&recordingSurface{t: t}, &recordingDisplay{}, &fakeGeocoder{}, &fakeWeather{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)
	cancel()
	<-ctrl.Done()

	if _, err := ctrl.Snapshot(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestWeatherKeepsProviderCategory(t *testing.T) {
	h := newHarness(t, Options{})
	h.weather.snap = weather.Snapshot{ConditionMain: "Squall", Condition: weather.ConditionStorm, TemperatureC: 12}
	h.init(t)
	h.ctrl.Wait()

	if got := h.display.weather.Category; got != weather.ConditionStorm {
		t.Fatalf("expected storm category, got %q", got)
	}
	if h.display.weather.Icon != "icon-Squall" {
		t.Fatalf("unexpected icon %q", h.display.weather.Icon)
	}
}
