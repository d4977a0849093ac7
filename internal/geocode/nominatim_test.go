package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/i474232898/mapsi/internal/geo"
	"github.com/i474232898/mapsi/internal/resilient"
)

func newTestNominatim(t *testing.T, handler http.HandlerFunc) *Nominatim {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewNominatim(srv.Client(), NominatimOptions{
		BaseURL: srv.URL,
		Backoff: resilient.BackoffConfig{MaxRetries: 0, InitialInterval: time.Millisecond},
	})
}

func TestNominatimSearch(t *testing.T) {
	n := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "eiffel tower" || q.Get("format") != "json" || q.Get("limit") != "1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing User-Agent header")
		}
		w.Write([]byte(`[{"lat":"48.8582599","lon":"2.2945006","display_name":"Tour Eiffel, Paris","class":"tourism","importance":0.62}]`))
	})

	place, err := n.Search(context.Background(), "eiffel tower")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if place.Class != "tourism" || place.Importance != 0.62 {
		t.Fatalf("unexpected place: %+v", place)
	}
	if place.Point.Lat() != 48.8582599 || place.Point.Lon() != 2.2945006 {
		t.Fatalf("unexpected point: %v", place.Point)
	}
}

func TestNominatimSearchEmptyResult(t *testing.T) {
	n := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := n.Search(context.Background(), "qwertyuiop")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNominatimReverse(t *testing.T) {
	n := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("format") != "jsonv2" || q.Get("zoom") != "16" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"lat":"48.85826","lon":"2.29450","display_name":"Tour Eiffel, Paris","category":"tourism"}`))
	})

	place, err := n.Reverse(context.Background(), geo.LatLng(48.8582, 2.2945), 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if place.DisplayName != "Tour Eiffel, Paris" {
		t.Fatalf("unexpected display name %q", place.DisplayName)
	}
	if place.Class != "tourism" {
		t.Fatalf("expected category to be read as class, got %q", place.Class)
	}
}

func TestNominatimReverseErrorBody(t *testing.T) {
	n := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	})

	_, err := n.Reverse(context.Background(), geo.LatLng(0, -140), 10)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNominatimTransportError(t *testing.T) {
	n := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := n.Reverse(context.Background(), geo.LatLng(1, 1), 10)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Status != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", te.Status)
	}
}

type stubGeocoder struct {
	name  string
	place Place
	err   error
	calls int
}

func (s *stubGeocoder) Name() string { return s.name }

func (s *stubGeocoder) Search(ctx context.Context, query string) (Place, error) {
	s.calls++
	return s.place, s.err
}

func (s *stubGeocoder) Reverse(ctx context.Context, p orb.Point, zoom int) (Place, error) {
	s.calls++
	return s.place, s.err
}

func TestFallbackStopsOnNotFound(t *testing.T) {
	primary := &stubGeocoder{name: "a", err: ErrNotFound}
	secondary := &stubGeocoder{name: "b", place: Place{DisplayName: "x"}}

	_, err := NewFallback(primary, secondary).Search(context.Background(), "x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary should not be consulted after a definitive miss")
	}
}

func TestFallbackMovesOnAfterTransportError(t *testing.T) {
	primary := &stubGeocoder{name: "a", err: &TransportError{Provider: "a", Status: 503, Err: errors.New("down")}}
	secondary := &stubGeocoder{name: "b", place: Place{DisplayName: "Paris"}}

	place, err := NewFallback(primary, secondary).Search(context.Background(), "paris")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if place.DisplayName != "Paris" {
		t.Fatalf("expected secondary result, got %+v", place)
	}
}
