package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/i474232898/mapsi/internal/geo"
	"github.com/i474232898/mapsi/internal/resilient"
	"github.com/i474232898/mapsi/internal/weather"
)

func TestOpenWeatherCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("units") != "metric" || q.Get("appid") != "secret" || q.Get("lat") != "52.52" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"dt":1700000000,"weather":[{"main":"Clouds"}],"main":{"temp":7.34}}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "secret", srv.URL)
	snap, err := p.Current(context.Background(), geo.LatLng(52.52, 13.405))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ConditionMain != "Clouds" || snap.Condition != weather.ConditionCloudy {
		t.Fatalf("unexpected condition: %+v", snap)
	}
	if snap.TemperatureC != 7.34 {
		t.Fatalf("expected 7.34, got %v", snap.TemperatureC)
	}
}

func TestOpenWeatherUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "bad", srv.URL)
	_, err := p.Current(context.Background(), geo.LatLng(0, 0))

	var statusErr *resilient.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
}

func TestOpenWeatherMissingKey(t *testing.T) {
	p := NewOpenWeatherProvider(http.DefaultClient, "", "")
	if _, err := p.Current(context.Background(), geo.LatLng(0, 0)); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestOpenMeteoCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("current_weather") != "true" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"current_weather":{"temperature":-3.5,"time":"2024-01-10T08:00","weathercode":73}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL)
	snap, err := p.Current(context.Background(), geo.LatLng(60.17, 24.94))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ConditionMain != "Snow" || snap.TemperatureC != -3.5 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestOpenMeteoMain(t *testing.T) {
	cases := map[int]string{
		0:  "Clear",
		2:  "Clouds",
		45: "Fog",
		53: "Drizzle",
		63: "Rain",
		81: "Rain",
		75: "Snow",
		95: "Thunderstorm",
	}
	for code, want := range cases {
		if got := openMeteoMain(code); got != want {
			t.Errorf("code %d: expected %s, got %s", code, want, got)
		}
	}
}
