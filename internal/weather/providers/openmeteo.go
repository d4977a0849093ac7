package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/i474232898/mapsi/internal/resilient"
	"github.com/i474232898/mapsi/internal/weather"
)

const defaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs no API key, which makes it the fallback when OpenWeatherMap is
// unconfigured or down.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	doer    *resilient.Doer
}

func NewOpenMeteoProvider(client *http.Client, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = defaultOpenMeteoURL
	}

	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		doer: resilient.New("openmeteo", resilient.Config{
			Client:  client,
			Backoff: resilient.DefaultBackoff,
		}),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Current(ctx context.Context, pt orb.Point) (weather.Snapshot, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(pt.Lat(), 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(pt.Lon(), 'f', -1, 64))
		values.Set("current_weather", "true")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := p.doer.Do(ctx, buildRequest)
	if err != nil {
		return weather.Snapshot{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		CurrentWeather *struct {
			Temperature float64 `json:"temperature"`
			Time        string  `json:"time"`
			WeatherCode int     `json:"weathercode"`
		} `json:"current_weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Snapshot{}, err
	}
	if payload.CurrentWeather == nil {
		return weather.Snapshot{}, weather.ErrIncomplete
	}

	// Open-Meteo reports local ISO times without a zone suffix.
	ts, err := time.Parse("2006-01-02T15:04", payload.CurrentWeather.Time)
	if err != nil {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	main := openMeteoMain(payload.CurrentWeather.WeatherCode)

	return weather.Snapshot{
		Timestamp:     ts,
		ConditionMain: main,
		Condition:     weather.NormalizeMain(main),
		TemperatureC:  payload.CurrentWeather.Temperature,
		Provider:      p.name,
	}, nil
}

// openMeteoMain translates WMO weather codes into the OpenWeatherMap "main"
// vocabulary so both providers drive the same icons.
func openMeteoMain(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code >= 1 && code <= 3:
		return "Clouds"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return "Rain"
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return "Snow"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Clouds"
	}
}
