package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/i474232898/mapsi/internal/config"
	"github.com/i474232898/mapsi/internal/geo"
	"github.com/i474232898/mapsi/internal/geocode"
	"github.com/i474232898/mapsi/internal/session"
	"github.com/i474232898/mapsi/internal/store"
	"github.com/i474232898/mapsi/internal/weather"
	"github.com/i474232898/mapsi/internal/weather/providers"
)

func main() {
	var cfg *config.AppConfig

	root := &cobra.Command{
		Use:           "mapsi",
		Short:         "Interactive map with location details and current weather",
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(&cfg),
		newSearchCmd(&cfg),
		newLocateCmd(&cfg),
	)

	if err := root.Execute(); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}

// app bundles what every command builds from the configuration.
type app struct {
	layers  geo.Catalog
	history *store.MemoryStore
	deps    session.Deps
}

func newApp(cfg *config.AppConfig) (*app, error) {
	layers, err := geo.LoadCatalog(cfg.TileLayersFile)
	if err != nil {
		return nil, err
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	geocoders := []geocode.Geocoder{
		geocode.NewNominatim(httpClient, geocode.NominatimOptions{
			BaseURL:           cfg.NominatimURL,
			UserAgent:         cfg.NominatimUserAgent,
			RequestsPerSecond: cfg.NominatimRPS,
		}),
	}
	if cfg.GoogleGeocoderAPIKey != "" {
		geocoders = append(geocoders, geocode.NewGoogle(cfg.GoogleGeocoderAPIKey))
	}

	history := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	return &app{
		layers:  layers,
		history: history,
		deps: session.Deps{
			Geocoder:     geocode.NewFallback(geocoders...),
			Weather:      weather.NewService(weatherProviders(cfg, httpClient)...),
			Layers:       layers,
			FetchTimeout: cfg.FetchTimeout,
			Store:        history,
		},
	}, nil
}

// weatherProviders lists the providers in the order they are tried. With
// the fallback on, an OpenWeatherMap outage is answered by Open-Meteo
// instead of the failure placeholder.
func weatherProviders(cfg *config.AppConfig, client *http.Client) []weather.Provider {
	var provs []weather.Provider
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(client, cfg.OpenWeatherAPIKey, cfg.OpenWeatherURL))
	} else {
		log.Printf("INFO: OPENWEATHER_API_KEY not set, using Open-Meteo only")
	}
	if cfg.WeatherFallback || len(provs) == 0 {
		provs = append(provs, providers.NewOpenMeteoProvider(client, cfg.OpenMeteoURL))
	}
	return provs
}
