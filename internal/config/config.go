package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string

	OpenWeatherAPIKey    string
	GoogleGeocoderAPIKey string

	// Upstream endpoints; empty means the public default.
	NominatimURL       string
	NominatimUserAgent string
	NominatimRPS       float64
	OpenWeatherURL     string
	OpenMeteoURL       string
	// WeatherFallback adds Open-Meteo behind OpenWeatherMap. Without an
	// OpenWeatherMap key Open-Meteo is always used.
	WeatherFallback bool

	// HTTPTimeout bounds a single upstream request, FetchTimeout a whole
	// lookup including retries.
	HTTPTimeout  time.Duration
	FetchTimeout time.Duration

	// Session lifetime.
	SessionIdleTimeout time.Duration
	SweepInterval      time.Duration
	// WeatherRefreshInterval re-fetches weather for every live session; 0 disables it.
	WeatherRefreshInterval time.Duration

	// In-memory placement history retention.
	StoreMaxHistory int           // max number of placements per session (0 = unlimited)
	StoreMaxAge     time.Duration // max age of placements (0 = unlimited)

	// TileLayersFile optionally overrides the built-in tile layers.
	TileLayersFile string

	// Position used by the headless CLI commands.
	DefaultLat float64
	DefaultLng float64
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{
		Port:                 getenvDefault("PORT", "8080"),
		OpenWeatherAPIKey:    os.Getenv("OPENWEATHER_API_KEY"),
		GoogleGeocoderAPIKey: os.Getenv("GOOGLE_GEOCODER_API_KEY"),
		NominatimURL:         os.Getenv("NOMINATIM_URL"),
		NominatimUserAgent:   getenvDefault("NOMINATIM_USER_AGENT", "mapsi/1.0"),
		OpenWeatherURL:       os.Getenv("OPENWEATHER_URL"),
		OpenMeteoURL:         os.Getenv("OPENMETEO_URL"),
		StoreMaxHistory:      getenvInt("STORE_MAX_HISTORY", 96),
		TileLayersFile:       os.Getenv("TILE_LAYERS_FILE"),
	}

	var err error
	if cfg.WeatherFallback, err = getenvBool("WEATHER_FALLBACK", true); err != nil {
		return nil, err
	}
	if cfg.NominatimRPS, err = getenvFloat("NOMINATIM_RPS", 1); err != nil {
		return nil, err
	}
	if cfg.DefaultLat, err = getenvFloat("DEFAULT_LAT", 51.5074); err != nil {
		return nil, err
	}
	if cfg.DefaultLng, err = getenvFloat("DEFAULT_LNG", -0.1278); err != nil {
		return nil, err
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"FETCH_TIMEOUT", "15s", &cfg.FetchTimeout},
		{"SESSION_IDLE_TIMEOUT", "30m", &cfg.SessionIdleTimeout},
		{"SWEEP_INTERVAL", "1m", &cfg.SweepInterval},
		{"WEATHER_REFRESH_INTERVAL", "15m", &cfg.WeatherRefreshInterval},
		{"STORE_MAX_AGE", "24h", &cfg.StoreMaxAge},
	}
	for _, d := range durations {
		if *d.dst, err = getenvDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.DefaultLat < -90 || cfg.DefaultLat > 90 || cfg.DefaultLng < -180 || cfg.DefaultLng > 180 {
		return nil, fmt.Errorf("DEFAULT_LAT/DEFAULT_LNG out of range: %v,%v", cfg.DefaultLat, cfg.DefaultLng)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
