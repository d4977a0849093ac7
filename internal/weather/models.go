package weather

import (
	"time"

	"github.com/i474232898/mapsi/internal/geo"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Snapshot is the current weather at a coordinate.
type Snapshot struct {
	Position  geo.Position `json:"position"`
	Timestamp time.Time    `json:"timestamp"` // always UTC

	// ConditionMain is the OpenWeatherMap short condition name ("Clear",
	// "Clouds", "Rain", ...). The page keys its icons on it.
	ConditionMain string    `json:"conditionMain"`
	Condition     Condition `json:"condition"`
	TemperatureC  float64   `json:"temperatureC"`

	Provider string `json:"provider"`
}

// NormalizeMain maps an OpenWeatherMap "main" value to a Condition.
func NormalizeMain(main string) Condition {
	switch main {
	case "Clear":
		return ConditionClear
	case "Clouds":
		return ConditionCloudy
	case "Rain", "Drizzle":
		return ConditionRain
	case "Snow":
		return ConditionSnow
	case "Thunderstorm":
		return ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke", "Dust":
		return ConditionMist
	default:
		return ConditionUnknown
	}
}
