package weather

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/paulmach/orb"

	"github.com/i474232898/mapsi/internal/geo"
)

// Service asks providers in order and returns the first successful snapshot.
type Service struct {
	providers []Provider
}

// NewService creates a new Service.
func NewService(providers ...Provider) *Service {
	return &Service{
		providers: providers,
	}
}

// Current returns the weather at p. When every provider fails the last
// provider's error is returned, wrapped.
func (s *Service) Current(ctx context.Context, p orb.Point) (Snapshot, error) {
	if len(s.providers) == 0 {
		log.Printf("ERROR: No providers available to fetch weather data for %s", geo.Format(p))
		return Snapshot{}, fmt.Errorf("no weather providers configured")
	}

	var lastErr error
	for _, prov := range s.providers {
		snap, err := prov.Current(ctx, p)
		if err != nil {
			// Log and continue; a later provider may still answer.
			log.Printf("ERROR: provider %s fetch failed for %s: %v", prov.Name(), geo.Format(p), err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if snap.Timestamp.IsZero() {
			snap.Timestamp = time.Now().UTC()
		}
		if snap.Provider == "" {
			snap.Provider = prov.Name()
		}
		snap.Position = geo.ToPosition(p)
		return snap, nil
	}

	return Snapshot{}, fmt.Errorf("weather unavailable for %s: %w", geo.Format(p), lastErr)
}
