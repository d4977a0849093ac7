package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/mapsi/internal/mapview"
)

var (
	// ErrNotFound is returned when no placements are stored for a session.
	ErrNotFound = errors.New("no placements for session")
)

// PlacementHistory holds a time-ordered list of marker placements for a session.
type PlacementHistory struct {
	Placements []mapview.Placement
}

// MemoryStore is a concurrency-safe in-memory placement history.
type MemoryStore struct {
	mu sync.RWMutex

	// key: session id, value: history
	data map[string]*PlacementHistory

	// retention configuration
	maxHistory int           // max number of placements per session
	maxAge     time.Duration // optional max age for placements

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*PlacementHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SavePlacement appends a placement for a session and enforces retention.
func (s *MemoryStore) SavePlacement(sessionID string, p mapview.Placement) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[sessionID]
	if !ok {
		history = &PlacementHistory{}
		s.data[sessionID] = history
	}

	history.Placements = append(history.Placements, p)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Placements) > s.maxHistory {
		over := len(history.Placements) - s.maxHistory
		history.Placements = history.Placements[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Placements); i++ {
			if !history.Placements[i].At.Before(cutoff) {
				break
			}
		}
		history.Placements = history.Placements[i:]
	}
}

// GetLatest returns the most recent placement for a session.
func (s *MemoryStore) GetLatest(sessionID string) (mapview.Placement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[sessionID]
	if !ok || len(history.Placements) == 0 {
		return mapview.Placement{}, ErrNotFound
	}
	return history.Placements[len(history.Placements)-1], nil
}

// GetRange returns all placements for a session between from and to (inclusive).
func (s *MemoryStore) GetRange(sessionID string, from, to time.Time) ([]mapview.Placement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[sessionID]
	if !ok || len(history.Placements) == 0 {
		return nil, ErrNotFound
	}

	var result []mapview.Placement
	for _, p := range history.Placements {
		if !p.At.Before(from) && !p.At.After(to) {
			result = append(result, p)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

// Forget drops everything stored for a session.
func (s *MemoryStore) Forget(sessionID string) {
	s.mu.Lock()
	delete(s.data, sessionID)
	s.mu.Unlock()
}

// Recorder binds the store to one session so a controller can record into it.
func (s *MemoryStore) Recorder(sessionID string) mapview.PlacementRecorder {
	return recorder{store: s, sessionID: sessionID}
}

type recorder struct {
	store     *MemoryStore
	sessionID string
}

func (r recorder) RecordPlacement(p mapview.Placement) {
	r.store.SavePlacement(r.sessionID, p)
}
