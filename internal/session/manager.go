// Package session tracks the live page sessions, each owning one map
// controller and the view it draws on.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/mapsi/internal/geo"
	"github.com/i474232898/mapsi/internal/mapview"
	"github.com/i474232898/mapsi/internal/store"
	"github.com/i474232898/mapsi/internal/webui"
)

var ErrNotFound = errors.New("session not found")

// Deps are shared by every session.
type Deps struct {
	Geocoder     mapview.Geocoder
	Weather      mapview.WeatherSource
	Layers       geo.Catalog
	FetchTimeout time.Duration
	// Store is optional; without it placements are not recorded.
	Store *store.MemoryStore
}

// Session is one page's map.
type Session struct {
	ID         string
	CreatedAt  time.Time
	Controller *mapview.Controller
	View       *webui.View

	cancel context.CancelFunc

	mu       sync.Mutex
	lastSeen time.Time
}

// Touch marks the session as in use, keeping it clear of the idle sweep.
func (s *Session) Touch() {
	s.touch(time.Now())
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) stop() {
	s.cancel()
	<-s.Controller.Done()
	s.View.Bus().Close()
}

// Manager is a concurrency-safe registry of sessions.
type Manager struct {
	deps Deps
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session and initializes its map from locator. If the map
// cannot be initialized the session is discarded and the error returned.
func (m *Manager) Create(ctx context.Context, locator mapview.Geolocator) (*Session, error) {
	id := uuid.NewString()
	view := webui.NewView(webui.NewBus())

	opts := mapview.Options{
		Layers:       m.deps.Layers,
		FetchTimeout: m.deps.FetchTimeout,
	}
	if m.deps.Store != nil {
		opts.Recorder = m.deps.Store.Recorder(id)
	}
	ctrl := mapview.NewController(view, view, m.deps.Geocoder, m.deps.Weather, opts)

	runCtx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(runCtx)

	now := m.now()
	s := &Session{
		ID:         id,
		CreatedAt:  now,
		Controller: ctrl,
		View:       view,
		cancel:     cancel,
		lastSeen:   now,
	}

	if err := ctrl.Initialize(ctx, locator); err != nil {
		s.stop()
		if m.deps.Store != nil {
			m.deps.Store.Forget(id)
		}
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	log.Printf("INFO: session %s created", id)
	return s, nil
}

// Get returns a live session and marks it as seen.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Close stops a session and forgets its history.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.stop()
	if m.deps.Store != nil {
		m.deps.Store.Forget(id)
	}
	log.Printf("INFO: session %s closed", id)
	return nil
}

// Sweep closes sessions not seen for longer than maxIdle and reports how
// many were closed. A session with an open event stream is never idle.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	var idle []string
	m.Each(func(s *Session) {
		if s.View.Bus().Subscribers() > 0 {
			return
		}
		if s.LastSeen().Before(cutoff) {
			idle = append(idle, s.ID)
		}
	})

	closed := 0
	for _, id := range idle {
		if err := m.Close(id); err == nil {
			closed++
		}
	}
	return closed
}

// Each calls fn for every live session. fn may call back into the Manager.
func (m *Manager) Each(fn func(s *Session)) {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()

	for _, s := range list {
		fn(s)
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.Each(func(s *Session) {
		_ = m.Close(s.ID)
	})
}
