package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/mapsi/internal/session"
)

// Scheduler runs the periodic session housekeeping.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  *session.Manager

	idleTimeout     time.Duration
	sweepInterval   time.Duration
	refreshInterval time.Duration
}

// Options controls the job intervals. A zero RefreshInterval disables the
// weather refresh job, a zero SweepInterval disables sweeping.
type Options struct {
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
	RefreshInterval time.Duration
}

// New creates a new Scheduler.
func New(sessions *session.Manager, opts Options) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:       s,
		sessions:        sessions,
		idleTimeout:     opts.IdleTimeout,
		sweepInterval:   opts.SweepInterval,
		refreshInterval: opts.RefreshInterval,
	}
}

// Start schedules the periodic jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.sweepInterval > 0 && s.idleTimeout > 0 {
		_, err := s.scheduler.Every(s.sweepInterval).SingletonMode().WaitForSchedule().Do(s.sweep)
		if err != nil {
			return err
		}
	}

	if s.refreshInterval > 0 {
		_, err := s.scheduler.Every(s.refreshInterval).SingletonMode().WaitForSchedule().Do(s.refreshWeather)
		if err != nil {
			return err
		}
	}

	if s.scheduler.Len() == 0 {
		log.Println("INFO: scheduler: no jobs configured; nothing to schedule")
		return nil
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) sweep() {
	if n := s.sessions.Sweep(s.idleTimeout); n > 0 {
		log.Printf("INFO: scheduler: closed %d idle sessions", n)
	}
}

func (s *Scheduler) refreshWeather() {
	log.Println("DEBUG: scheduler: running weather refresh job")

	var wg sync.WaitGroup
	s.sessions.Each(func(sess *session.Session) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := sess.Controller.RefreshWeather(ctx); err != nil {
				log.Printf("ERROR: scheduler: weather refresh failed for session %s: %v", sess.ID, err)
			}
		}()
	})
	wg.Wait()
	log.Println("DEBUG: scheduler: completed weather refresh job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
