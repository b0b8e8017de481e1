// Package expiry provides the per-reservation delayed expiration
// scheduler. Cancellation is advisory: a task that fires after the
// reservation left pending must find a no-op downstream, so losing a
// cancel never breaks correctness.
package expiry

import (
	"context"
	"sync"
	"time"

	"github.com/bookwell/booking/internal/clock"
)

// Task is the work fired when a reservation's expiry instant passes.
// Tasks capture only the reservation id and re-fetch state from the
// stores, never a reference to the reservation itself.
type Task func(ctx context.Context)

// Scheduler arms at most one pending task per reservation id.
type Scheduler interface {
	Arm(reservationID string, fireAt time.Time, task Task)
	Cancel(reservationID string)
}

// TimerScheduler backs the Scheduler with one time.AfterFunc timer per
// armed reservation.
type TimerScheduler struct {
	clock       clock.Clock
	taskTimeout time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewTimerScheduler(clk clock.Clock, taskTimeout time.Duration) *TimerScheduler {
	if taskTimeout <= 0 {
		taskTimeout = 20 * time.Second
	}
	return &TimerScheduler{
		clock:       clk,
		taskTimeout: taskTimeout,
		timers:      make(map[string]*time.Timer),
	}
}

// Arm schedules task to run once at fireAt. Re-arming an id replaces
// its previous timer. An instant already in the past fires immediately.
func (s *TimerScheduler) Arm(reservationID string, fireAt time.Time, task Task) {
	delay := fireAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.timers[reservationID]; ok {
		prev.Stop()
	}
	s.timers[reservationID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, reservationID)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.taskTimeout)
		defer cancel()
		task(ctx)
	})
}

// Cancel stops a not-yet-fired timer. Canceling an unknown or already
// fired id is a no-op.
func (s *TimerScheduler) Cancel(reservationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[reservationID]; ok {
		t.Stop()
		delete(s.timers, reservationID)
	}
}

// Stop cancels all pending timers. Tasks already running are not
// interrupted; the sweep worker picks up anything lost here.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
