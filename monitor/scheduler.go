// Copyright (c) 2025 BVK Chaitanya

package monitor

import (
	"sync"
	"time"
)

// SchedulerStatus reports whether a re-check is armed and when it is due.
type SchedulerStatus struct {
	Scheduled bool
	DueAt     time.Time
}

// Scheduler arms a single pending re-check. Arming replaces any earlier
// schedule; firing delivers on the tick channel and disarms.
type Scheduler interface {
	ScheduleNext(interval time.Duration)
	Cancel()
	Status() SchedulerStatus
	TickCh() <-chan time.Time
}

// TimerScheduler is the process-local Scheduler over a time.Timer.
type TimerScheduler struct {
	mu sync.Mutex

	timer *time.Timer
	dueAt time.Time

	tickCh chan time.Time
}

var _ Scheduler = &TimerScheduler{}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		tickCh: make(chan time.Time, 1),
	}
}

func (s *TimerScheduler) ScheduleNext(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.dueAt = time.Now().Add(interval)
	s.timer = time.AfterFunc(interval, s.fire)
}

func (s *TimerScheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	s.dueAt = time.Time{}
	s.mu.Unlock()

	// Drop the tick if the previous one wasn't consumed yet.
	select {
	case s.tickCh <- time.Now():
	default:
	}
}

func (s *TimerScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.dueAt = time.Time{}
}

func (s *TimerScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{
		Scheduled: s.timer != nil,
		DueAt:     s.dueAt,
	}
}

func (s *TimerScheduler) TickCh() <-chan time.Time {
	return s.tickCh
}
