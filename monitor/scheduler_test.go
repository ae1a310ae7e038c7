// Copyright (c) 2025 BVK Chaitanya

package monitor

import (
	"testing"
	"time"
)

func TestTimerScheduler(t *testing.T) {
	s := NewTimerScheduler()

	if status := s.Status(); status.Scheduled {
		t.Fatalf("wanted nothing scheduled initially")
	}

	s.ScheduleNext(10 * time.Millisecond)
	if status := s.Status(); !status.Scheduled {
		t.Fatalf("wanted a scheduled re-check")
	}

	select {
	case <-s.TickCh():
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the tick")
	}
	if status := s.Status(); status.Scheduled {
		t.Fatalf("wanted the scheduler disarmed after firing")
	}
}

func TestTimerSchedulerCancel(t *testing.T) {
	s := NewTimerScheduler()

	s.ScheduleNext(10 * time.Millisecond)
	s.Cancel()
	if status := s.Status(); status.Scheduled {
		t.Fatalf("wanted nothing scheduled after cancel")
	}

	select {
	case <-s.TickCh():
		t.Fatalf("canceled schedule must not tick")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimerSchedulerReplace(t *testing.T) {
	s := NewTimerScheduler()

	// A new schedule replaces the earlier one; only a single tick arrives.
	s.ScheduleNext(time.Hour)
	s.ScheduleNext(10 * time.Millisecond)

	select {
	case <-s.TickCh():
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the tick")
	}
	select {
	case <-s.TickCh():
		t.Fatalf("wanted only one tick")
	case <-time.After(50 * time.Millisecond):
	}
}
