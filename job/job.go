// Copyright (c) 2025 BVK Chaitanya

// Package job implements pausable, resumable background activities whose
// control state is persisted in the database, so that non-final jobs resume
// automatically after a process restart.
package job

import (
	"context"
	"errors"
	"sync"
)

type State string

const (
	PAUSED    State = "PAUSED"
	RUNNING   State = "RUNNING"
	COMPLETED State = "COMPLETED"
	CANCELED  State = "CANCELED"
	FAILED    State = "FAILED"
)

func IsStopped(s State) bool {
	return s != RUNNING
}

func IsDone(s State) bool {
	return s == COMPLETED || s == CANCELED || s == FAILED
}

type Func func(ctx context.Context) error

var (
	errPause  = errors.New("job is paused")
	errCancel = errors.New("job is canceled")
)

// Job wraps a running Func with pause/cancel control through its context.
type Job struct {
	cancel context.CancelCauseFunc

	wg sync.WaitGroup

	mu     sync.Mutex
	status State
	err    error
}

// Run starts the function in a background goroutine in RUNNING state.
func Run(f Func, ctx context.Context) *Job {
	jctx, jcancel := context.WithCancelCause(ctx)
	j := &Job{
		cancel: jcancel,
		status: RUNNING,
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.finish(f(jctx))
	}()
	return j
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.err = err
	switch {
	case err == nil:
		j.status = COMPLETED
	case errors.Is(err, errPause):
		j.status = PAUSED
	case errors.Is(err, errCancel):
		j.status = CANCELED
	default:
		j.status = FAILED
	}
}

// Pause stops the job with the intention of resuming it later.
func (j *Job) Pause() {
	j.cancel(errPause)
}

// Cancel stops the job permanently.
func (j *Job) Cancel() {
	j.cancel(errCancel)
}

// Wait blocks till the job function returns.
func (j *Job) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
}

func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}
