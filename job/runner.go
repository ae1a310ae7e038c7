// Copyright (c) 2025 BVK Chaitanya

package job

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/bvk/buybot/gobs"
	"github.com/bvk/buybot/kvutil"
	"github.com/bvkgo/kv"
)

const Keyspace = "/jobs/"

type JobData struct {
	UID      string
	Typename string
	Flags    uint64

	State State
}

func toGob(v *JobData) *gobs.JobData {
	if v.State == "" {
		v.State = PAUSED
	}
	return &gobs.JobData{
		ID:       v.UID,
		Typename: v.Typename,
		Flags:    v.Flags,
		State:    string(v.State),
	}
}

func fromGob(v *gobs.JobData) *JobData {
	if v.State == "" {
		v.State = string(PAUSED)
	}
	return &JobData{
		UID:      v.ID,
		Typename: v.Typename,
		Flags:    v.Flags,
		State:    State(v.State),
	}
}

// Runner tracks jobs and keeps their control state synced to the database.
type Runner struct {
	db kv.Database

	mu sync.Mutex

	// jobMap holds the currently running jobs.
	jobMap map[string]*Job

	// dataMap holds metadata for running jobs and recently finalized jobs
	// whose state is newer than the database copy.
	dataMap map[string]*JobData
}

func NewRunner(db kv.Database) *Runner {
	return &Runner{
		db:      db,
		jobMap:  make(map[string]*Job),
		dataMap: make(map[string]*JobData),
	}
}

func (r *Runner) getLocked(ctx context.Context, uid string) (*JobData, error) {
	jd, ok := r.dataMap[uid]
	if ok {
		if job, ok := r.jobMap[uid]; ok {
			jd.State = job.State()
		}
		return jd, nil
	}

	key := path.Join(Keyspace, uid)
	gv, err := kvutil.GetDB[gobs.JobData](ctx, r.db, key)
	if err != nil {
		return nil, fmt.Errorf("could not read job data: %w", err)
	}
	jd = fromGob(gv)
	r.dataMap[uid] = jd
	return jd, nil
}

func (r *Runner) setLocked(ctx context.Context, uid string, jd *JobData) error {
	key := path.Join(Keyspace, uid)
	if err := kvutil.SetDB(ctx, r.db, key, toGob(jd)); err != nil {
		return fmt.Errorf("could not save metadata for job %q: %w", uid, err)
	}
	// The database has the latest copy, so in-memory data for non-running
	// jobs can be dropped.
	if _, ok := r.jobMap[uid]; !ok {
		delete(r.dataMap, uid)
	}
	return nil
}

// Add creates a new job entry. Jobs are created in PAUSED state and must be
// resumed to begin execution.
func (r *Runner) Add(ctx context.Context, uid, typename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.getLocked(ctx, uid); err == nil || !errors.Is(err, os.ErrNotExist) {
		if err == nil {
			return fmt.Errorf("job with uid %q already exists: %w", uid, os.ErrExist)
		}
		return fmt.Errorf("could not check if uid already exists: %w", err)
	}

	jd := &JobData{
		UID:      uid,
		Typename: typename,
		State:    PAUSED,
	}
	return r.setLocked(ctx, uid, jd)
}

// Get returns a job's information.
func (r *Runner) Get(ctx context.Context, uid string) (*JobData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jd, err := r.getLocked(ctx, uid)
	if err != nil {
		return nil, err
	}
	clone := *jd
	return &clone, nil
}

// Resume starts a non-final job's function under the given run context.
func (r *Runner) Resume(ctx context.Context, uid string, fn Func, fctx context.Context) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jd, err := r.getLocked(ctx, uid)
	if err != nil {
		return "", err
	}
	if IsDone(jd.State) {
		return jd.State, fmt.Errorf("job %q is already final: %w", uid, os.ErrClosed)
	}
	if _, ok := r.jobMap[uid]; ok {
		return RUNNING, nil
	}

	r.jobMap[uid] = Run(r.wrapJobFunc(uid, fn), fctx)
	jd.State = RUNNING
	if err := r.setLocked(ctx, uid, jd); err != nil {
		return RUNNING, err
	}
	return RUNNING, nil
}

func (r *Runner) wrapJobFunc(uid string, fn Func) Func {
	return func(ctx context.Context) error {
		status := fn(ctx)
		log.Printf("job %q has returned with status: %v", uid, status)

		final := COMPLETED
		switch {
		case status == nil:
		case errors.Is(status, errPause):
			final = PAUSED
		case errors.Is(status, errCancel):
			final = CANCELED
		default:
			final = FAILED
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		if _, ok := r.jobMap[uid]; ok {
			if data, ok := r.dataMap[uid]; ok {
				data.State = final
			}
			delete(r.jobMap, uid)
		}
		return status
	}
}

func (r *Runner) stopLocked(ctx context.Context, uid string, final State) (State, error) {
	jd, err := r.getLocked(ctx, uid)
	if err != nil {
		return "", err
	}
	if IsDone(jd.State) {
		return jd.State, fmt.Errorf("job %q is already final: %w", uid, os.ErrClosed)
	}

	if job, ok := r.jobMap[uid]; ok {
		if final == CANCELED {
			job.Cancel()
		} else {
			job.Pause()
		}
		job.Wait(ctx)
		delete(r.jobMap, uid)
	}

	jd.State = final
	if err := r.setLocked(ctx, uid, jd); err != nil {
		return final, err
	}
	return final, nil
}

// Pause stops a running job so it can be resumed later.
func (r *Runner) Pause(ctx context.Context, uid string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(ctx, uid, PAUSED)
}

// Cancel stops a job permanently.
func (r *Runner) Cancel(ctx context.Context, uid string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(ctx, uid, CANCELED)
}

// PauseAll stops all running jobs and syncs their states to the database.
// Job states stay RUNNING in the database so they resume on restart.
func (r *Runner) PauseAll(ctx context.Context) error {
	var jobs []*Job

	r.mu.Lock()
	for uid, job := range r.jobMap {
		job.Pause()
		delete(r.jobMap, uid)
		jobs = append(jobs, job)
	}
	r.mu.Unlock()

	for _, job := range jobs {
		job.Wait(ctx)
	}
	return nil
}

// Scan invokes the callback with every job defined in the database.
func (r *Runner) Scan(ctx context.Context, fn func(context.Context, *JobData) error) error {
	begin, end := kvutil.PathRange(Keyspace)
	cb := func(ctx context.Context, _ kv.Reader, key string, value *gobs.JobData) error {
		uid := strings.TrimPrefix(key, Keyspace)

		r.mu.Lock()
		jd, ok := r.dataMap[uid]
		if ok {
			if job, ok := r.jobMap[uid]; ok {
				jd.State = job.State()
			}
		}
		r.mu.Unlock()

		if !ok {
			jd = fromGob(value)
		}
		clone := *jd
		return fn(ctx, &clone)
	}
	return kvutil.AscendDB(ctx, r.db, begin, end, cb)
}
