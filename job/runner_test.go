// Copyright (c) 2025 BVK Chaitanya

package job

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bvkgo/kv/kvmemdb"
)

func TestRunner1(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	runner := NewRunner(db)
	defer runner.PauseAll(ctx)

	if err := runner.Add(ctx, "1", "JobOne"); err != nil {
		t.Fatal(err)
	}
	if err := runner.Add(ctx, "1", "OtherJob"); err == nil || !errors.Is(err, os.ErrExist) {
		t.Fatalf("wanted ErrExist, got %v", err)
	}

	if jd, err := runner.Get(ctx, "1"); err != nil {
		t.Fatal(err)
	} else if jd.State != PAUSED {
		t.Fatalf("wanted PAUSED, got %v", jd.State)
	}

	ch := make(chan error)
	jobFunc := func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case err := <-ch:
			return err
		}
	}

	if _, err := runner.Resume(ctx, "1", jobFunc, ctx); err != nil {
		t.Fatal(err)
	}

	if jd, err := runner.Get(ctx, "1"); err != nil {
		t.Fatal(err)
	} else if jd.State != RUNNING {
		t.Fatalf("wanted RUNNING, got %v", jd.State)
	}

	if _, err := runner.Pause(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	if jd, err := runner.Get(ctx, "1"); err != nil {
		t.Fatal(err)
	} else if jd.State != PAUSED {
		t.Fatalf("wanted PAUSED, got %v", jd.State)
	}

	if _, err := runner.Resume(ctx, "1", jobFunc, ctx); err != nil {
		t.Fatal(err)
	}

	// Cancel a running job.
	if _, err := runner.Cancel(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	if jd, err := runner.Get(ctx, "1"); err != nil {
		t.Fatal(err)
	} else if jd.State != CANCELED {
		t.Fatalf("wanted CANCELED, got %v", jd.State)
	}

	// Canceled jobs are final; they cannot be resumed.
	if _, err := runner.Resume(ctx, "1", jobFunc, ctx); err == nil || !errors.Is(err, os.ErrClosed) {
		t.Fatalf("wanted ErrClosed, got %v", err)
	}
}

func TestRunner2(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	runner := NewRunner(db)
	defer runner.PauseAll(ctx)

	if err := runner.Add(ctx, "1", "JobOne"); err != nil {
		t.Fatal(err)
	}

	ch := make(chan error)
	jobFunc := func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case err := <-ch:
			return err
		}
	}

	if _, err := runner.Resume(ctx, "1", jobFunc, ctx); err != nil {
		t.Fatal(err)
	}

	// Resuming an already-running job is a no-op.
	if state, err := runner.Resume(ctx, "1", jobFunc, ctx); err != nil {
		t.Fatal(err)
	} else if state != RUNNING {
		t.Fatalf("wanted RUNNING, got %v", state)
	}

	// A clean return completes the job.
	close(ch)
	deadline := time.Now().Add(5 * time.Second)
	for {
		jd, err := runner.Get(ctx, "1")
		if err != nil {
			t.Fatal(err)
		}
		if jd.State == COMPLETED {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("wanted COMPLETED, got %v", jd.State)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Completed jobs are final.
	if _, err := runner.Resume(ctx, "1", jobFunc, ctx); err == nil || !errors.Is(err, os.ErrClosed) {
		t.Fatalf("wanted ErrClosed, got %v", err)
	}
}

func TestRunnerScan(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	runner := NewRunner(db)
	defer runner.PauseAll(ctx)

	uids := []string{"1", "2", "3"}
	for _, uid := range uids {
		if err := runner.Add(ctx, uid, "JobType"); err != nil {
			t.Fatal(err)
		}
	}

	seen := make(map[string]State)
	scan := func(ctx context.Context, jd *JobData) error {
		seen[jd.UID] = jd.State
		return nil
	}
	if err := runner.Scan(ctx, scan); err != nil {
		t.Fatal(err)
	}
	if len(seen) != len(uids) {
		t.Fatalf("wanted %d jobs, got %d", len(uids), len(seen))
	}
	for _, uid := range uids {
		if state, ok := seen[uid]; !ok || state != PAUSED {
			t.Fatalf("wanted PAUSED for %q, got %v", uid, state)
		}
	}
}

func TestRunnerPauseAll(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	runner := NewRunner(db)

	jobFunc := func(ctx context.Context) error {
		<-ctx.Done()
		return context.Cause(ctx)
	}

	uids := []string{"1", "2"}
	for _, uid := range uids {
		if err := runner.Add(ctx, uid, "JobType"); err != nil {
			t.Fatal(err)
		}
		if _, err := runner.Resume(ctx, uid, jobFunc, ctx); err != nil {
			t.Fatal(err)
		}
	}

	if err := runner.PauseAll(ctx); err != nil {
		t.Fatal(err)
	}

	// Database state stays RUNNING so a restart resumes the jobs.
	for _, uid := range uids {
		if jd, err := runner.Get(ctx, uid); err != nil {
			t.Fatal(err)
		} else if jd.State != RUNNING {
			t.Fatalf("wanted RUNNING for %q, got %v", uid, jd.State)
		}
	}
}
