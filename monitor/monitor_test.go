// Copyright (c) 2025 BVK Chaitanya

package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bvk/buybot/book"
	"github.com/bvk/buybot/executor"
	"github.com/bvk/buybot/gobs"
	"github.com/bvk/buybot/venue"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/shopspring/decimal"
)

type fixture struct {
	db   kv.Database
	book *book.Book
	fake *venue.Fake
	mon  *Monitor

	cancel context.CancelFunc
}

func newFixture(t *testing.T, price float64) *fixture {
	t.Helper()
	db := kvmemdb.New()
	b := book.New(db)
	fake := venue.NewFake(decimal.NewFromFloat(price))
	exec := executor.New(db, b, fake, &executor.Options{SettleDelay: time.Millisecond})
	m := New(db, b, exec, fake, NewTimerScheduler())

	t.Cleanup(func() {
		m.Close()
		b.Close()
	})
	return &fixture{db: db, book: b, fake: fake, mon: m}
}

func (f *fixture) saveSettings(t *testing.T, budget int64) {
	t.Helper()
	settings := &gobs.Settings{MaxBudget: decimal.NewFromInt(budget), RefreshMinutes: 1}
	if err := f.book.SaveSettings(context.Background(), settings); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) addOrder(t *testing.T, target, amount float64) {
	t.Helper()
	_, err := f.book.Add(context.Background(), decimal.NewFromFloat(target), decimal.NewFromFloat(amount))
	if err != nil {
		t.Fatal(err)
	}
}

// runLoop starts the monitor's control loop in the background for the test's
// duration.
func (f *fixture) runLoop(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.mon.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartRefusals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3.00)

	// No budget configured.
	if err := f.mon.Start(ctx); !errors.Is(err, ErrNoBudget) {
		t.Fatalf("wanted ErrNoBudget, got %v", err)
	}

	// Budget configured but nothing to monitor.
	f.saveSettings(t, 300)
	if err := f.mon.Start(ctx); !errors.Is(err, ErrNoPendings) {
		t.Fatalf("wanted ErrNoPendings, got %v", err)
	}

	f.addOrder(t, 3.20, 100)
	if err := f.mon.Start(ctx); err != nil {
		t.Fatal(err)
	}
	state, err := f.mon.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !state.Running {
		t.Fatalf("wanted running state")
	}
}

func TestStop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3.00)
	f.saveSettings(t, 300)
	f.addOrder(t, 3.20, 100)

	if err := f.mon.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.mon.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	state, err := f.mon.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.Running {
		t.Fatalf("wanted stopped state")
	}
	if state.StopReason != StopReasonUser {
		t.Fatalf("wanted %q, got %q", StopReasonUser, state.StopReason)
	}
}

func TestExecutesAllMatchingOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3.00)
	f.saveSettings(t, 300)
	f.addOrder(t, 3.20, 100)
	f.addOrder(t, 3.10, 100)
	f.addOrder(t, 3.00, 100)

	f.runLoop(t)
	if err := f.mon.Start(ctx); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "all orders to execute", func() bool {
		executed, err := f.book.Executed(ctx)
		return err == nil && len(executed) == 3
	})

	if total, err := f.book.TotalSpent(ctx); err != nil {
		t.Fatal(err)
	} else if want := decimal.NewFromInt(300); !total.Equal(want) {
		t.Fatalf("wanted %s spent, got %s", want, total)
	}

	// With nothing left to monitor, the monitor stops itself.
	waitFor(t, "monitor to stop", func() bool {
		state, err := f.mon.State(ctx)
		return err == nil && !state.Running
	})
	state, err := f.mon.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.StopReason != StopReasonNoPendings {
		t.Fatalf("wanted %q, got %q", StopReasonNoPendings, state.StopReason)
	}

	// The price sample that drove the execution is persisted.
	sample, err := f.mon.LastPrice(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := decimal.NewFromFloat(3.00); !sample.Price.Equal(want) {
		t.Fatalf("wanted price %s, got %s", want, sample.Price)
	}
}

func TestBudgetLimitsBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3.00)
	f.saveSettings(t, 250)
	f.addOrder(t, 3.20, 100)
	f.addOrder(t, 3.10, 100)
	f.addOrder(t, 3.00, 100)

	f.runLoop(t)
	if err := f.mon.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// Only the two cheapest-target orders fit the $250 budget.
	waitFor(t, "two orders to execute", func() bool {
		executed, err := f.book.Executed(ctx)
		return err == nil && len(executed) == 2
	})

	executed, err := f.book.Executed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, order := range executed {
		if order.TargetPrice.Equal(decimal.NewFromFloat(3.20)) {
			t.Fatalf("order with target 3.20 must not execute within the budget")
		}
	}
	if total, err := f.book.TotalSpent(ctx); err != nil {
		t.Fatal(err)
	} else if want := decimal.NewFromInt(200); !total.Equal(want) {
		t.Fatalf("wanted %s spent, got %s", want, total)
	}

	// Budget remains, so monitoring continues for the leftover order.
	waitFor(t, "a re-check to be armed", func() bool {
		return f.mon.SchedulerStatus().Scheduled
	})
	state, err := f.mon.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !state.Running {
		t.Fatalf("wanted monitoring to continue")
	}
}

func TestBudgetExhaustedStops(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3.00)
	f.saveSettings(t, 200)
	f.addOrder(t, 3.20, 100)
	f.addOrder(t, 3.10, 100)
	f.addOrder(t, 3.00, 100)

	f.runLoop(t)
	if err := f.mon.Start(ctx); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "monitor to stop", func() bool {
		state, err := f.mon.State(ctx)
		return err == nil && !state.Running
	})

	state, err := f.mon.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.StopReason != StopReasonExhausted {
		t.Fatalf("wanted %q, got %q", StopReasonExhausted, state.StopReason)
	}
	if total, err := f.book.TotalSpent(ctx); err != nil {
		t.Fatal(err)
	} else if want := decimal.NewFromInt(200); !total.Equal(want) {
		t.Fatalf("wanted %s spent, got %s", want, total)
	}
	if pendings, err := f.book.Pending(ctx); err != nil {
		t.Fatal(err)
	} else if len(pendings) != 1 {
		t.Fatalf("wanted 1 pending order, got %d", len(pendings))
	}
}

func TestStageFailureLeavesOrdersPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3.00)
	f.saveSettings(t, 300)
	f.addOrder(t, 3.00, 100)

	f.fake.FailPayment(venue.ErrTimeout)

	f.runLoop(t)
	if err := f.mon.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// The failed attempt publishes a status and re-arms the scheduler.
	waitFor(t, "the failed attempt to re-arm", func() bool {
		return f.mon.SchedulerStatus().Scheduled
	})

	if pendings, err := f.book.Pending(ctx); err != nil {
		t.Fatal(err)
	} else if len(pendings) != 1 {
		t.Fatalf("wanted 1 pending order, got %d", len(pendings))
	}
	state, err := f.mon.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !state.Running {
		t.Fatalf("wanted monitoring to continue after a failed attempt")
	}
}

func TestResumeAfterRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4.00)
	f.saveSettings(t, 300)
	f.addOrder(t, 3.00, 100)

	if err := f.mon.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// A second monitor over the same database sees the persisted running
	// state and resumes ticking without a new start request.
	m2 := New(f.db, f.book, executor.New(f.db, f.book, f.fake, &executor.Options{SettleDelay: time.Millisecond}), f.fake, NewTimerScheduler())
	defer m2.Close()

	rctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m2.Run(rctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// The price is above every target, so the tick executes nothing and
	// re-arms for the next check.
	waitFor(t, "the resumed monitor to arm a re-check", func() bool {
		return m2.SchedulerStatus().Scheduled
	})
	if pendings, err := f.book.Pending(ctx); err != nil {
		t.Fatal(err)
	} else if len(pendings) != 1 {
		t.Fatalf("wanted 1 pending order, got %d", len(pendings))
	}
}

// gatedDriver holds the payment stage open so an execution stays in flight
// while the test delivers more ticks.
type gatedDriver struct {
	*venue.Fake

	entered chan struct{}
	release chan struct{}
}

func (d *gatedDriver) ConfirmPayment(ctx context.Context) error {
	close(d.entered)
	<-d.release
	return d.Fake.ConfirmPayment(ctx)
}

func TestTickSkippedWhileExecutionInFlight(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	b := book.New(db)
	driver := &gatedDriver{
		Fake:    venue.NewFake(decimal.NewFromFloat(3.00)),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	exec := executor.New(db, b, driver, &executor.Options{SettleDelay: time.Millisecond})
	m := New(db, b, exec, driver, NewTimerScheduler())
	t.Cleanup(func() {
		m.Close()
		b.Close()
	})

	settings := &gobs.Settings{MaxBudget: decimal.NewFromInt(100), RefreshMinutes: 1}
	if err := b.SaveSettings(ctx, settings); err != nil {
		t.Fatal(err)
	}
	for _, target := range []float64{3.20, 3.10} {
		if _, err := b.Add(ctx, decimal.NewFromFloat(target), decimal.NewFromInt(100)); err != nil {
			t.Fatal(err)
		}
	}

	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	rctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(rctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// The start kick's batch is now held inside the payment stage.
	<-driver.entered
	if !exec.InFlight() {
		t.Fatalf("wanted an in-flight execution")
	}

	// A tick arriving mid-execution must not start a second batch; the
	// held execution is the only one allowed to touch the venue.
	m.tick(ctx)
	if !exec.InFlight() {
		t.Fatalf("wanted the first execution still in flight")
	}

	close(driver.release)
	waitFor(t, "the held batch to finish", func() bool { return !exec.InFlight() })
	waitFor(t, "the exhausted budget to stop monitoring", func() bool {
		state, err := m.State(ctx)
		return err == nil && !state.Running && state.StopReason == StopReasonExhausted
	})

	// Exactly one amount was ever submitted and one order executed even
	// though two ticks arrived.
	if len(driver.SubmittedAmounts) != 1 {
		t.Fatalf("wanted 1 submitted amount, got %v", driver.SubmittedAmounts)
	}
	executed, err := b.Executed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(executed) != 1 {
		t.Fatalf("wanted 1 executed order, got %d", len(executed))
	}
	if pendings, err := b.Pending(ctx); err != nil {
		t.Fatal(err)
	} else if len(pendings) != 1 {
		t.Fatalf("wanted 1 pending order, got %d", len(pendings))
	}
}
