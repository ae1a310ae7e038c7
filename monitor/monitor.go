// Copyright (c) 2025 BVK Chaitanya

// Package monitor implements the supervision loop: sample the price, match
// pending orders, select a budget-constrained batch, hand it to the executor
// and re-arm the scheduler, stopping on budget exhaustion or an empty book.
// One Monitor owns the whole flow; matching, execution and re-scheduling all
// run on its single control loop.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bvk/buybot/book"
	"github.com/bvk/buybot/executor"
	"github.com/bvk/buybot/gobs"
	"github.com/bvk/buybot/kvutil"
	"github.com/bvk/buybot/match"
	"github.com/bvk/buybot/venue"
	"github.com/bvkgo/kv"
	"github.com/visvasity/topic"
)

const (
	StateKey = "/monitor/state"
	PriceKey = "/monitor/price"
)

const (
	StopReasonUser       = "user-stop"
	StopReasonNoBudget   = "no-budget"
	StopReasonExhausted  = "budget-exhausted"
	StopReasonNoPendings = "no-pending-orders"
)

var (
	// ErrNoBudget indicates monitoring was refused or stopped because the
	// budget is unconfigured. Never run without a spending cap.
	ErrNoBudget = errors.New("max budget is not configured")

	// ErrNoPendings indicates a start request with an empty order book.
	ErrNoPendings = errors.New("there are no pending orders to monitor")
)

type Monitor struct {
	db kv.Database

	book   *book.Book
	exec   *executor.Executor
	driver venue.Driver
	sched  Scheduler

	kickCh chan struct{}

	statusTopic *topic.Topic[string]
	priceTopic  *topic.Topic[gobs.PriceSample]
}

func New(db kv.Database, b *book.Book, exec *executor.Executor, driver venue.Driver, sched Scheduler) *Monitor {
	return &Monitor{
		db:          db,
		book:        b,
		exec:        exec,
		driver:      driver,
		sched:       sched,
		kickCh:      make(chan struct{}, 1),
		statusTopic: topic.New[string](),
		priceTopic:  topic.New[gobs.PriceSample](),
	}
}

func (m *Monitor) Close() {
	m.sched.Cancel()
	m.statusTopic.Close()
	m.priceTopic.Close()
}

// StatusUpdates returns a receiver for human-readable status text changes.
func (m *Monitor) StatusUpdates() (*topic.Receiver[string], error) {
	return topic.Subscribe(m.statusTopic, 1, true /* includeRecent */)
}

// PriceUpdates returns a receiver for persisted price samples.
func (m *Monitor) PriceUpdates() (*topic.Receiver[gobs.PriceSample], error) {
	return topic.Subscribe(m.priceTopic, 1, true /* includeRecent */)
}

func (m *Monitor) State(ctx context.Context) (*gobs.MonitorState, error) {
	state, err := kvutil.GetDB[gobs.MonitorState](ctx, m.db, StateKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &gobs.MonitorState{}, nil
		}
		return nil, fmt.Errorf("could not load monitor state: %w", err)
	}
	return state, nil
}

// LastPrice returns the most recently persisted price sample, which survives
// restarts. Returns nil when no sample was ever taken.
func (m *Monitor) LastPrice(ctx context.Context) (*gobs.PriceSample, error) {
	sample, err := kvutil.GetDB[gobs.PriceSample](ctx, m.db, PriceKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not load last price sample: %w", err)
	}
	return sample, nil
}

// SchedulerStatus reports whether a re-check is armed and when it fires.
func (m *Monitor) SchedulerStatus() SchedulerStatus {
	return m.sched.Status()
}

func (m *Monitor) saveState(ctx context.Context, running bool, reason string) error {
	state := &gobs.MonitorState{
		Running:    running,
		StopReason: reason,
		UpdatedAt:  time.Now(),
	}
	if err := kvutil.SetDB(ctx, m.db, StateKey, state); err != nil {
		return fmt.Errorf("could not save monitor state: %w", err)
	}
	return nil
}

// Start begins monitoring. It is refused, with no state change, when the
// budget is unconfigured or the book has no pending orders. An immediate
// tick is triggered on success.
func (m *Monitor) Start(ctx context.Context) error {
	settings, err := m.book.Settings(ctx)
	if err != nil {
		return err
	}
	if !settings.MaxBudget.IsPositive() {
		slog.WarnContext(ctx, "refusing to start monitoring without a configured budget")
		return ErrNoBudget
	}
	pendings, err := m.book.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pendings) == 0 {
		slog.WarnContext(ctx, "refusing to start monitoring with no pending orders")
		return ErrNoPendings
	}

	if err := m.saveState(ctx, true, ""); err != nil {
		return err
	}
	m.publishStatus(fmt.Sprintf("monitoring %d pending orders", len(pendings)))
	m.kick()
	return nil
}

// Stop halts monitoring and cancels the armed re-check. An execution already
// past idle runs to completion or failure; only new ticks are prevented.
func (m *Monitor) Stop(ctx context.Context) error {
	if err := m.saveState(ctx, false, StopReasonUser); err != nil {
		return err
	}
	m.sched.Cancel()
	m.publishStatus("monitoring stopped")
	return nil
}

func (m *Monitor) kick() {
	select {
	case m.kickCh <- struct{}{}:
	default:
	}
}

// Run is the monitor's control loop. It services explicit start kicks and
// scheduler ticks until the context is canceled. Intended to run under a job
// so that the running state survives process restarts.
func (m *Monitor) Run(ctx context.Context) error {
	// A restart while running resumes monitoring without user action.
	if state, err := m.State(ctx); err == nil && state.Running {
		m.kick()
	}

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-m.kickCh:
			m.tick(ctx)
		case <-m.sched.TickCh():
			m.tick(ctx)
		}
	}
}

// tick performs one monitoring cycle.
func (m *Monitor) tick(ctx context.Context) {
	state, err := m.State(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "could not load monitor state (tick skipped)", "error", err)
		return
	}
	if !state.Running {
		return
	}

	settings, err := m.book.Settings(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "could not load settings (tick skipped)", "error", err)
		m.rearm(ctx, settings)
		return
	}
	if !settings.MaxBudget.IsPositive() {
		// Never run unconfigured.
		m.stop(ctx, StopReasonNoBudget, "monitoring stopped: budget is not configured")
		return
	}

	if m.exec.InFlight() {
		slog.InfoContext(ctx, "an execution is already in flight; skipping this tick")
		return
	}

	price, err := m.driver.ReadPrice(ctx)
	if err != nil {
		slog.WarnContext(ctx, "could not read the current price (retrying on next tick)", "error", err)
		m.rearm(ctx, settings)
		return
	}

	sample := &gobs.PriceSample{Price: price, At: time.Now()}
	if err := kvutil.SetDB(ctx, m.db, PriceKey, sample); err != nil {
		slog.WarnContext(ctx, "could not persist price sample (ignored)", "error", err)
	}
	m.priceTopic.Send(*sample)

	pendings, err := m.book.Pending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "could not load pending orders (tick skipped)", "error", err)
		m.rearm(ctx, settings)
		return
	}

	candidates := match.FindExecutable(pendings, price)
	if len(candidates) == 0 {
		m.publishStatus(fmt.Sprintf("price %s; no orders executable", price))
		m.rearm(ctx, settings)
		return
	}

	spent, err := m.book.TotalSpent(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "could not compute total spent (tick skipped)", "error", err)
		m.rearm(ctx, settings)
		return
	}

	batch := match.SelectBatch(candidates, settings.MaxBudget, spent)
	if len(batch.Selected) == 0 {
		// Every executable order would overflow the budget. Stop instead of
		// spinning on a selection that can never succeed.
		m.stop(ctx, StopReasonExhausted, fmt.Sprintf("monitoring stopped: budget exhausted (%s of %s spent)", spent, settings.MaxBudget))
		return
	}

	m.publishStatus(fmt.Sprintf("price %s; executing %d orders totaling %s", price, len(batch.Selected), batch.TotalAmount))
	if err := m.exec.ExecuteBatch(ctx, batch, price); err != nil {
		// The batch's orders remain pending; the next cycle may retry them.
		slog.ErrorContext(ctx, "batch execution failed; orders remain pending", "error", err)
		m.publishStatus(fmt.Sprintf("execution failed: %v", err))
		m.rearm(ctx, settings)
		return
	}

	m.afterExecution(ctx, settings)
}

// afterExecution decides whether monitoring continues after a successful
// batch.
func (m *Monitor) afterExecution(ctx context.Context, settings *gobs.Settings) {
	pendings, err := m.book.Pending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "could not reload pending orders", "error", err)
		m.rearm(ctx, settings)
		return
	}
	if len(pendings) == 0 {
		m.stop(ctx, StopReasonNoPendings, "monitoring stopped: all orders executed")
		return
	}

	spent, err := m.book.TotalSpent(ctx)
	if err == nil && spent.GreaterThanOrEqual(settings.MaxBudget) {
		m.stop(ctx, StopReasonExhausted, fmt.Sprintf("monitoring stopped: budget of %s fully spent", settings.MaxBudget))
		return
	}

	m.publishStatus(fmt.Sprintf("%d orders pending; %s of %s spent", len(pendings), spent, settings.MaxBudget))
	m.rearm(ctx, settings)
}

func (m *Monitor) rearm(ctx context.Context, settings *gobs.Settings) {
	minutes := book.DefaultRefreshMinutes
	if settings != nil && settings.RefreshMinutes > 0 {
		minutes = settings.RefreshMinutes
	}
	m.sched.ScheduleNext(time.Duration(minutes) * time.Minute)
}

func (m *Monitor) stop(ctx context.Context, reason, status string) {
	if err := m.saveState(ctx, false, reason); err != nil {
		slog.ErrorContext(ctx, "could not persist monitor stop", "reason", reason, "error", err)
	}
	m.sched.Cancel()
	slog.InfoContext(ctx, "monitoring stopped", "reason", reason)
	m.publishStatus(status)
}

func (m *Monitor) publishStatus(status string) {
	m.statusTopic.Send(status)
}
