// Copyright (c) 2025 BVK Chaitanya

// Package executor drives a selected batch of orders through the venue's
// three-stage purchase flow. Progress is persisted before every external
// action so that a crash can never leave orders in an ambiguous state:
// in-flight progress found at startup is discarded and the batch's orders
// stay pending.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/bvk/buybot/book"
	"github.com/bvk/buybot/ctxutil"
	"github.com/bvk/buybot/gobs"
	"github.com/bvk/buybot/kvutil"
	"github.com/bvk/buybot/match"
	"github.com/bvk/buybot/venue"
	"github.com/bvkgo/kv"
	"github.com/shopspring/decimal"
)

const ProgressKey = "/executor/progress"

// ErrBusy indicates an execution attempt while another batch is in flight.
// At most one execution may run at any time.
var ErrBusy = errors.New("another execution is already in flight")

type Options struct {
	// SettleDelay is the mandatory pause between numbered stages, letting the
	// venue interface settle before the next interaction.
	SettleDelay time.Duration
}

func (v *Options) setDefaults() {
	if v.SettleDelay == 0 {
		v.SettleDelay = 5 * time.Second
	}
}

type Executor struct {
	opts Options

	db     kv.Database
	book   *book.Book
	driver venue.Driver

	inFlight atomic.Bool
}

func New(db kv.Database, b *book.Book, driver venue.Driver, opts *Options) *Executor {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	return &Executor{
		opts:   *opts,
		db:     db,
		book:   b,
		driver: driver,
	}
}

// InFlight reports whether a batch execution is currently running.
func (x *Executor) InFlight() bool {
	return x.inFlight.Load()
}

type stage struct {
	number int
	name   string
	invoke func(context.Context) error
}

// ExecuteBatch runs the batch through amount entry, payment confirmation and
// final confirmation. All-or-nothing: orders are marked executed (at the
// batch price, in a single transaction) only after the final stage succeeds;
// any stage failure leaves every order pending and clears the persisted
// progress so the next cycle can retry from scratch.
func (x *Executor) ExecuteBatch(ctx context.Context, batch *match.Batch, batchPrice decimal.Decimal) error {
	if len(batch.Selected) == 0 {
		return os.ErrInvalid
	}
	if !x.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer x.inFlight.Store(false)

	progress := &gobs.ExecutionProgress{
		OrderIDs:    orderIDs(batch),
		BatchPrice:  batchPrice,
		BatchAmount: batch.TotalAmount,
	}

	stages := []stage{
		{1, "amount-entry", func(ctx context.Context) error {
			return x.driver.SubmitAmount(ctx, batch.TotalAmount)
		}},
		{2, "payment-confirm", x.driver.ConfirmPayment},
		{3, "final-confirm", x.driver.ConfirmFinal},
	}

	for _, st := range stages {
		if st.number > 1 {
			ctxutil.Sleep(ctx, x.opts.SettleDelay)
			if ctx.Err() != nil {
				return x.fail(ctx, progress, st, context.Cause(ctx))
			}
		}

		// Persist progress before issuing the external action; a crash after
		// this point is recovered by discarding the attempt.
		progress.Stage = st.number
		progress.StageInProgress = true
		progress.UpdatedAt = time.Now()
		if err := kvutil.SetDB(ctx, x.db, ProgressKey, progress); err != nil {
			return x.fail(ctx, progress, st, fmt.Errorf("could not persist stage progress: %w", err))
		}

		if err := st.invoke(ctx); err != nil {
			return x.fail(ctx, progress, st, err)
		}

		progress.StageInProgress = false
		progress.UpdatedAt = time.Now()
		if err := kvutil.SetDB(ctx, x.db, ProgressKey, progress); err != nil {
			return x.fail(ctx, progress, st, fmt.Errorf("could not persist stage completion: %w", err))
		}

		slog.InfoContext(ctx, "purchase stage complete", "stage", st.number, "name", st.name, "amount", batch.TotalAmount)
	}

	ref := x.lastReference(ctx)

	// Mark the whole batch executed and clear progress in one transaction.
	complete := func(ctx context.Context, rw kv.ReadWriter) error {
		for _, order := range batch.Selected {
			if err := book.MarkExecuted(ctx, rw, order.ID, batchPrice, ref); err != nil {
				return err
			}
		}
		return rw.Delete(ctx, ProgressKey)
	}
	if err := kv.WithReadWriter(ctx, x.db, complete); err != nil {
		return fmt.Errorf("could not record executed batch: %w", err)
	}
	x.book.PublishCounts(ctx)

	slog.InfoContext(ctx, "batch executed", "orders", len(batch.Selected), "total", batch.TotalAmount, "price", batchPrice)
	return nil
}

// fail clears the persisted progress and reports the stage failure. Order
// statuses are untouched; the batch remains pending for the next cycle.
func (x *Executor) fail(ctx context.Context, progress *gobs.ExecutionProgress, st stage, cause error) error {
	slog.ErrorContext(ctx, "purchase stage failed", "stage", st.number, "name", st.name, "error", cause)

	if err := kvutil.DeleteDB(ctx, x.db, ProgressKey); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.WarnContext(ctx, "could not clear execution progress (ignored)", "error", err)
		}
	}

	switch {
	case errors.Is(cause, venue.ErrTimeout):
		return fmt.Errorf("stage%d_timeout: %w", st.number, cause)
	case errors.Is(cause, venue.ErrRejected):
		return fmt.Errorf("stage%d_rejected: %w", st.number, cause)
	default:
		return fmt.Errorf("stage%d: %w", st.number, cause)
	}
}

// lastReference asks the venue for the completed purchase's correlation id.
// Best effort; a successful batch is never failed because the lookup failed.
func (x *Executor) lastReference(ctx context.Context) *gobs.OrderReference {
	ref, err := x.driver.LastOrderReference(ctx)
	if err != nil {
		slog.WarnContext(ctx, "could not fetch venue order reference (ignored)", "error", err)
		return nil
	}
	if ref == nil {
		return nil
	}
	return &gobs.OrderReference{ID: ref.ID, URL: ref.URL}
}

func orderIDs(batch *match.Batch) []string {
	ids := make([]string, 0, len(batch.Selected))
	for _, order := range batch.Selected {
		ids = append(ids, order.ID)
	}
	return ids
}
