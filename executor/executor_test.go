// Copyright (c) 2025 BVK Chaitanya

package executor

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bvk/buybot/book"
	"github.com/bvk/buybot/gobs"
	"github.com/bvk/buybot/kvutil"
	"github.com/bvk/buybot/match"
	"github.com/bvk/buybot/venue"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/shopspring/decimal"
)

var testOpts = &Options{SettleDelay: time.Millisecond}

func addOrders(ctx context.Context, t *testing.T, b *book.Book, amounts ...int64) *match.Batch {
	t.Helper()
	batch := &match.Batch{TotalAmount: decimal.Zero}
	for _, amount := range amounts {
		order, err := b.Add(ctx, decimal.NewFromInt(3), decimal.NewFromInt(amount))
		if err != nil {
			t.Fatal(err)
		}
		batch.Selected = append(batch.Selected, order)
		batch.TotalAmount = batch.TotalAmount.Add(order.Amount)
	}
	return batch
}

func TestExecuteBatch(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	b := book.New(db)
	defer b.Close()

	fake := venue.NewFake(decimal.NewFromInt(3))
	fake.SetReference(&venue.Reference{ID: "ref-1", URL: "https://venue.example/ref-1"})
	x := New(db, b, fake, testOpts)

	batch := addOrders(ctx, t, b, 100, 100)
	price := decimal.NewFromFloat(2.95)

	if err := x.ExecuteBatch(ctx, batch, price); err != nil {
		t.Fatal(err)
	}

	// All three stages ran in the confirmation order.
	want := []string{"amount", "payment", "confirm"}
	if len(fake.Stages) != len(want) {
		t.Fatalf("wanted %d stages, got %v", len(want), fake.Stages)
	}
	for i, name := range want {
		if fake.Stages[i] != name {
			t.Fatalf("wanted stage %q at position %d, got %q", name, i, fake.Stages[i])
		}
	}
	if len(fake.SubmittedAmounts) != 1 || !fake.SubmittedAmounts[0].Equal(batch.TotalAmount) {
		t.Fatalf("wanted one submit of %s, got %v", batch.TotalAmount, fake.SubmittedAmounts)
	}

	// Every order in the batch filled at the batch price with the venue's
	// reference attached.
	executed, err := b.Executed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(executed) != 2 {
		t.Fatalf("wanted 2 executed orders, got %d", len(executed))
	}
	for _, order := range executed {
		if !order.ExecutedPrice.Equal(price) {
			t.Fatalf("wanted price %s, got %s", price, order.ExecutedPrice)
		}
		if order.Reference == nil || order.Reference.ID != "ref-1" {
			t.Fatalf("wanted reference ref-1, got %v", order.Reference)
		}
	}

	// A finished execution leaves no progress behind.
	if _, err := kvutil.GetDB[gobs.ExecutionProgress](ctx, db, ProgressKey); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wanted ErrNotExist, got %v", err)
	}
	if x.InFlight() {
		t.Fatalf("wanted no in-flight execution")
	}
}

func TestExecuteBatchStageFailure(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	b := book.New(db)
	defer b.Close()

	fake := venue.NewFake(decimal.NewFromInt(3))
	fake.FailPayment(venue.ErrTimeout)
	x := New(db, b, fake, testOpts)

	batch := addOrders(ctx, t, b, 100)

	err := x.ExecuteBatch(ctx, batch, decimal.NewFromInt(3))
	if !errors.Is(err, venue.ErrTimeout) {
		t.Fatalf("wanted ErrTimeout, got %v", err)
	}

	// The batch stays pending; nothing executed, nothing spent.
	pendings, err := b.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pendings) != 1 {
		t.Fatalf("wanted 1 pending order, got %d", len(pendings))
	}
	if total, err := b.TotalSpent(ctx); err != nil {
		t.Fatal(err)
	} else if !total.IsZero() {
		t.Fatalf("wanted zero spent, got %s", total)
	}

	// The failed attempt's progress is cleared.
	if _, err := kvutil.GetDB[gobs.ExecutionProgress](ctx, db, ProgressKey); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wanted ErrNotExist, got %v", err)
	}
	if x.InFlight() {
		t.Fatalf("wanted no in-flight execution")
	}

	// The next attempt succeeds once the venue behaves.
	if err := x.ExecuteBatch(ctx, batch, decimal.NewFromInt(3)); err != nil {
		t.Fatal(err)
	}
	if executed, err := b.Executed(ctx); err != nil {
		t.Fatal(err)
	} else if len(executed) != 1 {
		t.Fatalf("wanted 1 executed order, got %d", len(executed))
	}
}

// gatedFake holds the payment stage until released, keeping an execution in
// flight for as long as a test needs.
type gatedFake struct {
	*venue.Fake

	entered chan struct{}
	release chan struct{}
}

func newGatedFake(price decimal.Decimal) *gatedFake {
	return &gatedFake{
		Fake:    venue.NewFake(price),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (f *gatedFake) ConfirmPayment(ctx context.Context) error {
	close(f.entered)
	<-f.release
	return f.Fake.ConfirmPayment(ctx)
}

func TestExecuteBatchBusy(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	b := book.New(db)
	defer b.Close()

	fake := newGatedFake(decimal.NewFromInt(3))
	x := New(db, b, fake, testOpts)

	batch := addOrders(ctx, t, b, 100)

	firstCh := make(chan error, 1)
	go func() {
		firstCh <- x.ExecuteBatch(ctx, batch, decimal.NewFromInt(3))
	}()
	<-fake.entered

	// Only one execution may run at a time; a second batch is refused while
	// the first is held inside a stage.
	if !x.InFlight() {
		t.Fatalf("wanted an in-flight execution")
	}
	if err := x.ExecuteBatch(ctx, batch, decimal.NewFromInt(3)); !errors.Is(err, ErrBusy) {
		t.Fatalf("wanted ErrBusy, got %v", err)
	}

	close(fake.release)
	if err := <-firstCh; err != nil {
		t.Fatal(err)
	}
	if executed, err := b.Executed(ctx); err != nil {
		t.Fatal(err)
	} else if len(executed) != 1 {
		t.Fatalf("wanted 1 executed order, got %d", len(executed))
	}
	if x.InFlight() {
		t.Fatalf("wanted no in-flight execution")
	}
}

func TestExecuteBatchRejected(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	b := book.New(db)
	defer b.Close()

	fake := venue.NewFake(decimal.NewFromInt(3))
	fake.FailSubmit(venue.ErrRejected)
	x := New(db, b, fake, testOpts)

	batch := addOrders(ctx, t, b, 100)

	if err := x.ExecuteBatch(ctx, batch, decimal.NewFromInt(3)); !errors.Is(err, venue.ErrRejected) {
		t.Fatalf("wanted ErrRejected, got %v", err)
	}
}

func TestExecuteBatchEmpty(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	b := book.New(db)
	defer b.Close()

	x := New(db, b, venue.NewFake(decimal.NewFromInt(3)), testOpts)

	batch := &match.Batch{TotalAmount: decimal.Zero}
	if err := x.ExecuteBatch(ctx, batch, decimal.NewFromInt(3)); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("wanted ErrInvalid, got %v", err)
	}
}

func TestRecover(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	// Nothing persisted means nothing to recover.
	if progress, err := Recover(ctx, db); err != nil || progress != nil {
		t.Fatalf("wanted nil progress, got %v (%v)", progress, err)
	}

	// An interrupted attempt is discarded; its orders stay pending.
	stale := &gobs.ExecutionProgress{
		StageInProgress: true,
		Stage:           2,
		OrderIDs:        []string{"a", "b"},
		BatchPrice:      decimal.NewFromInt(3),
		BatchAmount:     decimal.NewFromInt(200),
		UpdatedAt:       time.Now(),
	}
	if err := kvutil.SetDB(ctx, db, ProgressKey, stale); err != nil {
		t.Fatal(err)
	}

	progress, err := Recover(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if progress == nil || progress.Stage != 2 || len(progress.OrderIDs) != 2 {
		t.Fatalf("wanted the discarded progress back, got %v", progress)
	}

	if _, err := kvutil.GetDB[gobs.ExecutionProgress](ctx, db, ProgressKey); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wanted ErrNotExist, got %v", err)
	}
}
