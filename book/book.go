// Copyright (c) 2025 BVK Chaitanya

// Package book implements the order book: user-defined purchase targets and
// the settings aggregate, persisted in the key-value database.
package book

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"time"

	"github.com/bvk/buybot/gobs"
	"github.com/bvk/buybot/kvutil"
	"github.com/bvkgo/kv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/visvasity/topic"
)

const (
	OrdersKeyspace = "/orders/"
	SettingsKey    = "/settings"
)

// MinAmount is the minimum purchase amount for a single order.
var MinAmount = decimal.NewFromInt(25)

var (
	// ErrValidation indicates bad order parameters. Nothing is mutated.
	ErrValidation = errors.New("invalid order parameters")

	// ErrState indicates an operation against an order that doesn't exist or
	// isn't in the required status. Nothing is mutated.
	ErrState = errors.New("order is not in the required status")
)

// Update is published whenever the set of orders changes.
type Update struct {
	NumPending  int
	NumExecuted int
}

type Book struct {
	db kv.Database

	updatesTopic *topic.Topic[Update]
}

func New(db kv.Database) *Book {
	return &Book{
		db:           db,
		updatesTopic: topic.New[Update](),
	}
}

func (b *Book) Close() {
	b.updatesTopic.Close()
}

// Updates returns a receiver for order-count change notifications. These are
// observational; no consumer is required.
func (b *Book) Updates() (*topic.Receiver[Update], error) {
	return topic.Subscribe(b.updatesTopic, 1, true /* includeRecent */)
}

// Add validates and persists a new pending order. The target-vs-market price
// check belongs to the caller since the book doesn't track prices.
func (b *Book) Add(ctx context.Context, targetPrice, amount decimal.Decimal) (*gobs.Order, error) {
	if targetPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("target price %s must be positive: %w", targetPrice, ErrValidation)
	}
	if amount.LessThan(MinAmount) {
		return nil, fmt.Errorf("amount %s is below the minimum %s: %w", amount, MinAmount, ErrValidation)
	}

	order := &gobs.Order{
		ID:          uuid.New().String(),
		TargetPrice: targetPrice,
		Amount:      amount,
		Status:      gobs.OrderPending,
		CreatedAt:   time.Now(),
	}
	key := path.Join(OrdersKeyspace, order.ID)
	if err := kvutil.SetDB(ctx, b.db, key, order); err != nil {
		return nil, fmt.Errorf("could not save new order: %w", err)
	}

	b.publishCounts(ctx)
	return order, nil
}

// Remove hard-deletes a pending order. Unknown ids and non-pending orders are
// a silent no-op.
func (b *Book) Remove(ctx context.Context, id string) error {
	key := path.Join(OrdersKeyspace, id)

	remove := func(ctx context.Context, rw kv.ReadWriter) error {
		order, err := kvutil.Get[gobs.Order](ctx, rw, key)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				slog.Debug("remove of unknown order is ignored", "order", id)
				return nil
			}
			return err
		}
		if order.Status != gobs.OrderPending {
			slog.Debug("remove of non-pending order is ignored", "order", id, "status", order.Status)
			return nil
		}
		return rw.Delete(ctx, key)
	}
	if err := kv.WithReadWriter(ctx, b.db, remove); err != nil {
		return fmt.Errorf("could not remove order %q: %w", id, err)
	}

	b.publishCounts(ctx)
	return nil
}

// MarkExecuted transitions a pending order to executed with the given fill
// price. It operates on a ReadWriter so that a whole batch commits in one
// transaction. Callers should publish counts after the transaction commits.
func MarkExecuted(ctx context.Context, rw kv.ReadWriter, id string, executedPrice decimal.Decimal, ref *gobs.OrderReference) error {
	key := path.Join(OrdersKeyspace, id)
	order, err := kvutil.Get[gobs.Order](ctx, rw, key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("order %q does not exist: %w", id, ErrState)
		}
		return err
	}
	if order.Status != gobs.OrderPending {
		return fmt.Errorf("order %q has status %s: %w", id, order.Status, ErrState)
	}

	order.Status = gobs.OrderExecuted
	order.ExecutedPrice = executedPrice
	order.FilledAt = time.Now()
	order.Reference = ref
	if err := kvutil.Set(ctx, rw, key, order); err != nil {
		return fmt.Errorf("could not save executed order %q: %w", id, err)
	}
	return nil
}

// MarkExecutedDB is the single-order convenience form of MarkExecuted.
func (b *Book) MarkExecutedDB(ctx context.Context, id string, executedPrice decimal.Decimal, ref *gobs.OrderReference) error {
	mark := func(ctx context.Context, rw kv.ReadWriter) error {
		return MarkExecuted(ctx, rw, id, executedPrice, ref)
	}
	if err := kv.WithReadWriter(ctx, b.db, mark); err != nil {
		return err
	}
	b.publishCounts(ctx)
	return nil
}

// Orders returns a point-in-time snapshot of orders with the given status, in
// creation order. An empty status selects all orders.
func Orders(ctx context.Context, r kv.Reader, status string) ([]*gobs.Order, error) {
	var orders []*gobs.Order
	begin, end := kvutil.PathRange(OrdersKeyspace)
	collect := func(ctx context.Context, r kv.Reader, key string, order *gobs.Order) error {
		if status == "" || order.Status == status {
			orders = append(orders, order)
		}
		return nil
	}
	if err := kvutil.Ascend(ctx, r, begin, end, collect); err != nil {
		return nil, fmt.Errorf("could not scan orders: %w", err)
	}
	// Keys are uuids, so the scan order is meaningless; creation time defines
	// insertion order.
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func (b *Book) Pending(ctx context.Context) (orders []*gobs.Order, err error) {
	err = kv.WithReader(ctx, b.db, func(ctx context.Context, r kv.Reader) error {
		orders, err = Orders(ctx, r, gobs.OrderPending)
		return err
	})
	return orders, err
}

func (b *Book) Executed(ctx context.Context) (orders []*gobs.Order, err error) {
	err = kv.WithReader(ctx, b.db, func(ctx context.Context, r kv.Reader) error {
		orders, err = Orders(ctx, r, gobs.OrderExecuted)
		return err
	})
	return orders, err
}

// TotalSpent returns the sum of amounts over executed orders. It is always
// recomputed from the order ledger and never cached, so it cannot drift from
// the persisted orders even after a crash mid-update.
func TotalSpent(ctx context.Context, r kv.Reader) (decimal.Decimal, error) {
	orders, err := Orders(ctx, r, gobs.OrderExecuted)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, order := range orders {
		total = total.Add(order.Amount)
	}
	return total, nil
}

func (b *Book) TotalSpent(ctx context.Context) (total decimal.Decimal, err error) {
	err = kv.WithReader(ctx, b.db, func(ctx context.Context, r kv.Reader) error {
		total, err = TotalSpent(ctx, r)
		return err
	})
	return total, err
}

// PublishCounts recomputes the order counts and publishes an Update. Callers
// that mutate orders through a raw ReadWriter (e.g., batch execution) must
// invoke this after the transaction commits.
func (b *Book) PublishCounts(ctx context.Context) {
	b.publishCounts(ctx)
}

func (b *Book) publishCounts(ctx context.Context) {
	var update Update
	count := func(ctx context.Context, r kv.Reader) error {
		orders, err := Orders(ctx, r, "")
		if err != nil {
			return err
		}
		for _, order := range orders {
			switch order.Status {
			case gobs.OrderPending:
				update.NumPending++
			case gobs.OrderExecuted:
				update.NumExecuted++
			}
		}
		return nil
	}
	if err := kv.WithReader(ctx, b.db, count); err != nil {
		slog.WarnContext(ctx, "could not recompute order counts (ignored)", "error", err)
		return
	}
	b.updatesTopic.Send(update)
}
