// Copyright (c) 2025 BVK Chaitanya

// Package match implements pure selection logic: which pending orders a price
// sample makes executable and which of them fit the remaining budget. No
// I/O, no persistence.
package match

import (
	"sort"

	"github.com/bvk/buybot/gobs"
	"github.com/shopspring/decimal"
)

// Batch is the outcome of budget selection over executable candidates.
type Batch struct {
	Selected []*gobs.Order

	TotalAmount decimal.Decimal
}

// FindExecutable returns pending orders whose target price is at or above the
// current price, sorted ascending by target price. The deepest discount
// executes first. The sort is stable, so orders at the same target keep
// their relative creation order.
func FindExecutable(orders []*gobs.Order, currentPrice decimal.Decimal) []*gobs.Order {
	var candidates []*gobs.Order
	for _, order := range orders {
		if order.Status != gobs.OrderPending {
			continue
		}
		if currentPrice.LessThanOrEqual(order.TargetPrice) {
			candidates = append(candidates, order)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TargetPrice.LessThan(candidates[j].TargetPrice)
	})
	return candidates
}

// SelectBatch picks candidates that fit the remaining budget. If every
// candidate fits, all are selected. Otherwise a single greedy pass in the
// given order accepts each candidate whose amount keeps the running total
// within the remaining budget and skips the rest. No backtracking: a
// predictable cheapest-first fit is preferred over optimal packing. The
// result may be empty.
func SelectBatch(candidates []*gobs.Order, maxBudget, alreadySpent decimal.Decimal) *Batch {
	batch := &Batch{TotalAmount: decimal.Zero}

	remaining := maxBudget.Sub(alreadySpent)
	if remaining.LessThanOrEqual(decimal.Zero) {
		return batch
	}

	for _, order := range candidates {
		total := batch.TotalAmount.Add(order.Amount)
		if total.GreaterThan(remaining) {
			continue
		}
		batch.Selected = append(batch.Selected, order)
		batch.TotalAmount = total
	}
	return batch
}
