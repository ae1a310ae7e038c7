// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderPending  = "PENDING"
	OrderExecuted = "EXECUTED"
)

// Order is a user-defined purchase target. Orders are created in PENDING
// status and move to EXECUTED at most once; executed orders are never
// modified or deleted again.
type Order struct {
	ID string

	TargetPrice decimal.Decimal
	Amount      decimal.Decimal

	Status string

	CreatedAt time.Time

	// Fill data; set once on the PENDING -> EXECUTED transition.
	ExecutedPrice decimal.Decimal
	FilledAt      time.Time
	Reference     *OrderReference
}

// OrderReference is the venue-side correlation id for an executed order, when
// one could be observed after the purchase flow completed.
type OrderReference struct {
	ID  string
	URL string
}
