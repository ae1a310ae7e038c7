// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"time"

	"github.com/shopspring/decimal"
)

type MonitorState struct {
	Running bool

	// StopReason records why monitoring last stopped ("", "user-stop",
	// "no-budget", "budget-exhausted", "no-pending-orders").
	StopReason string

	UpdatedAt time.Time
}

type PriceSample struct {
	Price decimal.Decimal
	At    time.Time
}
