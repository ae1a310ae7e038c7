// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"github.com/shopspring/decimal"
)

// Settings is the user-configurable aggregate. It is mutated only through an
// explicit save and persisted next to the orders.
type Settings struct {
	// MaxBudget caps the sum of executed order amounts. Zero means
	// unconfigured and disables monitoring.
	MaxBudget decimal.Decimal

	// RefreshMinutes is the price re-check interval.
	RefreshMinutes int
}
