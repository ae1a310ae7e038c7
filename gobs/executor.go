// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionProgress records an in-flight purchase attempt. It exists only for
// crash recovery; a clean completion or failure deletes it. Stage numbering
// follows the venue's confirmation flow: 1 = amount entry, 2 = payment
// confirmation, 3 = final confirmation.
type ExecutionProgress struct {
	StageInProgress bool
	Stage           int

	OrderIDs []string

	// BatchPrice is the price sample that selected this batch. All orders in
	// the batch fill at this price.
	BatchPrice  decimal.Decimal
	BatchAmount decimal.Decimal

	UpdatedAt time.Time
}
