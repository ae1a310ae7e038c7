// Copyright (c) 2025 BVK Chaitanya

// Package venue defines the capability set the purchase flow needs from the
// trading venue. The venue is driven through its own multi-stage
// confirmation flow; each stage call returns only when the venue signals
// readiness for the next stage or the wait deadline expires.
package venue

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrTimeout indicates a stage did not signal readiness in time.
	ErrTimeout = errors.New("venue stage timed out")

	// ErrRejected indicates the venue explicitly refused a stage.
	ErrRejected = errors.New("venue rejected the stage")

	// ErrNoPrice indicates the current price could not be read. This is
	// transient; the next monitoring cycle retries.
	ErrNoPrice = errors.New("venue price is not readable")
)

// Reference is a venue-side order correlation id, when observable.
type Reference struct {
	ID  string
	URL string
}

type Driver interface {
	// ReadPrice samples the venue's current price. Returns ErrNoPrice when no
	// price is currently readable.
	ReadPrice(ctx context.Context) (decimal.Decimal, error)

	// SubmitAmount enters the combined purchase amount and waits for the
	// venue's stage-1 readiness signal.
	SubmitAmount(ctx context.Context, amount decimal.Decimal) error

	// ConfirmPayment acknowledges the payment step and waits for the stage-2
	// readiness signal.
	ConfirmPayment(ctx context.Context) error

	// ConfirmFinal performs the final confirmation and waits for the venue's
	// terminal confirmation signal.
	ConfirmFinal(ctx context.Context) error

	// LastOrderReference returns the venue's reference for the most recently
	// completed purchase, if one is observable. Best effort; a nil Reference
	// with nil error means none was found.
	LastOrderReference(ctx context.Context) (*Reference, error)
}
