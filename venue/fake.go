// Copyright (c) 2025 BVK Chaitanya

package venue

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Fake is a scripted in-memory driver for tests and simulations. Stage
// results are consumed in FIFO order; an empty script succeeds.
type Fake struct {
	mu sync.Mutex

	price    decimal.Decimal
	priceErr error

	submitErrs  []error
	paymentErrs []error
	confirmErrs []error

	reference *Reference

	// SubmittedAmounts records every SubmitAmount call.
	SubmittedAmounts []decimal.Decimal

	// Stages records the sequence of completed stage calls.
	Stages []string
}

var _ Driver = &Fake{}

func NewFake(price decimal.Decimal) *Fake {
	return &Fake{price: price}
}

func (f *Fake) SetPrice(price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price, f.priceErr = price, nil
}

func (f *Fake) SetPriceError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceErr = err
}

func (f *Fake) SetReference(ref *Reference) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reference = ref
}

// FailSubmit, FailPayment and FailConfirm queue an error for the next call of
// the corresponding stage.
func (f *Fake) FailSubmit(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErrs = append(f.submitErrs, err)
}

func (f *Fake) FailPayment(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentErrs = append(f.paymentErrs, err)
}

func (f *Fake) FailConfirm(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmErrs = append(f.confirmErrs, err)
}

func (f *Fake) ReadPrice(ctx context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priceErr != nil {
		return decimal.Zero, f.priceErr
	}
	return f.price, nil
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *Fake) SubmitAmount(ctx context.Context, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.submitErrs); err != nil {
		return err
	}
	f.SubmittedAmounts = append(f.SubmittedAmounts, amount)
	f.Stages = append(f.Stages, "amount")
	return nil
}

func (f *Fake) ConfirmPayment(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.paymentErrs); err != nil {
		return err
	}
	f.Stages = append(f.Stages, "payment")
	return nil
}

func (f *Fake) ConfirmFinal(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.confirmErrs); err != nil {
		return err
	}
	f.Stages = append(f.Stages, "confirm")
	return nil
}

func (f *Fake) LastOrderReference(ctx context.Context) (*Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reference, nil
}
