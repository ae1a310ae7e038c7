// Copyright (c) 2025 BVK Chaitanya

package api

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func (r *OrderAddRequest) Check() error {
	if r.TargetPrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("target price must be positive")
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

func (r *OrderRemoveRequest) Check() error {
	if len(r.UID) == 0 {
		return fmt.Errorf("order uid cannot be empty")
	}
	return nil
}

func (r *SetSettingsRequest) Check() error {
	if r.MaxBudget.IsNegative() {
		return fmt.Errorf("max budget cannot be negative")
	}
	if r.RefreshMinutes <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}
	return nil
}
