// Copyright (c) 2025 BVK Chaitanya

package book

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bvk/buybot/gobs"
	"github.com/bvk/buybot/kvutil"
)

// DefaultRefreshMinutes is used when settings were never saved.
const DefaultRefreshMinutes = 5

// Settings loads the settings aggregate. A missing aggregate returns the
// defaults with a zero (unconfigured) budget.
func (b *Book) Settings(ctx context.Context) (*gobs.Settings, error) {
	settings, err := kvutil.GetDB[gobs.Settings](ctx, b.db, SettingsKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &gobs.Settings{RefreshMinutes: DefaultRefreshMinutes}, nil
		}
		return nil, fmt.Errorf("could not load settings: %w", err)
	}
	if settings.RefreshMinutes <= 0 {
		settings.RefreshMinutes = DefaultRefreshMinutes
	}
	return settings, nil
}

// SaveSettings validates and persists the settings aggregate.
func (b *Book) SaveSettings(ctx context.Context, settings *gobs.Settings) error {
	if settings.MaxBudget.IsNegative() {
		return fmt.Errorf("max budget %s cannot be negative: %w", settings.MaxBudget, ErrValidation)
	}
	if settings.RefreshMinutes <= 0 {
		return fmt.Errorf("refresh interval %d must be positive: %w", settings.RefreshMinutes, ErrValidation)
	}
	if err := kvutil.SetDB(ctx, b.db, SettingsKey, settings); err != nil {
		return fmt.Errorf("could not save settings: %w", err)
	}
	return nil
}
