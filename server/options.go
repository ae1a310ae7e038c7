// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"time"
)

type Options struct {
	// NoResume skips resuming the monitor job at startup even when it was
	// running before the previous shutdown.
	NoResume bool

	// AlertFreezeInterval suppresses repeats of the same alert for this long.
	AlertFreezeInterval time.Duration
}

func (v *Options) setDefaults() {
	if v.AlertFreezeInterval == 0 {
		v.AlertFreezeInterval = time.Hour
	}
}

func (v *Options) Check() error {
	return nil
}
