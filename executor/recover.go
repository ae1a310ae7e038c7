// Copyright (c) 2025 BVK Chaitanya

package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bvk/buybot/gobs"
	"github.com/bvk/buybot/kvutil"
	"github.com/bvkgo/kv"
)

// Recover inspects persisted execution progress after a process restart. A
// stage that was in progress when the process died cannot be resumed safely
// since the venue interface's state is unknowable from here; the progress is
// discarded and the batch's orders stay pending, avoiding any chance of a
// double submission. Returns the discarded progress, if any.
func Recover(ctx context.Context, db kv.Database) (*gobs.ExecutionProgress, error) {
	progress, err := kvutil.GetDB[gobs.ExecutionProgress](ctx, db, ProgressKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not load execution progress: %w", err)
	}

	if progress.StageInProgress {
		slog.WarnContext(ctx, "discarding interrupted purchase attempt; orders stay pending",
			"stage", progress.Stage, "orders", len(progress.OrderIDs), "since", progress.UpdatedAt)
	} else {
		slog.WarnContext(ctx, "discarding stale execution progress", "stage", progress.Stage)
	}

	if err := kvutil.DeleteDB(ctx, db, ProgressKey); err != nil {
		return nil, fmt.Errorf("could not clear execution progress: %w", err)
	}
	return progress, nil
}
