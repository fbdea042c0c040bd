// Package worker runs the reconstruction engine in response to queued
// recalculation requests.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"patrimonio/internal/amqp"
	"patrimonio/internal/core"
	"patrimonio/internal/engine"
	"patrimonio/internal/storage"
)

// RecalcWorker consumes recalculation messages and drives the engine.
type RecalcWorker struct {
	storage *storage.SQLiteRepository
	engine  *engine.Engine
}

func NewRecalcWorker(storage *storage.SQLiteRepository, eng *engine.Engine) *RecalcWorker {
	return &RecalcWorker{
		storage: storage,
		engine:  eng,
	}
}

// HandleRecalculateMessage processes one queued recalculation request.
// Returning an error requeues the message; that is safe because every per-day
// snapshot write is idempotent.
func (w *RecalcWorker) HandleRecalculateMessage(ctx context.Context, msg *amqp.RecalculateMessage) error {
	rate, err := w.storage.ExchangeRate(ctx)
	if err != nil {
		return fmt.Errorf("load exchange rate: %w", err)
	}

	if err := w.engine.Recalculate(ctx, msg.OwnerID, msg.From, rate); err != nil {
		var rangeErr *engine.RangeError
		if errors.As(err, &rangeErr) {
			slog.WarnContext(ctx, "Recalculation wrote partial range",
				"owner_id", msg.OwnerID,
				"from", msg.From.String(),
				"failed_days", len(rangeErr.Days))
		}
		return fmt.Errorf("recalculate owner %s from %s: %w", msg.OwnerID, msg.From, err)
	}

	return nil
}

// StartupFreshnessCheck refreshes today's snapshot for every known owner.
// It recovers from recalculate messages lost while the worker was down: the
// historical range may lag until the next edit, but the most recent snapshot
// is always brought up to date.
func (w *RecalcWorker) StartupFreshnessCheck(ctx context.Context) error {
	owners, err := w.storage.Owners(ctx)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}

	if len(owners) == 0 {
		slog.InfoContext(ctx, "No owners found on startup")
		return nil
	}

	rate, err := w.storage.ExchangeRate(ctx)
	if err != nil {
		if errors.Is(err, core.ErrInvalidRate) {
			slog.WarnContext(ctx, "No exchange rate configured, skipping startup freshness check")
			return nil
		}
		return fmt.Errorf("load exchange rate: %w", err)
	}

	refreshed := 0
	failed := 0
	for _, owner := range owners {
		if err := w.engine.CreateToday(ctx, owner, rate); err != nil {
			slog.ErrorContext(ctx, "Failed to refresh today's snapshot",
				"owner_id", owner, "error", err)
			failed++
			continue
		}
		refreshed++
	}

	slog.InfoContext(ctx, "Startup freshness check completed",
		"owners", len(owners),
		"refreshed", refreshed,
		"failed", failed)

	return nil
}
