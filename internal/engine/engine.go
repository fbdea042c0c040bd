// Package engine orchestrates net-worth history reconstruction: it enumerates
// a historical date range, computes one daily snapshot per day and persists
// each through an idempotent upsert. All I/O happens here; the per-day
// computation itself is pure (see internal/reconstruct).
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"patrimonio/internal/core"
	"patrimonio/internal/reconstruct"
)

// AccountSource yields all of an owner's cash accounts with current balances.
type AccountSource interface {
	AccountsByOwner(ctx context.Context, ownerID string) ([]core.Account, error)
}

// InvestmentSource yields all of an owner's investments with current valuations.
type InvestmentSource interface {
	InvestmentsByOwner(ctx context.Context, ownerID string) ([]core.Investment, error)
}

// LedgerSource yields an owner's full transaction log.
type LedgerSource interface {
	TransactionsByOwner(ctx context.Context, ownerID string) ([]core.Transaction, error)
}

// SnapshotStore persists daily snapshots keyed by (owner, date). Upsert must
// be last-writer-wins on that key and never fail on duplicates.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snapshot core.DailySnapshot) error
}

// Config holds engine tuning knobs.
type Config struct {
	// Concurrency bounds how many days are aggregated and written in
	// parallel. Each day reads only immutable inputs and writes a distinct
	// key, so parallel processing is safe.
	Concurrency int

	// Now returns the current date. Overridable in tests.
	Now func() core.Date
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		Now:         core.Today,
	}
}

// Engine recomputes daily snapshots from current account state and the ledger.
// It is stateless per call: every invocation reloads its inputs.
type Engine struct {
	accounts    AccountSource
	investments InvestmentSource
	ledger      LedgerSource
	store       SnapshotStore
	config      Config
}

// New creates an Engine over the given sources and snapshot store.
func New(accounts AccountSource, investments InvestmentSource, ledger LedgerSource, store SnapshotStore, config Config) *Engine {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.Now == nil {
		config.Now = core.Today
	}
	return &Engine{
		accounts:    accounts,
		investments: investments,
		ledger:      ledger,
		store:       store,
		config:      config,
	}
}

// Recalculate rebuilds every daily snapshot from the given date through today,
// inclusive. A from date after today is a no-op, not an error. Failures
// loading inputs abort the whole call before anything is written; a failure
// writing one day is recorded and processing continues, with all failed dates
// reported in a *RangeError. Cancelling the context aborts between days
// without corrupting already-written snapshots.
func (e *Engine) Recalculate(ctx context.Context, ownerID string, from core.Date, rate decimal.Decimal) error {
	if err := core.ValidateRate(rate); err != nil {
		return err
	}

	today := e.config.Now()
	if from.After(today) {
		slog.DebugContext(ctx, "Recalculation range is in the future, nothing to do",
			"owner_id", ownerID,
			"from", from.String(),
			"today", today.String())
		return nil
	}

	accounts, investments, transactions, err := e.load(ctx, ownerID)
	if err != nil {
		return err
	}

	days := from.DaysUntil(today) + 1

	slog.InfoContext(ctx, "Recalculating daily snapshots",
		"owner_id", ownerID,
		"from", from.String(),
		"to", today.String(),
		"days", days)

	var (
		mu     sync.Mutex
		failed []DayError
	)

	var g errgroup.Group
	g.SetLimit(e.config.Concurrency)

	for i := 0; i < days; i++ {
		day := from.AddDays(i)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.writeDay(ctx, ownerID, day, accounts, investments, transactions, rate); err != nil {
				mu.Lock()
				failed = append(failed, DayError{Date: day, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool { return failed[i].Date.Before(failed[j].Date) })
		slog.WarnContext(ctx, "Recalculation completed with failed days",
			"owner_id", ownerID,
			"failed", len(failed),
			"days", days)
		return &RangeError{OwnerID: ownerID, Days: failed}
	}

	return nil
}

// CreateToday refreshes only today's snapshot. It is invoked whenever the
// ledger or account set changes, so the most recent snapshot never waits for
// a historical-range request.
func (e *Engine) CreateToday(ctx context.Context, ownerID string, rate decimal.Decimal) error {
	if err := core.ValidateRate(rate); err != nil {
		return err
	}

	accounts, investments, transactions, err := e.load(ctx, ownerID)
	if err != nil {
		return err
	}

	today := e.config.Now()
	if err := e.writeDay(ctx, ownerID, today, accounts, investments, transactions, rate); err != nil {
		return fmt.Errorf("snapshot for %s: %w", today, err)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, ownerID string) ([]core.Account, []core.Investment, []core.Transaction, error) {
	accounts, err := e.accounts.AccountsByOwner(ctx, ownerID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load accounts: %w", err)
	}
	investments, err := e.investments.InvestmentsByOwner(ctx, ownerID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load investments: %w", err)
	}
	transactions, err := e.ledger.TransactionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load ledger: %w", err)
	}
	return accounts, investments, transactions, nil
}

func (e *Engine) writeDay(ctx context.Context, ownerID string, day core.Date, accounts []core.Account, investments []core.Investment, transactions []core.Transaction, rate decimal.Decimal) error {
	snapshot, err := reconstruct.Aggregate(ownerID, day, accounts, investments, transactions, rate)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	if err := e.store.UpsertSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}
