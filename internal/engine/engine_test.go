package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"patrimonio/internal/core"
	"patrimonio/internal/engine"
	"patrimonio/internal/storage/memory"
)

var (
	today = core.NewDate(2024, time.June, 30)
	rate  = decimal.RequireFromString("1.08")
)

func fixedClock() core.Date { return today }

func newTestEngine(store *memory.Store, snapshots engine.SnapshotStore) *engine.Engine {
	if snapshots == nil {
		snapshots = store
	}
	return engine.New(store, store, store, snapshots, engine.Config{Concurrency: 3, Now: fixedClock})
}

func seedStore() *memory.Store {
	store := memory.NewStore()
	store.SetAccounts(core.Account{
		ID: "checking", OwnerID: "owner", Currency: core.EUR,
		Balance: decimal.RequireFromString("1000"),
	})
	price := decimal.RequireFromString("4")
	store.SetInvestments(core.Investment{
		ID: "etf", OwnerID: "owner", Currency: core.EUR,
		Quantity:         decimal.RequireFromString("5"),
		AvgPurchasePrice: decimal.RequireFromString("3"),
		CurrentPrice:     &price,
	})
	store.SetTransactions(
		core.Transaction{
			ID: "rent", OwnerID: "owner", Type: core.Expense,
			Amount: decimal.RequireFromString("200"), Currency: core.EUR,
			Date: today.AddDays(-5), AccountID: "checking",
		},
		core.Transaction{
			ID: "salary", OwnerID: "owner", Type: core.Income,
			Amount: decimal.RequireFromString("500"), Currency: core.EUR,
			Date: today.AddDays(-2), AccountID: "checking",
		},
	)
	return store
}

func snapshotsEqual(a, b core.DailySnapshot) bool {
	if a.OwnerID != b.OwnerID || a.Date != b.Date || len(a.Balances) != len(b.Balances) {
		return false
	}
	for id, balance := range a.Balances {
		other, ok := b.Balances[id]
		if !ok || !balance.Equal(other) {
			return false
		}
	}
	return a.AccountsTotal.Equal(b.AccountsTotal) &&
		a.InvestmentsTotal.Equal(b.InvestmentsTotal) &&
		a.NetWorth.Equal(b.NetWorth) &&
		a.Income.Equal(b.Income) &&
		a.Expenses.Equal(b.Expenses) &&
		a.Rate.Equal(b.Rate)
}

func TestRecalculate_WritesEveryDayInRange(t *testing.T) {
	store := seedStore()
	eng := newTestEngine(store, nil)

	from := today.AddDays(-6)
	if err := eng.Recalculate(context.Background(), "owner", from, rate); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}

	if got := store.SnapshotCount(); got != 7 {
		t.Fatalf("snapshot count = %d, want 7", got)
	}

	tests := []struct {
		day         core.Date
		wantBalance string
	}{
		// Before expense and income; between them; and the boundary where
		// today's reconstruction equals the current balance.
		{day: from, wantBalance: "700"},
		{day: today.AddDays(-3), wantBalance: "500"},
		{day: today, wantBalance: "1000"},
	}
	for _, tt := range tests {
		snapshot, ok := store.Snapshot("owner", tt.day)
		if !ok {
			t.Fatalf("missing snapshot for %s", tt.day)
		}
		if got := snapshot.Balances["checking"]; !got.Equal(decimal.RequireFromString(tt.wantBalance)) {
			t.Errorf("balance on %s = %s, want %s", tt.day, got, tt.wantBalance)
		}
		// 5 × 4 EUR, same current valuation on every historical day.
		if !snapshot.InvestmentsTotal.Equal(decimal.RequireFromString("20")) {
			t.Errorf("investments total on %s = %s, want 20", tt.day, snapshot.InvestmentsTotal)
		}
		if !snapshot.NetWorth.Equal(snapshot.AccountsTotal.Add(snapshot.InvestmentsTotal)) {
			t.Errorf("net worth mismatch on %s", tt.day)
		}
	}
}

func TestRecalculate_Idempotent(t *testing.T) {
	store := seedStore()
	eng := newTestEngine(store, nil)
	from := today.AddDays(-6)

	if err := eng.Recalculate(context.Background(), "owner", from, rate); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := make(map[core.Date]core.DailySnapshot)
	for i := 0; i <= 6; i++ {
		day := from.AddDays(i)
		snapshot, ok := store.Snapshot("owner", day)
		if !ok {
			t.Fatalf("missing snapshot for %s after first run", day)
		}
		first[day] = snapshot
	}

	if err := eng.Recalculate(context.Background(), "owner", from, rate); err != nil {
		t.Fatalf("second run: %v", err)
	}
	for day, want := range first {
		got, ok := store.Snapshot("owner", day)
		if !ok {
			t.Fatalf("snapshot for %s vanished on re-run", day)
		}
		if !snapshotsEqual(got, want) {
			t.Errorf("snapshot for %s changed between identical runs", day)
		}
	}
	if store.SnapshotCount() != 7 {
		t.Errorf("re-run duplicated snapshots: count = %d", store.SnapshotCount())
	}
}

func TestRecalculate_FutureRangeIsNoOp(t *testing.T) {
	store := seedStore()
	eng := newTestEngine(store, nil)

	if err := eng.Recalculate(context.Background(), "owner", today.AddDays(1), rate); err != nil {
		t.Fatalf("future range must not be an error: %v", err)
	}
	if store.SnapshotCount() != 0 {
		t.Errorf("future range wrote %d snapshots, want 0", store.SnapshotCount())
	}
}

func TestRecalculate_InvalidRate(t *testing.T) {
	store := seedStore()
	eng := newTestEngine(store, nil)

	err := eng.Recalculate(context.Background(), "owner", today.AddDays(-2), decimal.Zero)
	if !errors.Is(err, core.ErrInvalidRate) {
		t.Fatalf("got %v, want ErrInvalidRate", err)
	}
	if store.SnapshotCount() != 0 {
		t.Error("nothing must be written on a configuration error")
	}
}

// flakyStore rejects writes for a chosen set of dates.
type flakyStore struct {
	*memory.Store
	rejected map[core.Date]bool
}

func (f *flakyStore) UpsertSnapshot(ctx context.Context, snapshot core.DailySnapshot) error {
	if f.rejected[snapshot.Date] {
		return fmt.Errorf("simulated write failure for %s", snapshot.Date)
	}
	return f.Store.UpsertSnapshot(ctx, snapshot)
}

func TestRecalculate_ReportsFailedDaysAndContinues(t *testing.T) {
	store := seedStore()
	badDay := today.AddDays(-3)
	flaky := &flakyStore{Store: store, rejected: map[core.Date]bool{badDay: true}}
	eng := newTestEngine(store, flaky)

	err := eng.Recalculate(context.Background(), "owner", today.AddDays(-6), rate)

	var rangeErr *engine.RangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("got %v, want *engine.RangeError", err)
	}
	failed := rangeErr.FailedDates()
	if len(failed) != 1 || failed[0] != badDay {
		t.Fatalf("failed dates = %v, want [%s]", failed, badDay)
	}

	// All other days must still have been written.
	if got := store.SnapshotCount(); got != 6 {
		t.Errorf("snapshot count = %d, want 6", got)
	}
	if _, ok := store.Snapshot("owner", badDay); ok {
		t.Error("rejected day must not be present")
	}
	if _, ok := store.Snapshot("owner", today); !ok {
		t.Error("days after the failed one must still be written")
	}
}

// brokenLedger simulates an unavailable data source.
type brokenLedger struct{}

func (brokenLedger) TransactionsByOwner(context.Context, string) ([]core.Transaction, error) {
	return nil, errors.New("ledger unavailable")
}

func TestRecalculate_DataRetrievalFailureWritesNothing(t *testing.T) {
	store := seedStore()
	eng := engine.New(store, store, brokenLedger{}, store, engine.Config{Concurrency: 2, Now: fixedClock})

	err := eng.Recalculate(context.Background(), "owner", today.AddDays(-6), rate)
	if err == nil {
		t.Fatal("expected an error when the ledger cannot be loaded")
	}
	if store.SnapshotCount() != 0 {
		t.Errorf("partial snapshots written despite load failure: %d", store.SnapshotCount())
	}
}

func TestRecalculate_CancelledContext(t *testing.T) {
	store := seedStore()
	eng := newTestEngine(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := eng.Recalculate(ctx, "owner", today.AddDays(-30), rate)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestCreateToday(t *testing.T) {
	store := seedStore()
	eng := newTestEngine(store, nil)

	if err := eng.CreateToday(context.Background(), "owner", rate); err != nil {
		t.Fatalf("CreateToday: %v", err)
	}

	if store.SnapshotCount() != 1 {
		t.Fatalf("snapshot count = %d, want 1", store.SnapshotCount())
	}
	snapshot, ok := store.Snapshot("owner", today)
	if !ok {
		t.Fatal("missing snapshot for today")
	}
	if got := snapshot.Balances["checking"]; !got.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("today's balance = %s, want the current balance 1000", got)
	}
}

func TestCreateToday_UnknownOwner(t *testing.T) {
	store := seedStore()
	eng := newTestEngine(store, nil)

	if err := eng.CreateToday(context.Background(), "stranger", rate); err != nil {
		t.Fatalf("CreateToday for an owner with no data: %v", err)
	}
	snapshot, ok := store.Snapshot("stranger", today)
	if !ok {
		t.Fatal("missing empty snapshot")
	}
	if !snapshot.NetWorth.IsZero() {
		t.Errorf("net worth = %s, want 0", snapshot.NetWorth)
	}
}
