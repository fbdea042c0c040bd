package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"patrimonio/internal/core"
)

func tx(id string, date core.Date) core.Transaction {
	return core.Transaction{
		ID:        id,
		OwnerID:   "owner",
		Type:      core.Expense,
		Amount:    decimal.New(10, 0),
		Currency:  core.EUR,
		Date:      date,
		AccountID: "checking",
	}
}

func ids(transactions []core.Transaction) map[string]bool {
	set := make(map[string]bool, len(transactions))
	for _, t := range transactions {
		set[t.ID] = true
	}
	return set
}

func TestOnDay(t *testing.T) {
	day := core.NewDate(2024, time.June, 10)
	log := []core.Transaction{
		tx("before", day.AddDays(-1)),
		tx("on-1", day),
		tx("on-2", day),
		tx("after", day.AddDays(1)),
	}

	got := ids(OnDay(log, day))
	if len(got) != 2 || !got["on-1"] || !got["on-2"] {
		t.Errorf("OnDay returned %v, want exactly on-1 and on-2", got)
	}

	if OnDay(log, day.AddDays(30)) != nil {
		t.Error("OnDay for an empty day must return nil")
	}
}

func TestAfter(t *testing.T) {
	day := core.NewDate(2024, time.June, 10)
	log := []core.Transaction{
		tx("before", day.AddDays(-3)),
		tx("on", day),
		tx("next", day.AddDays(1)),
		tx("later", day.AddDays(45)),
	}

	got := ids(After(log, day))
	if len(got) != 2 || !got["next"] || !got["later"] {
		t.Errorf("After returned %v, want exactly next and later", got)
	}

	if After(log, day.AddDays(100)) != nil {
		t.Error("After beyond the last transaction must return nil")
	}
}

func TestFilters_DoNotMutateLedger(t *testing.T) {
	day := core.NewDate(2024, time.June, 10)
	log := []core.Transaction{
		tx("a", day.AddDays(-1)),
		tx("b", day),
		tx("c", day.AddDays(1)),
	}

	for i := 0; i < 3; i++ {
		OnDay(log, day)
		After(log, day)
	}

	want := []string{"a", "b", "c"}
	for i, id := range want {
		if log[i].ID != id {
			t.Fatalf("ledger mutated: position %d is %s, want %s", i, log[i].ID, id)
		}
	}
}
