package reconstruct

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"patrimonio/internal/core"
)

var today = core.NewDate(2024, time.June, 30)

func account(id, owner string, balance string) core.Account {
	return core.Account{
		ID:       id,
		OwnerID:  owner,
		Currency: core.EUR,
		Balance:  decimal.RequireFromString(balance),
	}
}

func entry(id string, txType core.TransactionType, amount string, date core.Date, accountID string) core.Transaction {
	return core.Transaction{
		ID:        id,
		OwnerID:   "owner",
		Type:      txType,
		Amount:    decimal.RequireFromString(amount),
		Currency:  core.EUR,
		Date:      date,
		AccountID: accountID,
	}
}

// The scenario from the dashboard's acceptance checklist: one expense five
// days ago, one income two days ago, current balance 1000.
func TestBalance_ExpenseIncomeScenario(t *testing.T) {
	checking := account("checking", "owner", "1000")
	log := []core.Transaction{
		entry("e", core.Expense, "200", today.AddDays(-5), "checking"),
		entry("i", core.Income, "500", today.AddDays(-2), "checking"),
	}

	tests := []struct {
		name string
		day  core.Date
		want string
	}{
		{name: "before both", day: today.AddDays(-6), want: "700"},
		{name: "between expense and income", day: today.AddDays(-3), want: "500"},
		{name: "today equals current balance", day: today, want: "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Balance(checking, tt.day, log)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Balance on %s = %s, want %s", tt.day, got, tt.want)
			}
		})
	}
}

// Reconstructed balance plus later income minus later expenses must equal the
// current balance exactly, for any day.
func TestBalance_Conservation(t *testing.T) {
	checking := account("checking", "owner", "250.75")
	log := []core.Transaction{
		entry("t1", core.Income, "120.10", today.AddDays(-9), "checking"),
		entry("t2", core.Expense, "33.33", today.AddDays(-7), "checking"),
		entry("t3", core.Expense, "0.01", today.AddDays(-7), "checking"),
		entry("t4", core.Income, "900", today.AddDays(-1), "checking"),
	}

	for offset := -12; offset <= 0; offset++ {
		day := today.AddDays(offset)
		reconstructed := Balance(checking, day, log)

		incomeAfter := decimal.Zero
		expenseAfter := decimal.Zero
		for _, tx := range log {
			if !tx.Date.After(day) {
				continue
			}
			switch tx.Type {
			case core.Income:
				incomeAfter = incomeAfter.Add(tx.Amount)
			case core.Expense:
				expenseAfter = expenseAfter.Add(tx.Amount)
			}
		}

		sum := reconstructed.Add(incomeAfter).Sub(expenseAfter)
		if !sum.Equal(checking.Balance) {
			t.Errorf("day %s: reconstructed %s + income %s - expenses %s = %s, want %s",
				day, reconstructed, incomeAfter, expenseAfter, sum, checking.Balance)
		}
	}
}

func TestBalance_TransferSymmetry(t *testing.T) {
	transferDay := today.AddDays(-4)
	a := account("a", "owner", "500")
	b := account("b", "owner", "500")
	log := []core.Transaction{
		{
			ID:          "move",
			OwnerID:     "owner",
			Type:        core.Transfer,
			Amount:      decimal.RequireFromString("150"),
			Currency:    core.EUR,
			Date:        transferDay,
			AccountID:   "a",
			ToAccountID: "b",
		},
	}

	before := transferDay.AddDays(-2)
	after := transferDay.AddDays(1)

	diffA := Balance(a, before, log).Sub(Balance(a, after, log))
	diffB := Balance(b, before, log).Sub(Balance(b, after, log))

	if !diffA.Equal(decimal.RequireFromString("150")) {
		t.Errorf("source account diff = %s, want 150", diffA)
	}
	if !diffB.Equal(decimal.RequireFromString("-150")) {
		t.Errorf("destination account diff = %s, want -150", diffB)
	}
}

// Investment buys and sells are posted as cash movements on the source
// account, so undoing them mirrors expenses and incomes.
func TestBalance_InvestmentCashPosting(t *testing.T) {
	checking := account("checking", "owner", "1000")
	buyDay := today.AddDays(-3)
	log := []core.Transaction{
		{
			ID: "buy", OwnerID: "owner", Type: core.InvestmentBuy,
			Amount: decimal.RequireFromString("400"), Currency: core.EUR,
			Date: buyDay, AccountID: "checking", InvestmentID: "etf",
		},
		{
			ID: "sell", OwnerID: "owner", Type: core.InvestmentSell,
			Amount: decimal.RequireFromString("100"), Currency: core.EUR,
			Date: buyDay.AddDays(1), AccountID: "checking", InvestmentID: "etf",
		},
	}

	// Before both: the 400 had not yet left, the 100 had not yet arrived.
	got := Balance(checking, buyDay.AddDays(-1), log)
	if want := decimal.RequireFromString("1300"); !got.Equal(want) {
		t.Errorf("balance before buy and sell = %s, want %s", got, want)
	}

	// After both: nothing to undo.
	got = Balance(checking, today, log)
	if !got.Equal(checking.Balance) {
		t.Errorf("balance today = %s, want %s", got, checking.Balance)
	}
}

func TestBalance_IgnoresOtherAccounts(t *testing.T) {
	checking := account("checking", "owner", "100")
	log := []core.Transaction{
		entry("other", core.Expense, "999", today.AddDays(-1), "savings"),
	}

	if got := Balance(checking, today.AddDays(-5), log); !got.Equal(checking.Balance) {
		t.Errorf("unrelated transaction changed the balance: %s", got)
	}
}

// Shuffling the ledger's storage order must never change a reconstructed
// balance.
func TestBalance_OrderIndependence(t *testing.T) {
	checking := account("checking", "owner", "1234.56")
	log := []core.Transaction{
		entry("t1", core.Income, "10", today.AddDays(-8), "checking"),
		entry("t2", core.Expense, "20.20", today.AddDays(-6), "checking"),
		entry("t3", core.Income, "30", today.AddDays(-6), "checking"),
		entry("t4", core.Expense, "40.01", today.AddDays(-2), "checking"),
		entry("t5", core.Income, "50", today.AddDays(-1), "checking"),
	}
	day := today.AddDays(-7)
	want := Balance(checking, day, log)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(log), func(a, b int) { log[a], log[b] = log[b], log[a] })
		if got := Balance(checking, day, log); !got.Equal(want) {
			t.Fatalf("shuffle %d changed the balance: %s, want %s", i, got, want)
		}
	}
}
