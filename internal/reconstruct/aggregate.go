package reconstruct

import (
	"fmt"

	"github.com/shopspring/decimal"

	"patrimonio/internal/core"
	"patrimonio/internal/ledger"
)

// Aggregate combines every account's reconstructed balance, every
// investment's current valuation and the day's income and expense
// transactions into one DailySnapshot. It is a pure function of its inputs;
// persisting the snapshot is the engine's job.
//
// Investments are valued with their current price for every historical day,
// because no historical price series exists in this system.
func Aggregate(ownerID string, day core.Date, accounts []core.Account, investments []core.Investment, transactions []core.Transaction, rate decimal.Decimal) (core.DailySnapshot, error) {
	if err := core.ValidateRate(rate); err != nil {
		return core.DailySnapshot{}, err
	}

	snapshot := core.DailySnapshot{
		OwnerID:  ownerID,
		Date:     day,
		Balances: make(map[string]decimal.Decimal, len(accounts)),
		Rate:     rate,
	}

	for _, account := range accounts {
		balance := Balance(account, day, transactions)
		snapshot.Balances[account.ID] = balance

		reported, err := core.ToReportingCurrency(balance, account.Currency, rate)
		if err != nil {
			return core.DailySnapshot{}, fmt.Errorf("normalize account %s: %w", account.ID, err)
		}
		snapshot.AccountsTotal = snapshot.AccountsTotal.Add(reported)
	}

	for _, investment := range investments {
		reported, err := core.ToReportingCurrency(investment.Valuation(), investment.Currency, rate)
		if err != nil {
			return core.DailySnapshot{}, fmt.Errorf("normalize investment %s: %w", investment.ID, err)
		}
		snapshot.InvestmentsTotal = snapshot.InvestmentsTotal.Add(reported)
	}

	snapshot.NetWorth = snapshot.AccountsTotal.Add(snapshot.InvestmentsTotal)

	for _, t := range ledger.OnDay(transactions, day) {
		reported, err := core.ToReportingCurrency(t.Amount, t.Currency, rate)
		if err != nil {
			return core.DailySnapshot{}, fmt.Errorf("normalize transaction %s: %w", t.ID, err)
		}
		switch t.Type {
		case core.Income, core.InvestmentSell:
			snapshot.Income = snapshot.Income.Add(reported)
		case core.Expense, core.InvestmentBuy:
			snapshot.Expenses = snapshot.Expenses.Add(reported)
		case core.Transfer:
			// Transfers move money between own accounts; never income or expense.
		}
	}

	return snapshot, nil
}
