// Package reconstruct derives historical account balances and daily snapshots
// from current state and the transaction log. All functions here are pure:
// they read immutable inputs and perform no I/O, so they are safe to run
// concurrently for different days.
package reconstruct

import (
	"github.com/shopspring/decimal"

	"patrimonio/internal/core"
	"patrimonio/internal/ledger"
)

// Balance reconstructs the end-of-day balance of one account on the given day
// by starting from the account's current balance and undoing the effect of
// every transaction dated after that day.
//
// The ledger's posting convention records investment buys and sells as cash
// movements on the source account, so they are undone symmetrically with
// expenses and incomes: a buy is cash that had not yet left the account, a
// sell is cash that had not yet arrived.
//
// Reconstruction depends only on the set of later transactions, never on
// their relative order.
func Balance(account core.Account, day core.Date, transactions []core.Transaction) decimal.Decimal {
	balance := account.Balance
	for _, t := range ledger.After(transactions, day) {
		if t.AccountID == account.ID {
			switch t.Type {
			case core.Income, core.InvestmentSell:
				// Not yet received as of day: remove it.
				balance = balance.Sub(t.Amount)
			case core.Expense, core.InvestmentBuy:
				// Not yet spent as of day: put it back.
				balance = balance.Add(t.Amount)
			case core.Transfer:
				// Money had not yet left this account.
				balance = balance.Add(t.Amount)
			}
		}
		if t.ToAccountID == account.ID && t.Type == core.Transfer {
			// Money had not yet arrived here.
			balance = balance.Sub(t.Amount)
		}
	}
	return balance
}
