// Package ledger provides pure queries over an owner's transaction log.
package ledger

import (
	"patrimonio/internal/core"
)

// OnDay returns all transactions dated exactly on the given day. The order of
// the result carries no meaning: daily income/expense sums are commutative and
// callers must not rely on intra-day ordering.
func OnDay(transactions []core.Transaction, day core.Date) []core.Transaction {
	var out []core.Transaction
	for _, t := range transactions {
		if t.Date == day {
			out = append(out, t)
		}
	}
	return out
}

// After returns all transactions dated strictly after the given day.
func After(transactions []core.Transaction, day core.Date) []core.Transaction {
	var out []core.Transaction
	for _, t := range transactions {
		if t.Date.After(day) {
			out = append(out, t)
		}
	}
	return out
}
