// Package memory provides an in-memory implementation of the engine's data
// sources and snapshot store, used in tests and for local runs without a
// database file.
package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"patrimonio/internal/core"
	"patrimonio/internal/engine"
)

// Store keeps accounts, investments, the ledger and snapshots in memory.
// It is safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	accounts     []core.Account
	investments  []core.Investment
	transactions []core.Transaction
	snapshots    map[snapshotKey]core.DailySnapshot
	rate         decimal.Decimal
}

type snapshotKey struct {
	ownerID string
	date    core.Date
}

func NewStore() *Store {
	return &Store{
		snapshots: make(map[snapshotKey]core.DailySnapshot),
	}
}

// SetAccounts replaces the stored account list.
func (s *Store) SetAccounts(accounts ...core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append([]core.Account(nil), accounts...)
}

// SetInvestments replaces the stored investment list.
func (s *Store) SetInvestments(investments ...core.Investment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.investments = append([]core.Investment(nil), investments...)
}

// SetTransactions replaces the stored ledger.
func (s *Store) SetTransactions(transactions ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append([]core.Transaction(nil), transactions...)
}

// SetExchangeRate stores the global exchange rate.
func (s *Store) SetExchangeRate(rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
}

// AccountsByOwner returns a copy of the owner's accounts.
func (s *Store) AccountsByOwner(_ context.Context, ownerID string) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

// InvestmentsByOwner returns a copy of the owner's investments.
func (s *Store) InvestmentsByOwner(_ context.Context, ownerID string) ([]core.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Investment
	for _, inv := range s.investments {
		if inv.OwnerID == ownerID {
			out = append(out, inv)
		}
	}
	return out, nil
}

// TransactionsByOwner returns a copy of the owner's ledger.
func (s *Store) TransactionsByOwner(_ context.Context, ownerID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

// ExchangeRate returns the stored global rate.
func (s *Store) ExchangeRate(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.rate.IsPositive() {
		return decimal.Decimal{}, core.ErrInvalidRate
	}
	return s.rate, nil
}

// UpsertSnapshot stores the snapshot, overwriting any existing one for the
// same (owner, date) key.
func (s *Store) UpsertSnapshot(_ context.Context, snapshot core.DailySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshotKey{snapshot.OwnerID, snapshot.Date}] = snapshot
	return nil
}

// Snapshot returns the stored snapshot for the key, if any.
func (s *Store) Snapshot(ownerID string, date core.Date) (core.DailySnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[snapshotKey{ownerID, date}]
	return snapshot, ok
}

// SnapshotCount returns how many snapshots are stored.
func (s *Store) SnapshotCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

var (
	_ engine.AccountSource    = (*Store)(nil)
	_ engine.InvestmentSource = (*Store)(nil)
	_ engine.LedgerSource     = (*Store)(nil)
	_ engine.SnapshotStore    = (*Store)(nil)
)
