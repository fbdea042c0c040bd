// Package core holds the domain model of the net-worth reconstruction engine:
// accounts, the transaction ledger, investments, daily snapshots and the
// currency normalizer. Everything in this package is pure data and pure
// functions; persistence and messaging live elsewhere.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is one of the closed set of currencies the ledger accepts.
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
	CHF Currency = "CHF"
)

// ReportingCurrency is the single currency all aggregated totals are expressed in.
const ReportingCurrency = EUR

// TransactionType classifies a ledger transaction.
type TransactionType string

const (
	Income         TransactionType = "income"
	Expense        TransactionType = "expense"
	Transfer       TransactionType = "transfer"
	InvestmentBuy  TransactionType = "investment_buy"
	InvestmentSell TransactionType = "investment_sell"
)

var (
	ErrInvalidCurrency    = errors.New("invalid currency")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrMissingDate        = errors.New("missing transaction date")
	ErrMissingAccount     = errors.New("missing source account")
	ErrMissingDestination = errors.New("transfer requires a destination account")
	ErrMissingInvestment  = errors.New("investment transaction requires an investment reference")
	ErrInvalidRate        = errors.New("exchange rate must be a positive number")
)

// Account is a cash account. Balance is always "as of now"; historical
// balances are derived by the reconstruction engine, never stored here.
type Account struct {
	ID       string
	OwnerID  string
	Name     string
	Currency Currency
	Balance  decimal.Decimal
}

// Transaction is one entry of the append/edit/delete-able ledger.
// Amount is non-negative; the type carries the sign of the movement.
// ToAccountID is only meaningful for transfers, InvestmentID only for
// investment buys and sells.
type Transaction struct {
	ID           string
	OwnerID      string
	Type         TransactionType
	Amount       decimal.Decimal
	Currency     Currency
	Date         Date
	AccountID    string
	ToAccountID  string
	InvestmentID string
}

// Investment is a holding valued at quantity times current market price.
// CurrentPrice may be nil, in which case the average purchase price is used.
// There is no historical price series: every reconstructed day uses the
// current valuation. That is a deliberate simplification, not a bug.
type Investment struct {
	ID               string
	OwnerID          string
	Name             string
	Currency         Currency
	Quantity         decimal.Decimal
	AvgPurchasePrice decimal.Decimal
	CurrentPrice     *decimal.Decimal
}

// Valuation returns quantity times the current price, falling back to the
// average purchase price when no market price is known.
func (i Investment) Valuation() decimal.Decimal {
	price := i.AvgPurchasePrice
	if i.CurrentPrice != nil {
		price = *i.CurrentPrice
	}
	return i.Quantity.Mul(price)
}

// DailySnapshot is the persisted per-day summary for one owner. Balances maps
// account ID to that account's reconstructed balance on Date, in the account's
// own currency; the totals are in the reporting currency. Exactly one snapshot
// exists per (owner, date), enforced by the store's upsert.
type DailySnapshot struct {
	OwnerID          string
	Date             Date
	Balances         map[string]decimal.Decimal
	AccountsTotal    decimal.Decimal
	InvestmentsTotal decimal.Decimal
	NetWorth         decimal.Decimal
	Income           decimal.Decimal
	Expenses         decimal.Decimal
	Rate             decimal.Decimal
}

func (c Currency) Validate() error {
	switch c {
	case EUR, USD, GBP, CHF:
		return nil
	}
	return ErrInvalidCurrency
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense, Transfer, InvestmentBuy, InvestmentSell:
		return nil
	}
	return ErrInvalidType
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Currency.Validate(); err != nil {
		return err
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrMissingAccount
	}
	switch t.Type {
	case Transfer:
		if strings.TrimSpace(t.ToAccountID) == "" {
			return ErrMissingDestination
		}
	case InvestmentBuy, InvestmentSell:
		if strings.TrimSpace(t.InvestmentID) == "" {
			return ErrMissingInvestment
		}
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrMissingAccount
	}
	return a.Currency.Validate()
}
