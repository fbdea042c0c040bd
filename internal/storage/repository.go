// Package storage persists the household ledger and the derived daily
// snapshots in SQLite. Monetary values are stored as exact decimal strings,
// never as floats.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"patrimonio/internal/core"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

const exchangeRateKey = "exchange_rate"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AccountsByOwner implements engine.AccountSource.
func (r *SQLiteRepository) AccountsByOwner(ctx context.Context, ownerID string) ([]core.Account, error) {
	const query = `SELECT id, owner_id, name, currency, balance
		FROM accounts WHERE owner_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var (
			a        core.Account
			currency string
			balance  string
		)
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &currency, &balance); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Currency = core.Currency(currency)
		if a.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse balance of account %s: %w", a.ID, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// InvestmentsByOwner implements engine.InvestmentSource.
func (r *SQLiteRepository) InvestmentsByOwner(ctx context.Context, ownerID string) ([]core.Investment, error) {
	const query = `SELECT id, owner_id, name, currency, quantity, avg_purchase_price, current_price
		FROM investments WHERE owner_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query investments: %w", err)
	}
	defer rows.Close()

	var investments []core.Investment
	for rows.Next() {
		var (
			inv          core.Investment
			currency     string
			quantity     string
			avgPrice     string
			currentPrice sql.NullString
		)
		if err := rows.Scan(&inv.ID, &inv.OwnerID, &inv.Name, &currency, &quantity, &avgPrice, &currentPrice); err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		inv.Currency = core.Currency(currency)
		if inv.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("parse quantity of investment %s: %w", inv.ID, err)
		}
		if inv.AvgPurchasePrice, err = decimal.NewFromString(avgPrice); err != nil {
			return nil, fmt.Errorf("parse avg purchase price of investment %s: %w", inv.ID, err)
		}
		if currentPrice.Valid {
			price, err := decimal.NewFromString(currentPrice.String)
			if err != nil {
				return nil, fmt.Errorf("parse current price of investment %s: %w", inv.ID, err)
			}
			inv.CurrentPrice = &price
		}
		investments = append(investments, inv)
	}
	return investments, rows.Err()
}

// TransactionsByOwner implements engine.LedgerSource.
func (r *SQLiteRepository) TransactionsByOwner(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	const query = `SELECT id, owner_id, type, amount, currency, tx_date, account_id, to_account_id, investment_id
		FROM transactions WHERE owner_id = ?`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// CreateTransaction inserts a new ledger transaction.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	const query = `INSERT INTO transactions
		(id, owner_id, type, amount, currency, tx_date, account_id, to_account_id, investment_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.OwnerID, string(t.Type), t.Amount.String(), string(t.Currency),
		t.Date.String(), t.AccountID, nullable(t.ToAccountID), nullable(t.InvestmentID))
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"owner_id", t.OwnerID,
		"type", string(t.Type),
		"amount", t.Amount.String(),
		"date", t.Date.String())
	return nil
}

// GetTransaction fetches a single transaction by ID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	const query = `SELECT id, owner_id, type, amount, currency, tx_date, account_id, to_account_id, investment_id
		FROM transactions WHERE owner_id = ? AND id = ?`

	row := r.db.QueryRowContext(ctx, query, ownerID, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	return t, err
}

// UpdateTransaction replaces an existing transaction's mutable fields.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	const query = `UPDATE transactions
		SET type = ?, amount = ?, currency = ?, tx_date = ?, account_id = ?,
		    to_account_id = ?, investment_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = ? AND id = ?`

	res, err := r.db.ExecContext(ctx, query,
		string(t.Type), t.Amount.String(), string(t.Currency), t.Date.String(),
		t.AccountID, nullable(t.ToAccountID), nullable(t.InvestmentID),
		t.OwnerID, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTransaction removes a transaction from the ledger.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertAccount inserts or replaces an account's current state.
func (r *SQLiteRepository) UpsertAccount(ctx context.Context, a core.Account) error {
	const query = `INSERT INTO accounts (id, owner_id, name, currency, balance)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			balance = excluded.balance,
			updated_at = CURRENT_TIMESTAMP`

	_, err := r.db.ExecContext(ctx, query, a.ID, a.OwnerID, a.Name, string(a.Currency), a.Balance.String())
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// UpsertInvestment inserts or replaces an investment's current state.
func (r *SQLiteRepository) UpsertInvestment(ctx context.Context, inv core.Investment) error {
	const query = `INSERT INTO investments (id, owner_id, name, currency, quantity, avg_purchase_price, current_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			quantity = excluded.quantity,
			avg_purchase_price = excluded.avg_purchase_price,
			current_price = excluded.current_price,
			updated_at = CURRENT_TIMESTAMP`

	var currentPrice any
	if inv.CurrentPrice != nil {
		currentPrice = inv.CurrentPrice.String()
	}
	_, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.OwnerID, inv.Name, string(inv.Currency),
		inv.Quantity.String(), inv.AvgPurchasePrice.String(), currentPrice)
	if err != nil {
		return fmt.Errorf("upsert investment: %w", err)
	}
	return nil
}

// UpsertSnapshot implements engine.SnapshotStore. The write is
// last-writer-wins on (owner_id, snapshot_date) and never fails on duplicates.
func (r *SQLiteRepository) UpsertSnapshot(ctx context.Context, s core.DailySnapshot) error {
	balances, err := json.Marshal(s.Balances)
	if err != nil {
		return fmt.Errorf("marshal balances: %w", err)
	}

	const query = `INSERT INTO daily_snapshots
		(owner_id, snapshot_date, balances, accounts_total, investments_total, net_worth, income, expenses, rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, snapshot_date) DO UPDATE SET
			balances = excluded.balances,
			accounts_total = excluded.accounts_total,
			investments_total = excluded.investments_total,
			net_worth = excluded.net_worth,
			income = excluded.income,
			expenses = excluded.expenses,
			rate = excluded.rate,
			updated_at = CURRENT_TIMESTAMP`

	_, err = r.db.ExecContext(ctx, query,
		s.OwnerID, s.Date.String(), string(balances),
		s.AccountsTotal.String(), s.InvestmentsTotal.String(), s.NetWorth.String(),
		s.Income.String(), s.Expenses.String(), s.Rate.String())
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// SnapshotsBetween returns all snapshots for the owner between from and to,
// inclusive, oldest first. Consumed by the dashboard layer.
func (r *SQLiteRepository) SnapshotsBetween(ctx context.Context, ownerID string, from, to core.Date) ([]core.DailySnapshot, error) {
	const query = `SELECT owner_id, snapshot_date, balances, accounts_total, investments_total, net_worth, income, expenses, rate
		FROM daily_snapshots
		WHERE owner_id = ? AND snapshot_date >= ? AND snapshot_date <= ?
		ORDER BY snapshot_date`

	rows, err := r.db.QueryContext(ctx, query, ownerID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []core.DailySnapshot
	for rows.Next() {
		var (
			s        core.DailySnapshot
			dateStr  string
			balances string
			fields   = [6]string{}
		)
		if err := rows.Scan(&s.OwnerID, &dateStr, &balances,
			&fields[0], &fields[1], &fields[2], &fields[3], &fields[4], &fields[5]); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if s.Date, err = core.ParseDate(dateStr); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(balances), &s.Balances); err != nil {
			return nil, fmt.Errorf("unmarshal balances for %s: %w", dateStr, err)
		}
		decimals := []*decimal.Decimal{
			&s.AccountsTotal, &s.InvestmentsTotal, &s.NetWorth, &s.Income, &s.Expenses, &s.Rate,
		}
		for i, dst := range decimals {
			if *dst, err = decimal.NewFromString(fields[i]); err != nil {
				return nil, fmt.Errorf("parse snapshot field for %s: %w", dateStr, err)
			}
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// Owners returns every owner that has at least one account.
func (r *SQLiteRepository) Owners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM accounts ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// ExchangeRate returns the externally refreshed global exchange rate.
func (r *SQLiteRepository) ExchangeRate(ctx context.Context) (decimal.Decimal, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, exchangeRateKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, core.ErrInvalidRate
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("query exchange rate: %w", err)
	}
	rate, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse exchange rate: %w", err)
	}
	return rate, nil
}

// SetExchangeRate stores the global exchange rate. Called by the record
// management layer whenever the rate is refreshed; the engine only reads it.
func (r *SQLiteRepository) SetExchangeRate(ctx context.Context, rate decimal.Decimal) error {
	if err := core.ValidateRate(rate); err != nil {
		return err
	}
	const query = `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := r.db.ExecContext(ctx, query, exchangeRateKey, rate.String()); err != nil {
		return fmt.Errorf("set exchange rate: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t            core.Transaction
		txType       string
		amount       string
		currency     string
		dateStr      string
		toAccount    sql.NullString
		investmentID sql.NullString
	)
	err := row.Scan(&t.ID, &t.OwnerID, &txType, &amount, &currency, &dateStr, &t.AccountID, &toAccount, &investmentID)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(txType)
	t.Currency = core.Currency(currency)
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount of transaction %s: %w", t.ID, err)
	}
	if t.Date, err = core.ParseDate(dateStr); err != nil {
		return core.Transaction{}, fmt.Errorf("parse date of transaction %s: %w", t.ID, err)
	}
	t.ToAccountID = toAccount.String
	t.InvestmentID = investmentID.String
	return t, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
