// Package services wires record mutations to their recalculation triggers:
// every ledger or account change persists to storage first, then publishes a
// recalculation request so the snapshot history catches up asynchronously.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"patrimonio/internal/amqp"
	"patrimonio/internal/core"
	"patrimonio/internal/storage"
)

// LedgerService orchestrates ledger and account mutations across SQLite and AMQP.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewLedgerService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateTransaction saves a transaction and requests recalculation from its
// date. The save is authoritative; a failed publish is logged, not returned,
// since the worker's startup freshness pass will catch up.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validate transaction: %w", err)
	}

	if err := s.storage.CreateTransaction(ctx, t); err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}

	s.publishRecalculate(ctx, t.OwnerID, t.Date)
	return t.ID, nil
}

// UpdateTransaction replaces a transaction and requests recalculation from
// the earlier of its old and new dates, so a move backward in time ripples
// through every affected day.
func (s *LedgerService) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}

	old, err := s.storage.GetTransaction(ctx, t.OwnerID, t.ID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", t.ID, err)
	}

	if err := s.storage.UpdateTransaction(ctx, t); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	s.publishRecalculate(ctx, t.OwnerID, earlier(old.Date, t.Date))
	return nil
}

// DeleteTransaction removes a transaction and requests recalculation from its
// date.
func (s *LedgerService) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	old, err := s.storage.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", id, err)
	}

	if err := s.storage.DeleteTransaction(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publishRecalculate(ctx, ownerID, old.Date)
	return nil
}

// UpsertAccount saves an account's current state and requests a refresh of
// today's snapshot.
func (s *LedgerService) UpsertAccount(ctx context.Context, a core.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validate account: %w", err)
	}

	if err := s.storage.UpsertAccount(ctx, a); err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	s.publishRecalculate(ctx, a.OwnerID, core.Today())
	return nil
}

// UpsertInvestment saves an investment's current state and requests a refresh
// of today's snapshot.
func (s *LedgerService) UpsertInvestment(ctx context.Context, inv core.Investment) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if err := inv.Currency.Validate(); err != nil {
		return fmt.Errorf("validate investment: %w", err)
	}

	if err := s.storage.UpsertInvestment(ctx, inv); err != nil {
		return fmt.Errorf("save investment: %w", err)
	}

	s.publishRecalculate(ctx, inv.OwnerID, core.Today())
	return nil
}

func (s *LedgerService) publishRecalculate(ctx context.Context, ownerID string, from core.Date) {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping recalculate message",
			"owner_id", ownerID, "from", from.String())
		return
	}

	if err := s.amqpClient.PublishRecalculate(ctx, ownerID, from); err != nil {
		slog.ErrorContext(ctx, "Failed to publish recalculate message",
			"owner_id", ownerID,
			"from", from.String(),
			"error", err)
	}
}

// Close closes both storage and AMQP connections.
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}

func earlier(a, b core.Date) core.Date {
	if b.Before(a) {
		return b
	}
	return a
}
