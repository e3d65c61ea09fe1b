package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// EventPublisher is the slice of the AMQP client the service needs.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, id, userID string, version int64) error
}

// TransactionService orchestrates transaction writes: persist first,
// then project the amount onto account balances. When a publisher is
// configured the projection is deferred to the balance worker via an
// event; otherwise it is applied inline. Publish failures never fail
// the write.
type TransactionService struct {
	store           store.Store
	publisher       EventPublisher
	defaultCurrency string
}

func NewTransactionService(st store.Store, publisher EventPublisher, defaultCurrency string) *TransactionService {
	return &TransactionService{
		store:           st,
		publisher:       publisher,
		defaultCurrency: defaultCurrency,
	}
}

// Create validates and persists a transaction, then hands off balance
// projection.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.Currency == "" {
		tx.Currency = s.defaultCurrency
	}
	if tx.Date == 0 {
		tx.Date = time.Now().UnixMilli()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if _, err := s.store.AccountByID(ctx, tx.UserID, tx.AccountID); err != nil {
		return core.Transaction{}, fmt.Errorf("resolve account: %w", err)
	}

	saved, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	if s.publisher == nil {
		if err := ApplyToBalances(ctx, s.store, saved); err != nil {
			slog.ErrorContext(ctx, "Failed to apply transaction to balances",
				"transaction_id", saved.ID, "error", err)
		}
		return saved, nil
	}

	if err := s.publisher.PublishTransactionEvent(ctx, saved.ID, saved.UserID, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", saved.ID, "error", err)
		// The write succeeded; the projection will lag until the
		// worker catches up.
	}

	return saved, nil
}

// List returns the user's transactions, optionally filtered to one
// account, newest first.
func (s *TransactionService) List(ctx context.Context, userID, accountID string) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, userID, accountID)
}

// ApplyToBalances projects a stored transaction onto account balances:
// the signed amount lands on the source account, and a transfer credits
// the destination with the opposite sign.
//
// The two transfer updates are separate writes, not one atomic unit. If
// the destination write fails after the source write succeeded, a
// redelivered event re-applies the source delta. Callers that retry
// must tolerate that window.
func ApplyToBalances(ctx context.Context, st store.Store, tx core.Transaction) error {
	if err := st.AddToBalance(ctx, tx.UserID, tx.AccountID, tx.Amount.Cents); err != nil {
		return fmt.Errorf("apply to account %s: %w", tx.AccountID, err)
	}
	if tx.Type == core.TypeTransfer && tx.TransferToAccountID != "" {
		if err := st.AddToBalance(ctx, tx.UserID, tx.TransferToAccountID, -tx.Amount.Cents); err != nil {
			return fmt.Errorf("apply to destination %s: %w", tx.TransferToAccountID, err)
		}
	}
	return nil
}
