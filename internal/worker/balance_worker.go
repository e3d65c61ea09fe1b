// Package worker holds the consumers that run alongside the API
// server: the balance projector and the optional statement exporter.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

// StatementExporter appends a transaction row to an external statement.
type StatementExporter interface {
	Append(ctx context.Context, tx core.Transaction, accountName string) (string, error)
}

// BalanceWorker consumes transaction events and projects each amount
// onto the stored account balances. When an exporter is configured it
// also appends the transaction to the external statement.
type BalanceWorker struct {
	store    store.Store
	exporter StatementExporter
}

func NewBalanceWorker(st store.Store, exporter StatementExporter) *BalanceWorker {
	return &BalanceWorker{
		store:    st,
		exporter: exporter,
	}
}

// HandleTransactionEvent processes one event. A returned error requeues
// the message, so failures here must mean "retry later", not "bad data".
func (w *BalanceWorker) HandleTransactionEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	tx, err := w.store.TransactionByID(ctx, msg.UserID, msg.ID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", msg.ID, err)
	}

	if err := services.ApplyToBalances(ctx, w.store, tx); err != nil {
		return fmt.Errorf("project balances: %w", err)
	}

	slog.InfoContext(ctx, "Applied transaction to balances",
		"transaction_id", tx.ID,
		"user_id", tx.UserID,
		"account_id", tx.AccountID,
		"amount_cents", tx.Amount.Cents)

	if w.exporter != nil {
		w.exportStatementRow(ctx, tx)
	}

	return nil
}

// exportStatementRow is best effort: the balance projection already
// happened and must not be retried because an export hiccupped.
func (w *BalanceWorker) exportStatementRow(ctx context.Context, tx core.Transaction) {
	accountName := "Unknown Account"
	if a, err := w.store.AccountByID(ctx, tx.UserID, tx.AccountID); err == nil {
		accountName = a.Name
	}

	ref, err := w.exporter.Append(ctx, tx, accountName)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to export statement row",
			"transaction_id", tx.ID,
			"error", err)
		return
	}
	slog.InfoContext(ctx, "Exported statement row",
		"transaction_id", tx.ID,
		"ref", ref)
}
