package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// RecurringProcessor materializes due recurring rules into real
// transactions and advances each rule's next due date.
type RecurringProcessor struct {
	store        store.Store
	transactions *TransactionService
	batchSize    int
}

func NewRecurringProcessor(st store.Store, transactions *TransactionService, batchSize int) *RecurringProcessor {
	return &RecurringProcessor{
		store:        st,
		transactions: transactions,
		batchSize:    batchSize,
	}
}

// ProcessDueRules fires every rule whose next due date is at or before
// now. One failing rule is logged and skipped; the rest still run.
// Returns the number of transactions created.
func (p *RecurringProcessor) ProcessDueRules(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.transactions == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	rules, err := p.store.DueRules(ctx, now.UnixMilli(), p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch due rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"due", len(rules),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, rule := range rules {
		if err := p.fireRule(ctx, rule); err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring rule",
				"rule_id", rule.ID,
				"error", err)
			continue
		}
		processed++
	}

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"processed", processed,
		"total_due", len(rules))

	return processed, nil
}

// fireRule creates the transaction for one due firing, then advances
// the rule. A rule stuck in the past fires repeatedly, once per tick,
// until its next due date catches up.
func (p *RecurringProcessor) fireRule(ctx context.Context, rule core.RecurringRule) error {
	tx := core.Transaction{
		UserID:     rule.UserID,
		AccountID:  rule.AccountID,
		CategoryID: rule.CategoryID,
		Amount:     rule.Amount,
		Currency:   rule.Currency,
		Date:       rule.NextDueDate,
		Payee:      rule.Payee,
		Note:       rule.Note,
		Type:       typeForAmount(rule.Amount),
	}

	created, err := p.transactions.Create(ctx, tx)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	advancer, err := GetDueAdvancer(rule.Frequency)
	if err != nil {
		return err
	}
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}
	next := advancer.Next(time.UnixMilli(rule.NextDueDate).UTC(), interval)

	if err := p.store.AdvanceRule(ctx, rule.ID, next.UnixMilli()); err != nil {
		// The transaction exists; failing here would double-fire on the
		// next tick.
		return fmt.Errorf("advance rule after creating transaction %s: %w", created.ID, err)
	}

	slog.InfoContext(ctx, "Created transaction from recurring rule",
		"rule_id", rule.ID,
		"transaction_id", created.ID,
		"amount_cents", rule.Amount.Cents,
		"frequency", rule.Frequency,
		"next_due", next.Format(time.RFC3339))

	return nil
}

func typeForAmount(amount core.Money) core.TransactionType {
	if amount.Cents < 0 {
		return core.TypeExpense
	}
	return core.TypeIncome
}
