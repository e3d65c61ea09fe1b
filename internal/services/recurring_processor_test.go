package services

import (
	"context"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store/memory"
)

func TestProcessDueRules(t *testing.T) {
	st := memory.New()
	userID, accountID := seedUser(t, st)
	ctx := context.Background()

	now := time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC)
	start := time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)

	rent, err := st.CreateRule(ctx, core.RecurringRule{
		UserID:      userID,
		AccountID:   accountID,
		Amount:      core.Money{Cents: -15_000_00},
		Currency:    "INR",
		Payee:       "Landlord",
		Frequency:   core.Monthly,
		Interval:    1,
		StartDate:   start.UnixMilli(),
		NextDueDate: now.UnixMilli(),
	})
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	// Not due yet.
	_, err = st.CreateRule(ctx, core.RecurringRule{
		UserID:      userID,
		AccountID:   accountID,
		Amount:      core.Money{Cents: -500_00},
		Currency:    "INR",
		Frequency:   core.Weekly,
		Interval:    1,
		StartDate:   start.UnixMilli(),
		NextDueDate: now.AddDate(0, 0, 3).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	txService := NewTransactionService(st, nil, "INR")
	processor := NewRecurringProcessor(st, txService, 50)

	processed, err := processor.ProcessDueRules(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDueRules: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}

	txs, _ := st.ListTransactions(ctx, userID, accountID)
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
	tx := txs[0]
	if tx.Amount.Cents != -15_000_00 {
		t.Errorf("amount = %d", tx.Amount.Cents)
	}
	if tx.Type != core.TypeExpense {
		t.Errorf("type = %s, want expense for negative amount", tx.Type)
	}
	if tx.Payee != "Landlord" {
		t.Errorf("payee = %q", tx.Payee)
	}
	if tx.Date != now.UnixMilli() {
		t.Errorf("date = %d, want the due date", tx.Date)
	}

	// Balance projection ran inline (no publisher).
	a, _ := st.AccountByID(ctx, userID, accountID)
	if a.Balance.Cents != -15_000_00 {
		t.Errorf("balance = %d, want -1500000", a.Balance.Cents)
	}

	// The rule advanced one month and is no longer due.
	rules, _ := st.ListRules(ctx, userID)
	for _, r := range rules {
		if r.ID != rent.ID {
			continue
		}
		wantNext := time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC).UnixMilli()
		if r.NextDueDate != wantNext {
			t.Errorf("next due = %d, want %d", r.NextDueDate, wantNext)
		}
	}

	processed, err = processor.ProcessDueRules(ctx, now)
	if err != nil {
		t.Fatalf("second ProcessDueRules: %v", err)
	}
	if processed != 0 {
		t.Fatalf("second run processed = %d, want 0", processed)
	}
}

func TestProcessDueRulesSkipsBrokenRule(t *testing.T) {
	st := memory.New()
	userID, accountID := seedUser(t, st)
	ctx := context.Background()

	now := time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC)

	// References an account that does not exist; transaction creation fails.
	st.CreateRule(ctx, core.RecurringRule{
		UserID:      userID,
		AccountID:   "gone",
		Amount:      core.Money{Cents: -100_00},
		Currency:    "INR",
		Frequency:   core.Daily,
		Interval:    1,
		StartDate:   now.AddDate(0, -1, 0).UnixMilli(),
		NextDueDate: now.UnixMilli(),
	})
	st.CreateRule(ctx, core.RecurringRule{
		UserID:      userID,
		AccountID:   accountID,
		Amount:      core.Money{Cents: 2_000_00},
		Currency:    "INR",
		Frequency:   core.Daily,
		Interval:    1,
		StartDate:   now.AddDate(0, -1, 0).UnixMilli(),
		NextDueDate: now.UnixMilli(),
	})

	processor := NewRecurringProcessor(st, NewTransactionService(st, nil, "INR"), 50)
	processed, err := processor.ProcessDueRules(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDueRules: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1 (broken rule skipped)", processed)
	}

	txs, _ := st.ListTransactions(ctx, userID, "")
	if len(txs) != 1 || txs[0].Type != core.TypeIncome {
		t.Fatalf("txs = %+v, want single income transaction", txs)
	}
}
