package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
	"fintrack/internal/store/memory"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// seedUser creates a user with one checking account and returns both IDs.
func seedUser(t *testing.T, st *memory.Store) (string, string) {
	t.Helper()
	ctx := context.Background()
	u, err := st.CreateUser(ctx, core.User{Email: "u@example.com", Currency: "INR"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	a, err := st.CreateAccount(ctx, core.Account{
		UserID: u.ID, Name: "Main Checking", Type: core.AccountChecking, Currency: "INR",
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return u.ID, a.ID
}

func addTx(t *testing.T, st *memory.Store, userID, accountID string, txType core.TransactionType, cents int64, date time.Time, categoryID string) core.Transaction {
	t.Helper()
	tx, err := st.CreateTransaction(context.Background(), core.Transaction{
		UserID:     userID,
		AccountID:  accountID,
		CategoryID: categoryID,
		Type:       txType,
		Amount:     core.Money{Cents: cents},
		Currency:   "INR",
		Date:       date.UnixMilli(),
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return tx
}

func TestDashboardHappyPath(t *testing.T) {
	st := memory.New()
	userID, accountID := seedUser(t, st)
	ctx := context.Background()

	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

	// Current month: 50000 income, 12000 + 8000 expenses.
	addTx(t, st, userID, accountID, core.TypeIncome, 50_000_00, now.AddDate(0, 0, -5), "")
	addTx(t, st, userID, accountID, core.TypeExpense, -12_000_00, now.AddDate(0, 0, -3), "")
	addTx(t, st, userID, accountID, core.TypeExpense, -8_000_00, now.AddDate(0, 0, -1), "")
	// Previous month: 40000 income, 10000 expenses.
	addTx(t, st, userID, accountID, core.TypeIncome, 40_000_00, time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC), "")
	addTx(t, st, userID, accountID, core.TypeExpense, -10_000_00, time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC), "")

	st.AddToBalance(ctx, userID, accountID, 60_000_00)

	svc := NewDashboardService(st, 10000).WithClock(fixedClock(now))
	d, err := svc.Dashboard(ctx, userID)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	if d.TotalBalance.Cents != 60_000_00 {
		t.Errorf("TotalBalance = %d, want 6000000", d.TotalBalance.Cents)
	}
	if d.MonthlyIncome.Cents != 50_000_00 {
		t.Errorf("MonthlyIncome = %d, want 5000000", d.MonthlyIncome.Cents)
	}
	if d.MonthlyExpenses.Cents != 20_000_00 {
		t.Errorf("MonthlyExpenses = %d, want 2000000", d.MonthlyExpenses.Cents)
	}
	if d.NetSavings.Cents != 30_000_00 {
		t.Errorf("NetSavings = %d, want 3000000", d.NetSavings.Cents)
	}

	// (50000-40000)/40000 = 25%, (20000-10000)/10000 = 100%.
	if d.MonthlyComparison.Income.ChangePercent != 25 {
		t.Errorf("income change = %v, want 25", d.MonthlyComparison.Income.ChangePercent)
	}
	if d.MonthlyComparison.Expenses.ChangePercent != 100 {
		t.Errorf("expenses change = %v, want 100", d.MonthlyComparison.Expenses.ChangePercent)
	}

	if len(d.RecentTransactions) != 5 {
		t.Errorf("recent = %d transactions, want 5", len(d.RecentTransactions))
	}

	// No savings category exists, so the composer's default applies.
	if d.SavingsGoal.Title != "Emergency Fund" {
		t.Errorf("goal title = %q, want Emergency Fund", d.SavingsGoal.Title)
	}
	if d.SavingsGoal.Target.Cents != 10000*100 {
		t.Errorf("goal target = %d, want 1000000", d.SavingsGoal.Target.Cents)
	}
	if d.SavingsGoal.Current.Cents != 0 {
		t.Errorf("goal current = %d, want 0", d.SavingsGoal.Current.Cents)
	}
}

func TestDashboardCreditAccountsSubtract(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	u, _ := st.CreateUser(ctx, core.User{Email: "c@example.com"})

	st.CreateAccount(ctx, core.Account{UserID: u.ID, Name: "Checking", Type: core.AccountChecking, Balance: core.Money{Cents: 500_00}})
	// Stored positive, still subtracts.
	st.CreateAccount(ctx, core.Account{UserID: u.ID, Name: "Card", Type: core.AccountCredit, Balance: core.Money{Cents: 150_00}})
	archived, _ := st.CreateAccount(ctx, core.Account{UserID: u.ID, Name: "Old", Type: core.AccountChecking, Balance: core.Money{Cents: 999_00}})
	st.ArchiveAccount(ctx, u.ID, archived.ID)

	svc := NewDashboardService(st, 10000)
	d, err := svc.Dashboard(ctx, u.ID)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.TotalBalance.Cents != 350_00 {
		t.Errorf("TotalBalance = %d, want 35000 (500 - 150, archived ignored)", d.TotalBalance.Cents)
	}
}

func TestSavingsGoalResolution(t *testing.T) {
	now := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)

	t.Run("no savings category yields nil", func(t *testing.T) {
		st := memory.New()
		userID, _ := seedUser(t, st)
		st.CreateCategory(context.Background(), core.Category{UserID: userID, Name: "Groceries"})

		svc := NewDashboardService(st, 10000)
		goal, err := svc.SavingsGoal(context.Background(), userID, now)
		if err != nil {
			t.Fatalf("SavingsGoal: %v", err)
		}
		if goal != nil {
			t.Fatalf("expected nil goal, got %+v", goal)
		}
	})

	t.Run("name match is exact and case-sensitive", func(t *testing.T) {
		st := memory.New()
		userID, _ := seedUser(t, st)
		st.CreateCategory(context.Background(), core.Category{UserID: userID, Name: "savings"})
		st.CreateCategory(context.Background(), core.Category{UserID: userID, Name: "Emergency Funds"})

		svc := NewDashboardService(st, 10000)
		goal, err := svc.SavingsGoal(context.Background(), userID, now)
		if err != nil {
			t.Fatalf("SavingsGoal: %v", err)
		}
		if goal != nil {
			t.Fatalf("expected nil goal for near-miss names, got %+v", goal)
		}
	})

	t.Run("earliest created category wins", func(t *testing.T) {
		st := memory.New()
		userID, _ := seedUser(t, st)
		ctx := context.Background()
		st.CreateCategory(ctx, core.Category{UserID: userID, Name: "Investment", CreatedAt: now.AddDate(0, -1, 0)})
		st.CreateCategory(ctx, core.Category{UserID: userID, Name: "Savings", CreatedAt: now.AddDate(0, -6, 0)})

		svc := NewDashboardService(st, 10000)
		goal, err := svc.SavingsGoal(ctx, userID, now)
		if err != nil {
			t.Fatalf("SavingsGoal: %v", err)
		}
		if goal == nil || goal.Title != "Savings" {
			t.Fatalf("goal = %+v, want the older Savings category", goal)
		}
	})

	t.Run("budget target overrides default", func(t *testing.T) {
		st := memory.New()
		userID, accountID := seedUser(t, st)
		ctx := context.Background()
		cat, _ := st.CreateCategory(ctx, core.Category{UserID: userID, Name: "Emergency Fund"})
		st.UpsertBudget(ctx, core.Budget{
			UserID: userID, CategoryID: cat.ID,
			Year: 2024, Month: 5, // June, zero-based
			Amount: core.Money{Cents: 25_000_00},
		})
		addTx(t, st, userID, accountID, core.TypeIncome, 3_000_00, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), cat.ID)
		addTx(t, st, userID, accountID, core.TypeIncome, 2_000_00, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC), cat.ID)
		// Last year's contribution is excluded.
		addTx(t, st, userID, accountID, core.TypeIncome, 9_000_00, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), cat.ID)

		svc := NewDashboardService(st, 10000)
		goal, err := svc.SavingsGoal(ctx, userID, now)
		if err != nil {
			t.Fatalf("SavingsGoal: %v", err)
		}
		if goal == nil {
			t.Fatal("expected goal")
		}
		if goal.Target.Cents != 25_000_00 {
			t.Errorf("target = %d, want 2500000 from budget", goal.Target.Cents)
		}
		if goal.Current.Cents != 5_000_00 {
			t.Errorf("current = %d, want 500000 (YTD only)", goal.Current.Cents)
		}
	})

	t.Run("negative year-to-date sum clamps to zero", func(t *testing.T) {
		st := memory.New()
		userID, accountID := seedUser(t, st)
		ctx := context.Background()
		cat, _ := st.CreateCategory(ctx, core.Category{UserID: userID, Name: "Savings"})
		addTx(t, st, userID, accountID, core.TypeExpense, -4_000_00, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), cat.ID)
		addTx(t, st, userID, accountID, core.TypeIncome, 1_000_00, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), cat.ID)

		svc := NewDashboardService(st, 10000)
		goal, err := svc.SavingsGoal(ctx, userID, now)
		if err != nil {
			t.Fatalf("SavingsGoal: %v", err)
		}
		if goal == nil {
			t.Fatal("expected goal")
		}
		if goal.Current.Cents != 0 {
			t.Errorf("current = %d, want 0 (clamped)", goal.Current.Cents)
		}
		if goal.Target.Cents != 10000*100 {
			t.Errorf("target = %d, want default 1000000", goal.Target.Cents)
		}
	})
}

func TestRecentTransactionsEnrichment(t *testing.T) {
	st := memory.New()
	userID, accountID := seedUser(t, st)
	ctx := context.Background()

	cat, _ := st.CreateCategory(ctx, core.Category{UserID: userID, Name: "Groceries"})
	date := time.Date(2024, time.March, 2, 9, 30, 0, 0, time.UTC)

	withNames, _ := st.CreateTransaction(ctx, core.Transaction{
		UserID: userID, AccountID: accountID, CategoryID: cat.ID,
		Type: core.TypeExpense, Amount: core.Money{Cents: -750_00},
		Currency: "INR", Date: date.UnixMilli(), Payee: "Big Bazaar", Note: "weekly run",
	})
	orphan, _ := st.CreateTransaction(ctx, core.Transaction{
		UserID: userID, AccountID: "missing-account", CategoryID: "missing-category",
		Type: core.TypeIncome, Amount: core.Money{Cents: 100_00},
		Currency: "INR", Date: date.Add(-time.Hour).UnixMilli(),
	})

	svc := NewDashboardService(st, 10000)
	got, err := svc.RecentTransactions(ctx, userID, 0)
	if err != nil {
		t.Fatalf("RecentTransactions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	first := got[0]
	if first.ID != withNames.ID {
		t.Fatalf("order: first = %s, want newest %s", first.ID, withNames.ID)
	}
	if first.Account != "Main Checking" || first.Category != "Groceries" {
		t.Errorf("resolved names = %q/%q", first.Account, first.Category)
	}
	if first.Description != "Big Bazaar" {
		t.Errorf("description = %q, want payee", first.Description)
	}
	if first.Date != "2024-03-02T09:30:00Z" {
		t.Errorf("date = %q, want RFC-3339 UTC", first.Date)
	}

	second := got[1]
	if second.ID != orphan.ID {
		t.Fatalf("second = %s, want %s", second.ID, orphan.ID)
	}
	if second.Account != "Unknown Account" {
		t.Errorf("account fallback = %q", second.Account)
	}
	if second.Category != "Uncategorized" {
		t.Errorf("category fallback = %q", second.Category)
	}
	if second.Description != "income transaction" {
		t.Errorf("description fallback = %q", second.Description)
	}
}

// failingStore wraps the memory store and fails one sub-read.
type failingStore struct {
	store.Store
}

var errStoreDown = errors.New("store down")

func (f *failingStore) RecentTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	return nil, errStoreDown
}

func TestDashboardFailsWhenAnySubReadFails(t *testing.T) {
	st := memory.New()
	userID, _ := seedUser(t, st)

	svc := NewDashboardService(&failingStore{Store: st}, 10000)
	_, err := svc.Dashboard(context.Background(), userID)
	if err == nil {
		t.Fatal("expected error when a sub-read fails")
	}
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("error = %v, want wrapped errStoreDown", err)
	}
	if !strings.Contains(err.Error(), "recent transactions") {
		t.Fatalf("error %q lacks sub-read context", err.Error())
	}
}

func TestDashboardEmptyUser(t *testing.T) {
	st := memory.New()
	u, _ := st.CreateUser(context.Background(), core.User{Email: "empty@example.com"})

	svc := NewDashboardService(st, 10000)
	d, err := svc.Dashboard(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.TotalBalance.Cents != 0 || d.MonthlyIncome.Cents != 0 || d.MonthlyExpenses.Cents != 0 {
		t.Errorf("expected all-zero totals, got %+v", d)
	}
	if d.MonthlyComparison.Income.ChangePercent != 0 {
		t.Errorf("zero baseline change = %v, want 0", d.MonthlyComparison.Income.ChangePercent)
	}
	if len(d.RecentTransactions) != 0 {
		t.Errorf("recent = %d, want 0", len(d.RecentTransactions))
	}
}
