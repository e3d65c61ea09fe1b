package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// savingsCategoryNames are the category names recognized as savings
// goals, matched exactly and case-sensitively.
var savingsCategoryNames = []string{"Emergency Fund", "Savings", "Investment"}

const (
	defaultGoalTitle    = "Emergency Fund"
	recentDefaultLimit  = 10
	dashboardRecentSize = 5
)

// DashboardService composes the per-user dashboard: total balance,
// month summaries, month-over-month comparison, savings goal progress
// and the recent transaction feed.
type DashboardService struct {
	store              store.Store
	savingsTargetCents int64

	// now is swappable so tests can pin the reference month.
	now func() time.Time
}

// NewDashboardService builds a service with the deployment's default
// savings target, given in whole currency units.
func NewDashboardService(st store.Store, defaultSavingsTarget int64) *DashboardService {
	return &DashboardService{
		store:              st,
		savingsTargetCents: defaultSavingsTarget * 100,
		now:                time.Now,
	}
}

// WithClock overrides the time source. Test helper.
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	s.now = now
	return s
}

// Dashboard runs the five sub-reads concurrently and combines the
// results. Any sub-read failure fails the whole composition.
func (s *DashboardService) Dashboard(ctx context.Context, userID string) (core.Dashboard, error) {
	ref := s.now()
	cur := core.MonthBounds(ref)
	prev := core.PreviousMonthBounds(ref)

	var (
		balance     core.Money
		curSummary  core.PeriodSummary
		prevSummary core.PeriodSummary
		recent      []core.EnrichedTransaction
		goal        *core.SavingsGoal
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		accounts, err := s.store.ListActiveAccounts(gctx, userID)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		balance = core.TotalBalance(accounts)
		return nil
	})
	g.Go(func() error {
		txs, err := s.store.TransactionsInRange(gctx, userID, cur.Start, cur.End)
		if err != nil {
			return fmt.Errorf("current month transactions: %w", err)
		}
		curSummary = core.Summarize(txs)
		return nil
	})
	g.Go(func() error {
		txs, err := s.store.TransactionsInRange(gctx, userID, prev.Start, prev.End)
		if err != nil {
			return fmt.Errorf("previous month transactions: %w", err)
		}
		prevSummary = core.Summarize(txs)
		return nil
	})
	g.Go(func() error {
		var err error
		recent, err = s.RecentTransactions(gctx, userID, dashboardRecentSize)
		if err != nil {
			return fmt.Errorf("recent transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		goal, err = s.SavingsGoal(gctx, userID, ref)
		if err != nil {
			return fmt.Errorf("savings goal: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return core.Dashboard{}, err
	}

	// The resolver reports "no goal" as nil; the display default lives
	// here, not in the resolver.
	if goal == nil {
		goal = &core.SavingsGoal{
			Title:   defaultGoalTitle,
			Target:  core.Money{Cents: s.savingsTargetCents},
			Current: core.Money{},
		}
	}

	return core.Dashboard{
		TotalBalance:       balance,
		MonthlyIncome:      curSummary.Income,
		MonthlyExpenses:    curSummary.Expenses,
		NetSavings:         curSummary.NetSavings,
		SavingsGoal:        *goal,
		RecentTransactions: recent,
		MonthlyComparison:  core.CompareSummaries(curSummary, prevSummary),
	}, nil
}

// SavingsGoal resolves the user's designated savings category and its
// progress for the month containing ref. Returns nil when the user has
// no category with a recognized savings name.
func (s *DashboardService) SavingsGoal(ctx context.Context, userID string, ref time.Time) (*core.SavingsGoal, error) {
	categories, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	selected := selectSavingsCategory(categories)
	if selected == nil {
		return nil, nil
	}

	target := core.Money{Cents: s.savingsTargetCents}
	budgets, err := s.store.BudgetsForMonth(ctx, userID, ref.Year(), int(ref.Month())-1)
	if err != nil {
		return nil, fmt.Errorf("budgets for month: %w", err)
	}
	for _, b := range budgets {
		if b.CategoryID == selected.ID {
			target = b.Amount
			break
		}
	}

	sum, err := s.store.SumCategoryAmountSince(ctx, userID, selected.ID, core.YearStart(ref))
	if err != nil {
		return nil, fmt.Errorf("sum category contributions: %w", err)
	}
	if sum < 0 {
		sum = 0
	}

	return &core.SavingsGoal{
		Title:   selected.Name,
		Target:  target,
		Current: core.Money{Cents: sum},
	}, nil
}

// selectSavingsCategory picks the matching category with the earliest
// creation time, so the choice stays stable regardless of store order.
func selectSavingsCategory(categories []core.Category) *core.Category {
	var selected *core.Category
	for i := range categories {
		c := &categories[i]
		if !isSavingsName(c.Name) {
			continue
		}
		if selected == nil || c.CreatedAt.Before(selected.CreatedAt) {
			selected = c
		}
	}
	return selected
}

func isSavingsName(name string) bool {
	for _, n := range savingsCategoryNames {
		if name == n {
			return true
		}
	}
	return false
}

// RecentTransactions returns up to limit transactions, newest first,
// decorated with resolved account and category names. A limit of zero
// or less falls back to the default of 10.
func (s *DashboardService) RecentTransactions(ctx context.Context, userID string, limit int) ([]core.EnrichedTransaction, error) {
	if limit <= 0 {
		limit = recentDefaultLimit
	}
	txs, err := s.store.RecentTransactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}

	accountNames := map[string]string{}
	categoryNames := map[string]string{}

	out := make([]core.EnrichedTransaction, 0, len(txs))
	for _, t := range txs {
		accountName, ok := accountNames[t.AccountID]
		if !ok {
			accountName = "Unknown Account"
			if t.AccountID != "" {
				if a, err := s.store.AccountByID(ctx, userID, t.AccountID); err == nil {
					accountName = a.Name
				} else if !errors.Is(err, store.ErrNotFound) {
					return nil, fmt.Errorf("resolve account %s: %w", t.AccountID, err)
				}
			}
			accountNames[t.AccountID] = accountName
		}

		categoryName, ok := categoryNames[t.CategoryID]
		if !ok {
			categoryName = "Uncategorized"
			if t.CategoryID != "" {
				if c, err := s.store.CategoryByID(ctx, userID, t.CategoryID); err == nil {
					categoryName = c.Name
				} else if !errors.Is(err, store.ErrNotFound) {
					return nil, fmt.Errorf("resolve category %s: %w", t.CategoryID, err)
				}
			}
			categoryNames[t.CategoryID] = categoryName
		}

		out = append(out, core.EnrichedTransaction{
			ID:          t.ID,
			Description: describe(t),
			Amount:      t.Amount,
			Type:        t.Type,
			Date:        time.UnixMilli(t.Date).UTC().Format(time.RFC3339),
			Category:    categoryName,
			Account:     accountName,
			Note:        t.Note,
		})
	}
	return out, nil
}

func describe(t core.Transaction) string {
	if t.Payee != "" {
		return t.Payee
	}
	return string(t.Type) + " transaction"
}
