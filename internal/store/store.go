// Package store defines the persistence ports consumed by the services
// and HTTP layer, implemented by the memory, sqlite and postgres
// backends.
package store

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore captures user persistence used by the auth handlers.
type UserStore interface {
	CreateUser(ctx context.Context, user core.User) (core.User, error)
	UserByID(ctx context.Context, id string) (core.User, error)
	UserByEmail(ctx context.Context, email string) (core.User, error)
}

// AccountStore persists user accounts. ListActiveAccounts is the
// indexed equality read behind the balance aggregation (isArchived =
// false); AddToBalance is used by the balance worker only.
type AccountStore interface {
	CreateAccount(ctx context.Context, account core.Account) (core.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
	ListActiveAccounts(ctx context.Context, userID string) ([]core.Account, error)
	AccountByID(ctx context.Context, userID, id string) (core.Account, error)
	ArchiveAccount(ctx context.Context, userID, id string) error
	AddToBalance(ctx context.Context, userID, id string, deltaCents int64) error
}

// CategoryStore persists categories.
type CategoryStore interface {
	CreateCategory(ctx context.Context, category core.Category) (core.Category, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	CategoryByID(ctx context.Context, userID, id string) (core.Category, error)
}

// TransactionStore persists transactions and serves the range and
// point reads the dashboard needs. TransactionsInRange is an inclusive
// [start, end] epoch-ms range read. SumCategoryAmountSince is a
// sign-preserving sum of amounts for one category dated on or after
// fromMs, pushed into the query layer so the year-to-date scan stays
// bounded.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	TransactionByID(ctx context.Context, userID, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID, accountID string) ([]core.Transaction, error)
	TransactionsInRange(ctx context.Context, userID string, startMs, endMs int64) ([]core.Transaction, error)
	RecentTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error)
	SumCategoryAmountSince(ctx context.Context, userID, categoryID string, fromMs int64) (int64, error)
}

// BudgetStore persists monthly budgets, one expected per
// (user, category, year, month).
type BudgetStore interface {
	UpsertBudget(ctx context.Context, budget core.Budget) (core.Budget, error)
	BudgetsForMonth(ctx context.Context, userID string, year, month int) ([]core.Budget, error)
}

// RecurringRuleStore persists recurring rules and serves the
// recurring worker.
type RecurringRuleStore interface {
	CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error)
	ListRules(ctx context.Context, userID string) ([]core.RecurringRule, error)
	DueRules(ctx context.Context, nowMs int64, limit int) ([]core.RecurringRule, error)
	AdvanceRule(ctx context.Context, id string, nextDueMs int64) error
}

// Store is the combined backend created by the factory.
type Store interface {
	UserStore
	AccountStore
	CategoryStore
	TransactionStore
	BudgetStore
	RecurringRuleStore
	Close() error
}
