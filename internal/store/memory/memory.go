// Package memory provides a mutex-guarded in-memory Store. It is the
// default backend for local development and the fixture for service
// and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu           sync.RWMutex
	users        []core.User
	accounts     []core.Account
	categories   []core.Category
	transactions []core.Transaction
	budgets      []core.Budget
	rules        []core.RecurringRule

	// now is swappable so tests can pin creation timestamps.
	now func() time.Time
}

func New() *Store {
	return &Store{now: time.Now}
}

// WithClock overrides the creation-timestamp source. Test helper.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Close() error { return nil }

func newID() string { return uuid.NewString() }

// --- users ---

func (s *Store) CreateUser(_ context.Context, user core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return core.User{}, store.ErrAlreadyExists
		}
	}
	if user.ID == "" {
		user.ID = newID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users = append(s.users, user)
	return user, nil
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return core.User{}, store.ErrNotFound
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, store.ErrNotFound
}

// --- accounts ---

func (s *Store) CreateAccount(_ context.Context, account core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.ID == "" {
		account.ID = newID()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now()
	}
	s.accounts = append(s.accounts, account)
	return account, nil
}

func (s *Store) ListAccounts(_ context.Context, userID string) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ListActiveAccounts(_ context.Context, userID string) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Account
	for _, a := range s.accounts {
		if a.UserID == userID && !a.IsArchived {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) AccountByID(_ context.Context, userID, id string) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.UserID == userID && a.ID == id {
			return a, nil
		}
	}
	return core.Account{}, store.ErrNotFound
}

func (s *Store) ArchiveAccount(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].UserID == userID && s.accounts[i].ID == id {
			s.accounts[i].IsArchived = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) AddToBalance(_ context.Context, userID, id string, deltaCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].UserID == userID && s.accounts[i].ID == id {
			s.accounts[i].Balance.Cents += deltaCents
			return nil
		}
	}
	return store.ErrNotFound
}

// --- categories ---

func (s *Store) CreateCategory(_ context.Context, category core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if category.ID == "" {
		category.ID = newID()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = s.now()
	}
	s.categories = append(s.categories, category)
	return category, nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) CategoryByID(_ context.Context, userID, id string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.UserID == userID && c.ID == id {
			return c, nil
		}
	}
	return core.Category{}, store.ErrNotFound
}

// --- transactions ---

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = newID()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now()
	}
	if tx.Tags == nil {
		tx.Tags = []string{}
	}
	s.transactions = append(s.transactions, tx)
	return tx, nil
}

func (s *Store) TransactionByID(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transactions {
		if t.UserID == userID && t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, store.ErrNotFound
}

func (s *Store) ListTransactions(_ context.Context, userID, accountID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.UserID != userID {
			continue
		}
		if accountID != "" && t.AccountID != accountID {
			continue
		}
		out = append(out, t)
	}
	sortByDateDesc(out)
	return out, nil
}

func (s *Store) TransactionsInRange(_ context.Context, userID string, startMs, endMs int64) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.UserID == userID && t.Date >= startMs && t.Date <= endMs {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) RecentTransactions(_ context.Context, userID string, limit int) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sortByDateDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SumCategoryAmountSince(_ context.Context, userID, categoryID string, fromMs int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum int64
	for _, t := range s.transactions {
		if t.UserID == userID && t.CategoryID == categoryID && t.Date >= fromMs {
			sum += t.Amount.Cents
		}
	}
	return sum, nil
}

// --- budgets ---

func (s *Store) UpsertBudget(_ context.Context, budget core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.budgets {
		if b.UserID == budget.UserID && b.CategoryID == budget.CategoryID &&
			b.Year == budget.Year && b.Month == budget.Month {
			budget.ID = b.ID
			s.budgets[i] = budget
			return budget, nil
		}
	}
	if budget.ID == "" {
		budget.ID = newID()
	}
	s.budgets = append(s.budgets, budget)
	return budget, nil
}

func (s *Store) BudgetsForMonth(_ context.Context, userID string, year, month int) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID == userID && b.Year == year && b.Month == month {
			out = append(out, b)
		}
	}
	return out, nil
}

// --- recurring rules ---

func (s *Store) CreateRule(_ context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == "" {
		rule.ID = newID()
	}
	s.rules = append(s.rules, rule)
	return rule, nil
}

func (s *Store) ListRules(_ context.Context, userID string) ([]core.RecurringRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.RecurringRule
	for _, r := range s.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) DueRules(_ context.Context, nowMs int64, limit int) ([]core.RecurringRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.RecurringRule
	for _, r := range s.rules {
		if r.NextDueDate <= nowMs && (r.EndDate == 0 || r.NextDueDate <= r.EndDate) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextDueDate < out[j].NextDueDate })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AdvanceRule(_ context.Context, id string, nextDueMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules[i].NextDueDate = nextDueMs
			return nil
		}
	}
	return store.ErrNotFound
}

// sortByDateDesc orders newest-first, breaking ties on creation time so
// same-day entries stay stable.
func sortByDateDesc(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Date != txs[j].Date {
			return txs[i].Date > txs[j].Date
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}
