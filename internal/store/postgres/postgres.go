// Package postgres backs the store with a pgx connection pool. The
// schema is bootstrapped at startup with idempotent statements.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL,
			currency TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			balance_cents BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			is_archived BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts (user_id);`,
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			name TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			is_system BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_categories_user ON categories (user_id);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			account_id TEXT NOT NULL REFERENCES accounts(id),
			category_id TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			currency TEXT NOT NULL,
			date_ms BIGINT NOT NULL,
			payee TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			transfer_to_account_id TEXT NOT NULL DEFAULT '',
			attachment_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions (user_id, date_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_category_date ON transactions (user_id, category_id, date_ms);`,
		`CREATE TABLE IF NOT EXISTS budgets (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			category_id TEXT NOT NULL,
			year INT NOT NULL,
			month INT NOT NULL,
			amount_cents BIGINT NOT NULL,
			UNIQUE (user_id, category_id, year, month)
		);`,
		`CREATE TABLE IF NOT EXISTS recurring_rules (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			account_id TEXT NOT NULL REFERENCES accounts(id),
			category_id TEXT NOT NULL DEFAULT '',
			amount_cents BIGINT NOT NULL,
			currency TEXT NOT NULL,
			payee TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			frequency TEXT NOT NULL,
			interval INT NOT NULL DEFAULT 1,
			start_date_ms BIGINT NOT NULL,
			end_date_ms BIGINT NOT NULL DEFAULT 0,
			next_due_ms BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_recurring_rules_due ON recurring_rules (next_due_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user core.User) (core.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, display_name, currency, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.DisplayName, user.Currency, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, store.ErrAlreadyExists
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (core.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, display_name, currency, password_hash, created_at FROM users WHERE id = $1`, id))
}

func (s *Store) UserByEmail(ctx context.Context, email string) (core.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, display_name, currency, password_hash, created_at FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

func (s *Store) scanUser(row pgx.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Currency, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// --- accounts ---

const accountColumns = `id, user_id, name, type, balance_cents, currency, is_archived, created_at`

func (s *Store) CreateAccount(ctx context.Context, account core.Account) (core.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.UserID, account.Name, string(account.Type),
		account.Balance.Cents, account.Currency, account.IsArchived, account.CreatedAt)
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return account, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	return s.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (s *Store) ListActiveAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	return s.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 AND NOT is_archived ORDER BY created_at`, userID)
}

func (s *Store) AccountByID(ctx context.Context, userID, id string) (core.Account, error) {
	accounts, err := s.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return core.Account{}, err
	}
	if len(accounts) == 0 {
		return core.Account{}, store.ErrNotFound
	}
	return accounts[0], nil
}

func (s *Store) ArchiveAccount(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET is_archived = TRUE WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("archive account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AddToBalance(ctx context.Context, userID, id string, deltaCents int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + $1 WHERE user_id = $2 AND id = $3`,
		deltaCents, userID, id)
	if err != nil {
		return fmt.Errorf("add to balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) queryAccounts(ctx context.Context, query string, args ...any) ([]core.Account, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		var typ string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Balance.Cents,
			&a.Currency, &a.IsArchived, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = core.AccountType(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- categories ---

func (s *Store) CreateCategory(ctx context.Context, category core.Category) (core.Category, error) {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO categories (id, user_id, name, parent_id, color, is_system, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		category.ID, category.UserID, category.Name, category.ParentID,
		category.Color, category.IsSystem, category.CreatedAt)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return category, nil
}

func (s *Store) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, parent_id, color, is_system, created_at
		 FROM categories WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.ParentID, &c.Color, &c.IsSystem, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CategoryByID(ctx context.Context, userID, id string) (core.Category, error) {
	var c core.Category
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, parent_id, color, is_system, created_at
		 FROM categories WHERE user_id = $1 AND id = $2`, userID, id).
		Scan(&c.ID, &c.UserID, &c.Name, &c.ParentID, &c.Color, &c.IsSystem, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Category{}, store.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	return c, nil
}

// --- transactions ---

const txColumns = `id, user_id, account_id, category_id, type, amount_cents, currency,
	date_ms, payee, note, tags, transfer_to_account_id, attachment_id, created_at`

func (s *Store) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	if tx.Tags == nil {
		tx.Tags = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (`+txColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		tx.ID, tx.UserID, tx.AccountID, tx.CategoryID, string(tx.Type),
		tx.Amount.Cents, tx.Currency, tx.Date, tx.Payee, tx.Note, tx.Tags,
		tx.TransferToAccountID, tx.AttachmentID, tx.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) TransactionByID(ctx context.Context, userID, id string) (core.Transaction, error) {
	txs, err := s.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if len(txs) == 0 {
		return core.Transaction{}, store.ErrNotFound
	}
	return txs[0], nil
}

func (s *Store) ListTransactions(ctx context.Context, userID, accountID string) ([]core.Transaction, error) {
	if accountID != "" {
		return s.queryTransactions(ctx,
			`SELECT `+txColumns+` FROM transactions
			 WHERE user_id = $1 AND account_id = $2 ORDER BY date_ms DESC, created_at DESC`,
			userID, accountID)
	}
	return s.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE user_id = $1 ORDER BY date_ms DESC, created_at DESC`, userID)
}

func (s *Store) TransactionsInRange(ctx context.Context, userID string, startMs, endMs int64) ([]core.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE user_id = $1 AND date_ms >= $2 AND date_ms <= $3`, userID, startMs, endMs)
}

func (s *Store) RecentTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE user_id = $1 ORDER BY date_ms DESC, created_at DESC LIMIT $2`, userID, limit)
}

func (s *Store) SumCategoryAmountSince(ctx context.Context, userID, categoryID string, fromMs int64) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE user_id = $1 AND category_id = $2 AND date_ms >= $3`,
		userID, categoryID, fromMs).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum category amount: %w", err)
	}
	return sum, nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var typ string
		if err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &typ,
			&t.Amount.Cents, &t.Currency, &t.Date, &t.Payee, &t.Note, &t.Tags,
			&t.TransferToAccountID, &t.AttachmentID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TransactionType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- budgets ---

func (s *Store) UpsertBudget(ctx context.Context, budget core.Budget) (core.Budget, error) {
	if budget.ID == "" {
		budget.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO budgets (id, user_id, category_id, year, month, amount_cents)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, category_id, year, month)
		 DO UPDATE SET amount_cents = EXCLUDED.amount_cents
		 RETURNING id`,
		budget.ID, budget.UserID, budget.CategoryID, budget.Year, budget.Month, budget.Amount.Cents).
		Scan(&budget.ID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return budget, nil
}

func (s *Store) BudgetsForMonth(ctx context.Context, userID string, year, month int) ([]core.Budget, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, category_id, year, month, amount_cents
		 FROM budgets WHERE user_id = $1 AND year = $2 AND month = $3`, userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Year, &b.Month, &b.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- recurring rules ---

const ruleColumns = `id, user_id, account_id, category_id, amount_cents, currency,
	payee, note, frequency, interval, start_date_ms, end_date_ms, next_due_ms`

func (s *Store) CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recurring_rules (`+ruleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rule.ID, rule.UserID, rule.AccountID, rule.CategoryID, rule.Amount.Cents,
		rule.Currency, rule.Payee, rule.Note, string(rule.Frequency), rule.Interval,
		rule.StartDate, rule.EndDate, rule.NextDueDate)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("insert rule: %w", err)
	}
	return rule, nil
}

func (s *Store) ListRules(ctx context.Context, userID string) ([]core.RecurringRule, error) {
	return s.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE user_id = $1 ORDER BY next_due_ms`, userID)
}

func (s *Store) DueRules(ctx context.Context, nowMs int64, limit int) ([]core.RecurringRule, error) {
	return s.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules
		 WHERE next_due_ms <= $1 AND (end_date_ms = 0 OR next_due_ms <= end_date_ms)
		 ORDER BY next_due_ms LIMIT $2`, nowMs, limit)
}

func (s *Store) AdvanceRule(ctx context.Context, id string, nextDueMs int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE recurring_rules SET next_due_ms = $1 WHERE id = $2`, nextDueMs, id)
	if err != nil {
		return fmt.Errorf("advance rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]core.RecurringRule, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		var rl core.RecurringRule
		var freq string
		if err := rows.Scan(&rl.ID, &rl.UserID, &rl.AccountID, &rl.CategoryID,
			&rl.Amount.Cents, &rl.Currency, &rl.Payee, &rl.Note, &freq,
			&rl.Interval, &rl.StartDate, &rl.EndDate, &rl.NextDueDate); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rl.Frequency = core.Frequency(freq)
		out = append(out, rl)
	}
	return out, rows.Err()
}
