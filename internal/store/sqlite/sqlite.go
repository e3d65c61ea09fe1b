// Package sqlite persists all entities in a single SQLite file. Schema
// management goes through embedded golang-migrate migrations.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

var _ store.Store = (*Repository)(nil)

type Repository struct {
	db *sql.DB
}

func New(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- users ---

func (r *Repository) CreateUser(ctx context.Context, user core.User) (core.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, currency, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.DisplayName, user.Currency, user.PasswordHash, user.CreatedAt.UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.User{}, store.ErrAlreadyExists
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *Repository) UserByID(ctx context.Context, id string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, currency, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, currency, password_hash, created_at FROM users WHERE email = ? COLLATE NOCASE`, email))
}

func (r *Repository) scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	var createdMs int64
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Currency, &u.PasswordHash, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(createdMs)
	return u, nil
}

// --- accounts ---

const accountColumns = `id, user_id, name, type, balance_cents, currency, is_archived, created_at`

func (r *Repository) CreateAccount(ctx context.Context, account core.Account) (core.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.UserID, account.Name, string(account.Type),
		account.Balance.Cents, account.Currency, account.IsArchived, account.CreatedAt.UnixMilli())
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return account, nil
}

func (r *Repository) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	return r.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY created_at`, userID)
}

func (r *Repository) ListActiveAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	return r.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? AND is_archived = 0 ORDER BY created_at`, userID)
}

func (r *Repository) AccountByID(ctx context.Context, userID, id string) (core.Account, error) {
	accounts, err := r.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return core.Account{}, err
	}
	if len(accounts) == 0 {
		return core.Account{}, store.ErrNotFound
	}
	return accounts[0], nil
}

func (r *Repository) ArchiveAccount(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET is_archived = 1 WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("archive account: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) AddToBalance(ctx context.Context, userID, id string, deltaCents int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE user_id = ? AND id = ?`,
		deltaCents, userID, id)
	if err != nil {
		return fmt.Errorf("add to balance: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) queryAccounts(ctx context.Context, query string, args ...any) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		var typ string
		var createdMs int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Balance.Cents,
			&a.Currency, &a.IsArchived, &createdMs); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = core.AccountType(typ)
		a.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- categories ---

func (r *Repository) CreateCategory(ctx context.Context, category core.Category) (core.Category, error) {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, parent_id, color, is_system, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		category.ID, category.UserID, category.Name, category.ParentID,
		category.Color, category.IsSystem, category.CreatedAt.UnixMilli())
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return category, nil
}

func (r *Repository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, parent_id, color, is_system, created_at
		 FROM categories WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var createdMs int64
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.ParentID, &c.Color, &c.IsSystem, &createdMs); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) CategoryByID(ctx context.Context, userID, id string) (core.Category, error) {
	var c core.Category
	var createdMs int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, parent_id, color, is_system, created_at
		 FROM categories WHERE user_id = ? AND id = ?`, userID, id).
		Scan(&c.ID, &c.UserID, &c.Name, &c.ParentID, &c.Color, &c.IsSystem, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, store.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	c.CreatedAt = time.UnixMilli(createdMs)
	return c, nil
}

// --- transactions ---

const txColumns = `id, user_id, account_id, category_id, type, amount_cents, currency,
	date_ms, payee, note, tags, transfer_to_account_id, attachment_id, created_at`

func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	tags, err := json.Marshal(tx.Tags)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("marshal tags: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+txColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.AccountID, tx.CategoryID, string(tx.Type),
		tx.Amount.Cents, tx.Currency, tx.Date, tx.Payee, tx.Note,
		string(tags), tx.TransferToAccountID, tx.AttachmentID, tx.CreatedAt.UnixMilli())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (r *Repository) TransactionByID(ctx context.Context, userID, id string) (core.Transaction, error) {
	txs, err := r.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if len(txs) == 0 {
		return core.Transaction{}, store.ErrNotFound
	}
	return txs[0], nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID, accountID string) ([]core.Transaction, error) {
	if accountID != "" {
		return r.queryTransactions(ctx,
			`SELECT `+txColumns+` FROM transactions
			 WHERE user_id = ? AND account_id = ? ORDER BY date_ms DESC, created_at DESC`,
			userID, accountID)
	}
	return r.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE user_id = ? ORDER BY date_ms DESC, created_at DESC`, userID)
}

func (r *Repository) TransactionsInRange(ctx context.Context, userID string, startMs, endMs int64) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE user_id = ? AND date_ms >= ? AND date_ms <= ?`, userID, startMs, endMs)
}

func (r *Repository) RecentTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE user_id = ? ORDER BY date_ms DESC, created_at DESC LIMIT ?`, userID, limit)
}

func (r *Repository) SumCategoryAmountSince(ctx context.Context, userID, categoryID string, fromMs int64) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE user_id = ? AND category_id = ? AND date_ms >= ?`,
		userID, categoryID, fromMs).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum category amount: %w", err)
	}
	return sum, nil
}

func (r *Repository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var typ, tags string
		var createdMs int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.CategoryID, &typ,
			&t.Amount.Cents, &t.Currency, &t.Date, &t.Payee, &t.Note, &tags,
			&t.TransferToAccountID, &t.AttachmentID, &createdMs); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TransactionType(typ)
		t.CreatedAt = time.UnixMilli(createdMs)
		if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- budgets ---

func (r *Repository) UpsertBudget(ctx context.Context, budget core.Budget) (core.Budget, error) {
	if budget.ID == "" {
		budget.ID = uuid.NewString()
	}
	// Keep the original row ID when the slot already exists.
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, user_id, category_id, year, month, amount_cents)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, category_id, year, month)
		 DO UPDATE SET amount_cents = excluded.amount_cents`,
		budget.ID, budget.UserID, budget.CategoryID, budget.Year, budget.Month, budget.Amount.Cents)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM budgets WHERE user_id = ? AND category_id = ? AND year = ? AND month = ?`,
		budget.UserID, budget.CategoryID, budget.Year, budget.Month).Scan(&budget.ID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("read back budget: %w", err)
	}
	return budget, nil
}

func (r *Repository) BudgetsForMonth(ctx context.Context, userID string, year, month int) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, category_id, year, month, amount_cents
		 FROM budgets WHERE user_id = ? AND year = ? AND month = ?`, userID, year, month)
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

func (r *Repository) CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_rules (`+ruleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.UserID, rule.AccountID, rule.CategoryID, rule.Amount.Cents,
		rule.Currency, rule.Payee, rule.Note, string(rule.Frequency), rule.Interval,
		rule.StartDate, rule.EndDate, rule.NextDueDate)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("insert rule: %w", err)
	}
	return rule, nil
}

func (r *Repository) ListRules(ctx context.Context, userID string) ([]core.RecurringRule, error) {
	return r.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE user_id = ? ORDER BY next_due_ms`, userID)
}

func (r *Repository) DueRules(ctx context.Context, nowMs int64, limit int) ([]core.RecurringRule, error) {
	return r.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules
		 WHERE next_due_ms <= ? AND (end_date_ms = 0 OR next_due_ms <= end_date_ms)
		 ORDER BY next_due_ms LIMIT ?`, nowMs, limit)
}

func (r *Repository) AdvanceRule(ctx context.Context, id string, nextDueMs int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_rules SET next_due_ms = ? WHERE id = ?`, nextDueMs, id)
	if err != nil {
		return fmt.Errorf("advance rule: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) queryRules(ctx context.Context, query string, args ...any) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
