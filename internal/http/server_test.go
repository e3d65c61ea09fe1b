package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/store/memory"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Port:                 "8080",
		DefaultCurrency:      "INR",
		DefaultSavingsTarget: 10000,
	}
	st := memory.New()
	tokens := auth.NewTokenManager("test-secret-test-secret", "fintrack", time.Hour)
	transactions := services.NewTransactionService(st, nil, cfg.DefaultCurrency)
	dashboard := services.NewDashboardService(st, cfg.DefaultSavingsTarget)
	logger := log.New(log.Config{Level: slog.LevelError, Component: log.ComponentHTTP})

	s := NewServer(cfg, st, transactions, dashboard, tokens, logger)
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s
}

func amountOf(units float64) amount {
	return amount{cents: unitsToCents(units)}
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope from %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func registerUser(t *testing.T, s *Server, email string) string {
	t.Helper()

	rec, env := doJSON(t, s, http.MethodPost, "/api/auth/register", "", registerRequest{
		Email:       email,
		Password:    "hunter2hunter2",
		DisplayName: "Test User",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp authResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}
	return resp.Token
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestUnauthenticatedReadsReturnEmpty(t *testing.T) {
	s := newTestServer(t)

	paths := []string{"/api/accounts", "/api/categories", "/api/transactions", "/api/transactions/recent", "/api/budgets", "/api/recurring-rules"}
	for _, path := range paths {
		rec, env := doJSON(t, s, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(env.Data, &items); err != nil {
			t.Errorf("GET %s data = %s, want array", path, env.Data)
			continue
		}
		if len(items) != 0 {
			t.Errorf("GET %s returned %d items, want 0", path, len(items))
		}
	}
}

func TestUnauthenticatedWritesRejected(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/accounts"},
		{http.MethodPost, "/api/categories"},
		{http.MethodPost, "/api/transactions"},
		{http.MethodPut, "/api/budgets"},
		{http.MethodPost, "/api/recurring-rules"},
		{http.MethodPost, "/api/accounts/some-id/archive"},
	}
	for _, tc := range cases {
		rec, _ := doJSON(t, s, tc.method, tc.path, "", map[string]string{})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	s := newTestServer(t)

	registerUser(t, s, "flow@example.com")

	// Duplicate registration conflicts
	rec, _ := doJSON(t, s, http.MethodPost, "/api/auth/register", "", registerRequest{
		Email:    "flow@example.com",
		Password: "hunter2hunter2",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rec.Code)
	}

	rec, env := doJSON(t, s, http.MethodPost, "/api/auth/login", "", loginRequest{
		Email:    "flow@example.com",
		Password: "hunter2hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp authResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.User.Email != "flow@example.com" {
		t.Fatalf("login user email = %q", resp.User.Email)
	}

	rec, _ = doJSON(t, s, http.MethodPost, "/api/auth/login", "", loginRequest{
		Email:    "flow@example.com",
		Password: "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rec.Code)
	}
}

func TestAccountLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "accounts@example.com")

	rec, env := doJSON(t, s, http.MethodPost, "/api/accounts", token, createAccountRequest{
		Name:    "Main Checking",
		Type:    "checking",
		Balance: amountOf(1250.50),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created accountResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if created.Currency != "INR" {
		t.Errorf("currency = %q, want default INR", created.Currency)
	}
	if created.Balance != 1250.50 {
		t.Errorf("balance = %v, want 1250.50", created.Balance)
	}

	rec, env = doJSON(t, s, http.MethodGet, "/api/accounts", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list accounts status = %d", rec.Code)
	}
	var accounts []accountResponse
	if err := json.Unmarshal(env.Data, &accounts); err != nil {
		t.Fatalf("decode accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("got %d accounts, want 1", len(accounts))
	}

	rec, _ = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/accounts/%s/archive", created.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("archive status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec, _ = doJSON(t, s, http.MethodPost, "/api/accounts/missing/archive", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("archive missing status = %d, want 404", rec.Code)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "txval@example.com")

	// Zero amount
	rec, _ := doJSON(t, s, http.MethodPost, "/api/transactions", token, createTransactionRequest{
		AccountID: "some-account",
		Amount:    amountOf(0),
		Type:      "expense",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero amount status = %d, want 422", rec.Code)
	}

	// Unknown account
	rec, _ = doJSON(t, s, http.MethodPost, "/api/transactions", token, createTransactionRequest{
		AccountID: "missing-account",
		Amount:    amountOf(-10),
		Type:      "expense",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown account status = %d, want 422", rec.Code)
	}
}

func TestCreateTransactionStringAmount(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "strampt@example.com")

	rec, env := doJSON(t, s, http.MethodPost, "/api/accounts", token, createAccountRequest{
		Name: "Wallet", Type: "cash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account status = %d", rec.Code)
	}
	var account accountResponse
	if err := json.Unmarshal(env.Data, &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}

	// Decimal-comma string amount, the way some clients format money
	rec, env = doJSON(t, s, http.MethodPost, "/api/transactions", token, map[string]any{
		"accountId": account.ID,
		"amount":    "-120,25",
		"type":      "expense",
		"payee":     "Corner Shop",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tx status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created transactionResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}
	if created.Amount != -120.25 {
		t.Errorf("amount = %v, want -120.25", created.Amount)
	}

	rec, _ = doJSON(t, s, http.MethodPost, "/api/transactions", token, map[string]any{
		"accountId": account.ID,
		"amount":    "garbage",
		"type":      "expense",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad amount status = %d, want 400", rec.Code)
	}
}

func TestDashboardHappyPath(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "dash@example.com")

	rec, env := doJSON(t, s, http.MethodPost, "/api/accounts", token, createAccountRequest{
		Name: "Main Checking", Type: "checking", Balance: amountOf(1000),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account status = %d", rec.Code)
	}
	var account accountResponse
	if err := json.Unmarshal(env.Data, &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}

	rec, _ = doJSON(t, s, http.MethodPost, "/api/transactions", token, createTransactionRequest{
		AccountID: account.ID, Amount: amountOf(500), Type: "income", Payee: "Employer Inc",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create income status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec, _ = doJSON(t, s, http.MethodPost, "/api/transactions", token, createTransactionRequest{
		AccountID: account.ID, Amount: amountOf(-120.25), Type: "expense", Payee: "Grocery Mart",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec, env = doJSON(t, s, http.MethodGet, "/api/dashboard", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d, body %s", rec.Code, rec.Body.String())
	}
	var d dashboardResponse
	if err := json.Unmarshal(env.Data, &d); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}

	// 1000 opening + 500 income - 120.25 expense, projected inline
	if d.TotalBalance != 1379.75 {
		t.Errorf("totalBalance = %v, want 1379.75", d.TotalBalance)
	}
	if d.MonthlyIncome != 500 {
		t.Errorf("monthlyIncome = %v, want 500", d.MonthlyIncome)
	}
	if d.MonthlyExpenses != 120.25 {
		t.Errorf("monthlyExpenses = %v, want 120.25", d.MonthlyExpenses)
	}
	if d.NetSavings != 379.75 {
		t.Errorf("netSavings = %v, want 379.75", d.NetSavings)
	}
	if d.SavingsGoal.Title != "Emergency Fund" || d.SavingsGoal.Target != 10000 {
		t.Errorf("savingsGoal = %+v, want default Emergency Fund / 10000", d.SavingsGoal)
	}
	if len(d.RecentTransactions) != 2 {
		t.Fatalf("got %d recent transactions, want 2", len(d.RecentTransactions))
	}
	if d.RecentTransactions[0].Account != "Main Checking" {
		t.Errorf("recent account = %q, want Main Checking", d.RecentTransactions[0].Account)
	}
	if d.MonthlyComparison.Income.Current != 500 || d.MonthlyComparison.Income.Change != 0 {
		t.Errorf("income comparison = %+v", d.MonthlyComparison.Income)
	}
}

func TestDashboardUnauthenticated(t *testing.T) {
	s := newTestServer(t)

	rec, env := doJSON(t, s, http.MethodGet, "/api/dashboard", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rec.Code)
	}
	var d dashboardResponse
	if err := json.Unmarshal(env.Data, &d); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if d.TotalBalance != 0 || d.MonthlyIncome != 0 || len(d.RecentTransactions) != 0 {
		t.Errorf("expected zeroed dashboard, got %+v", d)
	}
	if d.SavingsGoal.Title != "Emergency Fund" {
		t.Errorf("savingsGoal title = %q", d.SavingsGoal.Title)
	}
}

func TestBudgetUpsertRoundTrip(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "budget@example.com")

	rec, env := doJSON(t, s, http.MethodPost, "/api/categories", token, createCategoryRequest{Name: "Savings"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category status = %d", rec.Code)
	}
	var category categoryResponse
	if err := json.Unmarshal(env.Data, &category); err != nil {
		t.Fatalf("decode category: %v", err)
	}

	rec, _ = doJSON(t, s, http.MethodPut, "/api/budgets", token, upsertBudgetRequest{
		CategoryID: category.ID, Year: 2026, Month: 7, Amount: amountOf(250),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert budget status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Same key updates in place
	rec, _ = doJSON(t, s, http.MethodPut, "/api/budgets", token, upsertBudgetRequest{
		CategoryID: category.ID, Year: 2026, Month: 7, Amount: amountOf(300),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("second upsert status = %d", rec.Code)
	}

	rec, env = doJSON(t, s, http.MethodGet, "/api/budgets?year=2026&month=7", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list budgets status = %d", rec.Code)
	}
	var budgets []budgetResponse
	if err := json.Unmarshal(env.Data, &budgets); err != nil {
		t.Fatalf("decode budgets: %v", err)
	}
	if len(budgets) != 1 {
		t.Fatalf("got %d budgets, want 1", len(budgets))
	}
	if budgets[0].Amount != 300 {
		t.Errorf("budget amount = %v, want 300", budgets[0].Amount)
	}
}

func TestRecentTransactionsLimit(t *testing.T) {
	s := newTestServer(t)
	token := registerUser(t, s, "recent@example.com")

	rec, env := doJSON(t, s, http.MethodPost, "/api/accounts", token, createAccountRequest{
		Name: "Cash", Type: "cash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account status = %d", rec.Code)
	}
	var account accountResponse
	if err := json.Unmarshal(env.Data, &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}

	for i := 0; i < 12; i++ {
		rec, _ = doJSON(t, s, http.MethodPost, "/api/transactions", token, createTransactionRequest{
			AccountID: account.ID, Amount: amountOf(-1), Type: "expense",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create tx %d status = %d", i, rec.Code)
		}
	}

	rec, env = doJSON(t, s, http.MethodGet, "/api/transactions/recent", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recent status = %d", rec.Code)
	}
	var recent []recentTransactionResponse
	if err := json.Unmarshal(env.Data, &recent); err != nil {
		t.Fatalf("decode recent: %v", err)
	}
	if len(recent) != 10 {
		t.Errorf("default recent size = %d, want 10", len(recent))
	}

	rec, env = doJSON(t, s, http.MethodGet, "/api/transactions/recent?limit=3", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recent limit status = %d", rec.Code)
	}
	recent = nil
	if err := json.Unmarshal(env.Data, &recent); err != nil {
		t.Fatalf("decode recent: %v", err)
	}
	if len(recent) != 3 {
		t.Errorf("limited recent size = %d, want 3", len(recent))
	}

	rec, _ = doJSON(t, s, http.MethodGet, "/api/transactions/recent?limit=bogus", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus limit status = %d, want 400", rec.Code)
	}
}
