package http

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"fintrack/internal/core"
)

// Amounts cross the wire as currency units; storage and aggregation
// stay in cents.

func unitsToCents(units float64) int64 {
	return int64(math.Round(units * 100))
}

// amount is a request money field. It accepts either a JSON number of
// currency units or a decimal string ("12.34", "-12,34"), so clients
// that format amounts as text avoid float round-tripping.
type amount struct {
	cents int64
}

func (a amount) Cents() int64 { return a.cents }

func (a amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(core.Money{Cents: a.cents}.Units())
}

func (a *amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		cents, err := core.ParseDecimalToCents(s)
		if err != nil {
			return fmt.Errorf("amount %q: %w", s, err)
		}
		a.cents = cents
		return nil
	}
	var units float64
	if err := json.Unmarshal(data, &units); err != nil {
		return err
	}
	a.cents = unitsToCents(units)
	return nil
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Currency    string `json:"currency"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Currency    string `json:"currency"`
}

func toUserResponse(u core.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, Currency: u.Currency}
}

type createAccountRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Balance  amount `json:"balance"`
	Currency string `json:"currency"`
}

type accountResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Balance    float64 `json:"balance"`
	Currency   string  `json:"currency"`
	IsArchived bool    `json:"isArchived"`
	CreatedAt  string  `json:"createdAt"`
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{
		ID:         a.ID,
		Name:       a.Name,
		Type:       string(a.Type),
		Balance:    a.Balance.Units(),
		Currency:   a.Currency,
		IsArchived: a.IsArchived,
		CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type createCategoryRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parentId"`
	Color    string `json:"color"`
}

type categoryResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
	Color    string `json:"color,omitempty"`
	IsSystem bool   `json:"isSystem"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, ParentID: c.ParentID, Color: c.Color, IsSystem: c.IsSystem}
}

type createTransactionRequest struct {
	AccountID           string   `json:"accountId"`
	CategoryID          string   `json:"categoryId"`
	Amount              amount   `json:"amount"`
	Currency            string   `json:"currency"`
	Date                int64    `json:"date"`
	Payee               string   `json:"payee"`
	Note                string   `json:"note"`
	Tags                []string `json:"tags"`
	Type                string   `json:"type"`
	TransferToAccountID string   `json:"transferToAccountId"`
}

type transactionResponse struct {
	ID                  string   `json:"id"`
	AccountID           string   `json:"accountId"`
	CategoryID          string   `json:"categoryId,omitempty"`
	Amount              float64  `json:"amount"`
	Currency            string   `json:"currency"`
	Date                int64    `json:"date"`
	Payee               string   `json:"payee,omitempty"`
	Note                string   `json:"note,omitempty"`
	Tags                []string `json:"tags,omitempty"`
	Type                string   `json:"type"`
	TransferToAccountID string   `json:"transferToAccountId,omitempty"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:                  t.ID,
		AccountID:           t.AccountID,
		CategoryID:          t.CategoryID,
		Amount:              t.Amount.Units(),
		Currency:            t.Currency,
		Date:                t.Date,
		Payee:               t.Payee,
		Note:                t.Note,
		Tags:                t.Tags,
		Type:                string(t.Type),
		TransferToAccountID: t.TransferToAccountID,
	}
}

type upsertBudgetRequest struct {
	CategoryID string `json:"categoryId"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Amount     amount `json:"amount"`
}

type budgetResponse struct {
	ID         string  `json:"id"`
	CategoryID string  `json:"categoryId"`
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	Amount     float64 `json:"amount"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{ID: b.ID, CategoryID: b.CategoryID, Year: b.Year, Month: b.Month, Amount: b.Amount.Units()}
}

type createRuleRequest struct {
	AccountID  string `json:"accountId"`
	CategoryID string `json:"categoryId"`
	Amount     amount `json:"amount"`
	Currency   string `json:"currency"`
	Payee      string `json:"payee"`
	Note       string `json:"note"`
	StartDate  int64  `json:"startDate"`
	EndDate    int64  `json:"endDate"`
	Frequency  string `json:"frequency"`
	Interval   int    `json:"interval"`
}

type ruleResponse struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"accountId"`
	CategoryID  string  `json:"categoryId,omitempty"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Payee       string  `json:"payee,omitempty"`
	Note        string  `json:"note,omitempty"`
	StartDate   int64   `json:"startDate"`
	EndDate     int64   `json:"endDate,omitempty"`
	Frequency   string  `json:"frequency"`
	Interval    int     `json:"interval"`
	NextDueDate int64   `json:"nextDueDate"`
}

func toRuleResponse(r core.RecurringRule) ruleResponse {
	return ruleResponse{
		ID:          r.ID,
		AccountID:   r.AccountID,
		CategoryID:  r.CategoryID,
		Amount:      r.Amount.Units(),
		Currency:    r.Currency,
		Payee:       r.Payee,
		Note:        r.Note,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Frequency:   string(r.Frequency),
		Interval:    r.Interval,
		NextDueDate: r.NextDueDate,
	}
}

type savingsGoalResponse struct {
	Title   string  `json:"title"`
	Target  float64 `json:"target"`
	Current float64 `json:"current"`
}

type recentTransactionResponse struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Date        string  `json:"date"`
	Category    string  `json:"category"`
	Account     string  `json:"account"`
	Note        string  `json:"note,omitempty"`
}

type metricComparisonResponse struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	Change   float64 `json:"change"`
}

type monthlyComparisonResponse struct {
	Income   metricComparisonResponse `json:"income"`
	Expenses metricComparisonResponse `json:"expenses"`
	Savings  metricComparisonResponse `json:"savings"`
}

type dashboardResponse struct {
	TotalBalance       float64                     `json:"totalBalance"`
	MonthlyIncome      float64                     `json:"monthlyIncome"`
	MonthlyExpenses    float64                     `json:"monthlyExpenses"`
	NetSavings         float64                     `json:"netSavings"`
	SavingsGoal        savingsGoalResponse         `json:"savingsGoal"`
	RecentTransactions []recentTransactionResponse `json:"recentTransactions"`
	MonthlyComparison  monthlyComparisonResponse   `json:"monthlyComparison"`
}

func toRecentTransactionResponse(t core.EnrichedTransaction) recentTransactionResponse {
	return recentTransactionResponse{
		ID:          t.ID,
		Description: t.Description,
		Amount:      t.Amount.Units(),
		Type:        string(t.Type),
		Date:        t.Date,
		Category:    t.Category,
		Account:     t.Account,
		Note:        t.Note,
	}
}

func toMetricComparisonResponse(m core.MetricComparison) metricComparisonResponse {
	return metricComparisonResponse{
		Current:  m.Current.Units(),
		Previous: m.Previous.Units(),
		Change:   m.ChangePercent,
	}
}

func toDashboardResponse(d core.Dashboard) dashboardResponse {
	recent := make([]recentTransactionResponse, 0, len(d.RecentTransactions))
	for _, t := range d.RecentTransactions {
		recent = append(recent, toRecentTransactionResponse(t))
	}
	return dashboardResponse{
		TotalBalance:    d.TotalBalance.Units(),
		MonthlyIncome:   d.MonthlyIncome.Units(),
		MonthlyExpenses: d.MonthlyExpenses.Units(),
		NetSavings:      d.NetSavings.Units(),
		SavingsGoal: savingsGoalResponse{
			Title:   d.SavingsGoal.Title,
			Target:  d.SavingsGoal.Target.Units(),
			Current: d.SavingsGoal.Current.Units(),
		},
		RecentTransactions: recent,
		MonthlyComparison: monthlyComparisonResponse{
			Income:   toMetricComparisonResponse(d.MonthlyComparison.Income),
			Expenses: toMetricComparisonResponse(d.MonthlyComparison.Expenses),
			Savings:  toMetricComparisonResponse(d.MonthlyComparison.Savings),
		},
	}
}
