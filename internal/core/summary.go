package core

// PeriodSummary aggregates income, expenses and net savings over a
// closed date interval. Income and Expenses are non-negative;
// NetSavings may be negative.
type PeriodSummary struct {
	Income     Money
	Expenses   Money
	NetSavings Money
}

// Summarize classifies each transaction as income or expense and
// accumulates absolute amounts. The declared type wins over the amount
// sign: a transaction typed income with a negative amount still counts
// as income. The branches are mutually exclusive, so no transaction is
// ever double counted. A transfer with a positive amount falls through
// to the income branch; that precedence is part of the contract.
func Summarize(txs []Transaction) PeriodSummary {
	var income, expenses int64
	for _, t := range txs {
		if t.Type == TypeIncome || t.Amount.Cents > 0 {
			income += t.Amount.Abs().Cents
		} else if t.Type == TypeExpense || t.Amount.Cents < 0 {
			expenses += t.Amount.Abs().Cents
		}
	}
	return PeriodSummary{
		Income:     Money{Cents: income},
		Expenses:   Money{Cents: expenses},
		NetSavings: Money{Cents: income - expenses},
	}
}

// TotalBalance sums account balances with the type-dependent sign
// convention: credit accounts are liabilities and always reduce the
// total by abs(balance), regardless of the stored sign. Archived
// accounts contribute nothing.
func TotalBalance(accounts []Account) Money {
	var total int64
	for _, a := range accounts {
		if a.IsArchived {
			continue
		}
		if a.Type == AccountCredit {
			total -= a.Balance.Abs().Cents
		} else {
			total += a.Balance.Cents
		}
	}
	return Money{Cents: total}
}

// MetricComparison relates one metric's current value to the previous
// period's value.
type MetricComparison struct {
	Current       Money
	Previous      Money
	ChangePercent float64
}

// ChangePercent returns the relative change versus previous, in percent.
// A zero or negative previous value yields 0 so the result is never
// infinite or undefined. This understates change when a metric goes
// from zero to positive; that is the documented policy, not a defect.
func ChangePercent(current, previous Money) float64 {
	if previous.Cents <= 0 {
		return 0
	}
	return float64(current.Cents-previous.Cents) / float64(previous.Cents) * 100
}

// Compare builds a MetricComparison for one metric pair.
func Compare(current, previous Money) MetricComparison {
	return MetricComparison{
		Current:       current,
		Previous:      previous,
		ChangePercent: ChangePercent(current, previous),
	}
}

// MonthlyComparison covers the three dashboard metrics.
type MonthlyComparison struct {
	Income   MetricComparison
	Expenses MetricComparison
	Savings  MetricComparison
}

// CompareSummaries applies Compare metric-by-metric.
func CompareSummaries(current, previous PeriodSummary) MonthlyComparison {
	return MonthlyComparison{
		Income:   Compare(current.Income, previous.Income),
		Expenses: Compare(current.Expenses, previous.Expenses),
		Savings:  Compare(current.NetSavings, previous.NetSavings),
	}
}

// SavingsGoal is a target amount for a designated category compared
// against year-to-date contributions. Current is clamped at zero.
type SavingsGoal struct {
	Title   string
	Target  Money
	Current Money
}

// EnrichedTransaction is a transaction decorated with resolved account
// and category names for display, with a pre-formatted RFC-3339 date.
type EnrichedTransaction struct {
	ID          string
	Description string
	Amount      Money
	Type        TransactionType
	Date        string
	Category    string
	Account     string
	Note        string
}

// Dashboard is the aggregate view composed per request.
type Dashboard struct {
	TotalBalance       Money
	MonthlyIncome      Money
	MonthlyExpenses    Money
	NetSavings         Money
	SavingsGoal        SavingsGoal
	RecentTransactions []EnrichedTransaction
	MonthlyComparison  MonthlyComparison
}
