package models

import "github.com/shopspring/decimal"

// Stats holds currency-normalized income/expense/transfer totals for a set of
// transactions. It is recomputed on demand and never persisted.
type Stats struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`

	IncomeCount  int `json:"income_count"`
	ExpenseCount int `json:"expense_count"`

	TransfersIncome  decimal.Decimal `json:"transfers_income"`
	TransfersExpense decimal.Decimal `json:"transfers_expense"`

	TransfersIncomeCount  int `json:"transfers_income_count"`
	TransfersExpenseCount int `json:"transfers_expense_count"`

	TreatTransfersAsIncomeExpense bool   `json:"treat_transfers_as_income_expense"`
	CurrencyCode                  string `json:"currency_code"`
}

// TotalIncome is Income plus incoming transfers when transfers are treated as income.
func (s Stats) TotalIncome() decimal.Decimal {
	if s.TreatTransfersAsIncomeExpense {
		return s.Income.Add(s.TransfersIncome)
	}
	return s.Income
}

// TotalExpense is Expense plus outgoing transfers when transfers are treated as expense.
func (s Stats) TotalExpense() decimal.Decimal {
	if s.TreatTransfersAsIncomeExpense {
		return s.Expense.Add(s.TransfersExpense)
	}
	return s.Expense
}

func (s Stats) TotalIncomeCount() int {
	if s.TreatTransfersAsIncomeExpense {
		return s.IncomeCount + s.TransfersIncomeCount
	}
	return s.IncomeCount
}

func (s Stats) TotalExpenseCount() int {
	if s.TreatTransfersAsIncomeExpense {
		return s.ExpenseCount + s.TransfersExpenseCount
	}
	return s.ExpenseCount
}

// Balance is TotalIncome minus TotalExpense.
func (s Stats) Balance() decimal.Decimal {
	return s.TotalIncome().Sub(s.TotalExpense())
}

// AmountFor selects the amount accessor matching a breakdown mode.
func (s Stats) AmountFor(mode BreakdownMode) decimal.Decimal {
	switch mode {
	case ModeIncome:
		return s.TotalIncome()
	case ModeBalance:
		return s.Balance()
	default:
		return s.TotalExpense()
	}
}

// EmptyStats returns zeroed stats.
func EmptyStats() Stats {
	return Stats{
		Income:           decimal.Zero,
		Expense:          decimal.Zero,
		TransfersIncome:  decimal.Zero,
		TransfersExpense: decimal.Zero,
	}
}

// BreakdownMode selects which Stats amount category breakdowns are built from.
type BreakdownMode string

const (
	ModeIncome  BreakdownMode = "income"
	ModeExpense BreakdownMode = "expense"
	ModeBalance BreakdownMode = "balance"
)

// ValidBreakdownMode returns true if m is a known mode.
func ValidBreakdownMode(m BreakdownMode) bool {
	switch m {
	case ModeIncome, ModeExpense, ModeBalance:
		return true
	}
	return false
}
