package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tally/internal/models"
)

// ExchangeConverter converts amounts between currencies using stored rates
type ExchangeConverter interface {
	// Exchange converts amount from one currency to another. A missing or
	// zero rate yields zero rather than an error.
	Exchange(ctx context.Context, amount decimal.Decimal, from, to string) decimal.Decimal
}

// StatsAggregator computes income/expense/transfer totals
type StatsAggregator interface {
	Aggregate(ctx context.Context, input StatsInput) (models.Stats, error)

	// BaseCurrency returns the currency totals are normalized into when no
	// override is given.
	BaseCurrency(ctx context.Context) string
}

// StatsInput configures a stats aggregation
type StatsInput struct {
	Transactions []models.Transaction
	// Currency overrides the stored base currency when set.
	Currency                      string
	SelectedAccounts              []uuid.UUID
	TreatTransfersAsIncomeExpense bool
}

// HistoryGrouper builds the date-grouped transaction history
type HistoryGrouper interface {
	Group(ctx context.Context, input HistoryInput) ([]models.GroupedTransaction, error)
}

// HistoryInput configures history grouping
type HistoryInput struct {
	Transactions                  []models.Transaction
	Currency                      string
	SelectedAccounts              []uuid.UUID
	TreatTransfersAsIncomeExpense bool
}

// BreakdownBuilder builds the parent/sub-category pie-chart breakdown
type BreakdownBuilder interface {
	Build(ctx context.Context, input BreakdownInput) ([]models.CategoryGroup, error)
}

// BreakdownInput configures a category breakdown
type BreakdownInput struct {
	Transactions                  []models.Transaction
	Currency                      string
	SelectedAccounts              []uuid.UUID
	TreatTransfersAsIncomeExpense bool
	Overall                       models.Stats
	Mode                          models.BreakdownMode
}

// LedgerResolver turns stored records into resolved transaction snapshots
type LedgerResolver interface {
	// LoadAll resolves every stored transaction.
	LoadAll(ctx context.Context) (*models.TransactionSet, error)

	// LoadRange resolves transactions whose timestamp or due date lies in
	// [start, end].
	LoadRange(ctx context.Context, start, end time.Time) (*models.TransactionSet, error)
}
