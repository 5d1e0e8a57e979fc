package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/stats"
)

// --- Mocks ---

type identityConverter struct{}

func (identityConverter) Exchange(_ context.Context, amount decimal.Decimal, from, to string) decimal.Decimal {
	if from == to {
		return amount
	}
	return decimal.Zero
}

var testAccount = models.Account{ID: uuid.New(), Name: "Checking", Currency: "USD"}

func at(day, hour int) *time.Time {
	t := time.Date(2024, 5, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func entry(typ models.TransactionType, amount string, when *time.Time) models.Transaction {
	a := decimal.RequireFromString(amount)
	return models.Transaction{
		ID:        uuid.New(),
		Amount:    a,
		ToAmount:  a,
		Type:      typ,
		DateTime:  when,
		AccountID: testAccount.ID,
		Account:   testAccount,
	}
}

func newTestGrouper() *Service {
	agg := stats.NewService(identityConverter{}, nil, "USD", common.NewSilentLogger())
	return NewService(agg, 4, common.NewSilentLogger())
}

func groupInput(txs ...models.Transaction) interfaces.HistoryInput {
	return interfaces.HistoryInput{
		Transactions:     txs,
		SelectedAccounts: []uuid.UUID{testAccount.ID},
	}
}

func TestGroup_OrdersDatesAndTransactionsDescending(t *testing.T) {
	a := entry(models.TxExpense, "10", at(1, 9))
	b := entry(models.TxExpense, "20", at(3, 8))
	c := entry(models.TxIncome, "30", at(3, 18))
	d := entry(models.TxExpense, "40", at(2, 12))

	seq, err := newTestGrouper().Group(context.Background(), groupInput(a, b, c, d))
	require.NoError(t, err)
	require.Len(t, seq, 7)

	div, ok := seq[0].(models.DateDivider)
	require.True(t, ok)
	assert.Equal(t, models.Date{Year: 2024, Month: time.May, Day: 3}, div.Date)
	assert.Equal(t, c.ID, seq[1].(models.ActualTransaction).Transaction.ID)
	assert.Equal(t, b.ID, seq[2].(models.ActualTransaction).Transaction.ID)

	assert.Equal(t, 2, seq[3].(models.DateDivider).Date.Day)
	assert.Equal(t, d.ID, seq[4].(models.ActualTransaction).Transaction.ID)
	assert.Equal(t, 1, seq[5].(models.DateDivider).Date.Day)
	assert.Equal(t, a.ID, seq[6].(models.ActualTransaction).Transaction.ID)

	assert.True(t, div.Stats.Income.Equal(decimal.NewFromInt(30)))
	assert.True(t, div.Stats.Expense.Equal(decimal.NewFromInt(20)))
	assert.False(t, div.Collapsed)
}

func TestGroup_DropsPlannedTransactions(t *testing.T) {
	planned := entry(models.TxExpense, "99", nil)
	planned.DueDate = at(20, 0)
	booked := entry(models.TxExpense, "1", at(4, 10))

	seq, err := newTestGrouper().Group(context.Background(), groupInput(planned, booked))
	require.NoError(t, err)
	require.Len(t, seq, 2)
	assert.Equal(t, booked.ID, seq[1].(models.ActualTransaction).Transaction.ID)
}

func TestGroup_StableForEqualTimestamps(t *testing.T) {
	when := at(7, 12)
	first := entry(models.TxExpense, "1", when)
	second := entry(models.TxExpense, "2", when)
	third := entry(models.TxExpense, "3", when)

	seq, err := newTestGrouper().Group(context.Background(), groupInput(first, second, third))
	require.NoError(t, err)
	require.Len(t, seq, 4)
	assert.Equal(t, first.ID, seq[1].(models.ActualTransaction).Transaction.ID)
	assert.Equal(t, second.ID, seq[2].(models.ActualTransaction).Transaction.ID)
	assert.Equal(t, third.ID, seq[3].(models.ActualTransaction).Transaction.ID)
}

func TestGroup_UsesTimestampLocation(t *testing.T) {
	tz := time.FixedZone("UTC+10", 10*3600)
	// 2024-05-09 22:00 UTC is already 2024-05-10 in UTC+10.
	local := time.Date(2024, 5, 9, 22, 0, 0, 0, time.UTC).In(tz)

	seq, err := newTestGrouper().Group(context.Background(), groupInput(entry(models.TxExpense, "5", &local)))
	require.NoError(t, err)
	assert.Equal(t, 10, seq[0].(models.DateDivider).Date.Day)
}

func TestGroup_ConservesTotals(t *testing.T) {
	txs := []models.Transaction{
		entry(models.TxIncome, "100.10", at(1, 9)),
		entry(models.TxIncome, "0.20", at(1, 10)),
		entry(models.TxExpense, "33.33", at(2, 11)),
		entry(models.TxIncome, "7.77", at(3, 12)),
		entry(models.TxExpense, "12.50", at(3, 13)),
		entry(models.TxIncome, "55", at(5, 14)),
	}

	agg := stats.NewService(identityConverter{}, nil, "USD", common.NewSilentLogger())
	overall, err := agg.Aggregate(context.Background(), interfaces.StatsInput{
		Transactions:     txs,
		SelectedAccounts: []uuid.UUID{testAccount.ID},
	})
	require.NoError(t, err)

	seq, err := NewService(agg, 2, common.NewSilentLogger()).Group(context.Background(), groupInput(txs...))
	require.NoError(t, err)

	income, expense := decimal.Zero, decimal.Zero
	rows := 0
	for _, item := range seq {
		switch v := item.(type) {
		case models.DateDivider:
			income = income.Add(v.Stats.TotalIncome())
			expense = expense.Add(v.Stats.TotalExpense())
		case models.ActualTransaction:
			rows++
		}
	}
	assert.Equal(t, len(txs), rows)
	assert.True(t, income.Equal(overall.TotalIncome()), "%s != %s", income, overall.TotalIncome())
	assert.True(t, expense.Equal(overall.TotalExpense()), "%s != %s", expense, overall.TotalExpense())
}

func TestGroup_Empty(t *testing.T) {
	seq, err := newTestGrouper().Group(context.Background(), groupInput())
	require.NoError(t, err)
	assert.Empty(t, seq)
}

func TestGroup_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestGrouper().Group(ctx, groupInput(entry(models.TxExpense, "1", at(1, 1))))
	assert.ErrorIs(t, err, context.Canceled)
}
