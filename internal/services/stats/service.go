// Package stats computes currency-normalized income, expense and transfer totals
package stats

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// Compile-time interface check
var _ interfaces.StatsAggregator = (*Service)(nil)

// Service implements StatsAggregator
type Service struct {
	converter    interfaces.ExchangeConverter
	settings     interfaces.SettingsStore
	baseCurrency string
	logger       *common.Logger
}

// NewService creates a new stats aggregator. baseCurrency is used when the
// settings store has no base currency of its own.
func NewService(converter interfaces.ExchangeConverter, settings interfaces.SettingsStore, baseCurrency string, logger *common.Logger) *Service {
	return &Service{
		converter:    converter,
		settings:     settings,
		baseCurrency: strings.ToUpper(baseCurrency),
		logger:       logger,
	}
}

// BaseCurrency returns the stored base currency, falling back to the
// configured one when none is stored or the lookup fails.
func (s *Service) BaseCurrency(ctx context.Context) string {
	if s.settings == nil {
		return s.baseCurrency
	}
	base, err := s.settings.BaseCurrency(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("fallback", s.baseCurrency).Msg("Failed to read base currency")
		return s.baseCurrency
	}
	if base == "" {
		return s.baseCurrency
	}
	return base
}

// Aggregate partitions transactions by type and sums each bucket converted
// into the target currency (the override, or the base currency). Transfers
// count as incoming only when their destination account is selected, and
// as outgoing only when their source account is selected. Totals are rounded
// to 2 decimals after summation. The only error returned is cancellation.
func (s *Service) Aggregate(ctx context.Context, input interfaces.StatsInput) (models.Stats, error) {
	base := s.BaseCurrency(ctx)
	target := base
	if input.Currency != "" {
		target = strings.ToUpper(input.Currency)
	}

	selected := make(map[uuid.UUID]bool, len(input.SelectedAccounts))
	for _, id := range input.SelectedAccounts {
		selected[id] = true
	}

	var income, expense, transfers []models.Transaction
	for _, tx := range input.Transactions {
		switch tx.Type {
		case models.TxIncome:
			income = append(income, tx)
		case models.TxExpense:
			expense = append(expense, tx)
		case models.TxTransfer:
			transfers = append(transfers, tx)
		}
	}

	result := models.EmptyStats()
	result.TreatTransfersAsIncomeExpense = input.TreatTransfersAsIncomeExpense
	result.CurrencyCode = target
	result.IncomeCount = len(income)
	result.ExpenseCount = len(expense)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sum, _, err := s.sum(gctx, income, base, target, sourceLeg(nil))
		result.Income = sum
		return err
	})
	g.Go(func() error {
		sum, _, err := s.sum(gctx, expense, base, target, sourceLeg(nil))
		result.Expense = sum
		return err
	})
	g.Go(func() error {
		sum, n, err := s.sum(gctx, transfers, base, target, destinationLeg(selected))
		result.TransfersIncome, result.TransfersIncomeCount = sum, n
		return err
	})
	g.Go(func() error {
		sum, n, err := s.sum(gctx, transfers, base, target, sourceLeg(selected))
		result.TransfersExpense, result.TransfersExpenseCount = sum, n
		return err
	})

	if err := g.Wait(); err != nil {
		return models.Stats{}, fmt.Errorf("failed to aggregate stats: %w", err)
	}
	return result, nil
}

// leg picks the amount and currency a transaction contributes to a bucket,
// reporting false when it does not contribute.
type leg func(tx models.Transaction, base string) (decimal.Decimal, string, bool)

// sourceLeg uses the amount in the source account's currency. A nil
// selection accepts every transaction.
func sourceLeg(selected map[uuid.UUID]bool) leg {
	return func(tx models.Transaction, base string) (decimal.Decimal, string, bool) {
		if selected != nil && !selected[tx.Account.ID] {
			return decimal.Zero, "", false
		}
		return tx.Amount, tx.Account.EffectiveCurrency(base), true
	}
}

// destinationLeg uses the destination amount in the destination account's
// currency. Transfers without a destination account never contribute.
func destinationLeg(selected map[uuid.UUID]bool) leg {
	return func(tx models.Transaction, base string) (decimal.Decimal, string, bool) {
		if tx.ToAccount == nil || !selected[tx.ToAccount.ID] {
			return decimal.Zero, "", false
		}
		return tx.ToAmount, tx.ToAccount.EffectiveCurrency(base), true
	}
}

func (s *Service) sum(ctx context.Context, txs []models.Transaction, base, target string, pick leg) (decimal.Decimal, int, error) {
	total := decimal.Zero
	count := 0
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, 0, err
		}
		amount, currency, ok := pick(tx, base)
		if !ok {
			continue
		}
		total = total.Add(s.converter.Exchange(ctx, amount, currency, target))
		count++
	}
	return total.Round(2), count, nil
}
