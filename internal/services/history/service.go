// Package history builds the date-grouped transaction history and its
// collapse state
package history

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// Compile-time interface check
var _ interfaces.HistoryGrouper = (*Service)(nil)

// Service implements HistoryGrouper
type Service struct {
	stats   interfaces.StatsAggregator
	workers int
	logger  *common.Logger
}

// NewService creates a new history grouper. workers bounds how many per-date
// stats computations run at once.
func NewService(stats interfaces.StatsAggregator, workers int, logger *common.Logger) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		stats:   stats,
		workers: workers,
		logger:  logger,
	}
}

// dateGroup is the transactions of one calendar date in display order.
type dateGroup struct {
	date  models.Date
	txs   []models.Transaction
	stats models.Stats
}

// Group drops planned transactions, orders the rest most recent first and
// emits a DateDivider with that day's stats ahead of each day's
// transactions. Dates are taken in each timestamp's own location. The
// result carries no collapse state; use ApplyCollapse for that.
func (s *Service) Group(ctx context.Context, input interfaces.HistoryInput) ([]models.GroupedTransaction, error) {
	actual := make([]models.Transaction, 0, len(input.Transactions))
	for _, tx := range input.Transactions {
		if tx.IsPlanned() {
			continue
		}
		actual = append(actual, tx)
	}

	sort.SliceStable(actual, func(i, j int) bool {
		return actual[i].DateTime.After(*actual[j].DateTime)
	})

	var groups []*dateGroup
	index := make(map[models.Date]*dateGroup)
	for _, tx := range actual {
		d := models.DateOf(*tx.DateTime)
		g, ok := index[d]
		if !ok {
			g = &dateGroup{date: d}
			index[d] = g
			groups = append(groups, g)
		}
		g.txs = append(g.txs, tx)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].date.After(groups[j].date)
	})

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for _, g := range groups {
		eg.Go(func() error {
			st, err := s.stats.Aggregate(egctx, interfaces.StatsInput{
				Transactions:                  g.txs,
				Currency:                      input.Currency,
				SelectedAccounts:              input.SelectedAccounts,
				TreatTransfersAsIncomeExpense: input.TreatTransfersAsIncomeExpense,
			})
			if err != nil {
				return fmt.Errorf("stats for %s: %w", g.date, err)
			}
			g.stats = st
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to group history: %w", err)
	}

	out := make([]models.GroupedTransaction, 0, len(groups)+len(actual))
	for _, g := range groups {
		out = append(out, models.DateDivider{Date: g.date, Stats: g.stats})
		for _, tx := range g.txs {
			out = append(out, models.ActualTransaction{Transaction: tx})
		}
	}

	s.logger.Debug().
		Int("transactions", len(actual)).
		Int("dates", len(groups)).
		Msg("Grouped transaction history")

	return out, nil
}
