// Package breakdown builds parent/sub-category pie-chart breakdowns
package breakdown

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// Compile-time interface check
var _ interfaces.BreakdownBuilder = (*Service)(nil)

var hundred = decimal.NewFromInt(100)

// Service implements BreakdownBuilder
type Service struct {
	stats      interfaces.StatsAggregator
	categories interfaces.CategoryStore
	workers    int
	logger     *common.Logger
}

// NewService creates a new breakdown builder. workers bounds how many
// per-category stats computations run at once.
func NewService(stats interfaces.StatsAggregator, categories interfaces.CategoryStore, workers int, logger *common.Logger) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		stats:      stats,
		categories: categories,
		workers:    workers,
		logger:     logger,
	}
}

// categoryStats is one category with the stats of its own transactions.
type categoryStats struct {
	category     models.Category
	stats        models.Stats
	transactions []models.Transaction
}

// Build groups transactions by category, rolls sub-categories up into their
// parents and computes amounts and percentage shares for the given mode.
// Parents whose combined amount is zero are dropped, as are zero children.
// Parents are ordered by absolute combined amount, children by amount
// (absolute amount in balance mode), both descending. A zero denominator
// yields a 0% share.
func (s *Service) Build(ctx context.Context, input interfaces.BreakdownInput) ([]models.CategoryGroup, error) {
	perCategory, err := s.statsPerCategory(ctx, input)
	if err != nil {
		return nil, err
	}

	parents, children, err := s.groupByParent(ctx, perCategory)
	if err != nil {
		return nil, err
	}

	mode := input.Mode
	if !models.ValidBreakdownMode(mode) {
		mode = models.ModeExpense
	}
	grandTotal := input.Overall.AmountFor(mode)

	groups := make([]models.CategoryGroup, 0, len(parents))
	for _, pc := range parents {
		subs := children[pc.category.ID]

		own := pc.stats.AmountFor(mode)
		childrenTotal := decimal.Zero
		for _, sc := range subs {
			childrenTotal = childrenTotal.Add(sc.stats.AmountFor(mode))
		}
		combined := own.Add(childrenTotal)
		if combined.IsZero() {
			continue
		}

		parent := models.PieChartDataPoint{
			Category:                   pc.category,
			Amount:                     own,
			AmountWithChildren:         combined,
			PercentOfTotal:             percent(own, grandTotal),
			PercentOfTotalWithChildren: percent(combined, grandTotal),
			PercentShareWithinParent:   percent(own, combined),
			IsParentCategory:           true,
			Transactions:               pc.transactions,
		}

		points := make([]models.PieChartDataPoint, 0, len(subs))
		for _, sc := range subs {
			amount := sc.stats.AmountFor(mode)
			if amount.IsZero() {
				continue
			}
			points = append(points, models.PieChartDataPoint{
				Category:                   sc.category,
				Amount:                     amount,
				AmountWithChildren:         amount,
				PercentOfTotal:             percent(amount, grandTotal),
				PercentOfTotalWithChildren: percent(amount, grandTotal),
				PercentShareWithinParent:   percent(amount, combined),
				Transactions:               sc.transactions,
			})
		}
		sort.SliceStable(points, func(i, j int) bool {
			a, b := points[i].Amount, points[j].Amount
			if mode == models.ModeBalance {
				a, b = a.Abs(), b.Abs()
			}
			return a.GreaterThan(b)
		})

		groups = append(groups, models.CategoryGroup{Parent: parent, Children: points})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Parent.AmountWithChildren.Abs().GreaterThan(groups[j].Parent.AmountWithChildren.Abs())
	})

	return groups, nil
}

// statsPerCategory groups transactions under their breakdown category, in
// order of first appearance, and computes each group's stats concurrently.
func (s *Service) statsPerCategory(ctx context.Context, input interfaces.BreakdownInput) ([]*categoryStats, error) {
	var ordered []*categoryStats
	index := make(map[uuid.UUID]*categoryStats)
	for _, tx := range input.Transactions {
		cat := tx.BreakdownCategory()
		cs, ok := index[cat.ID]
		if !ok {
			cs = &categoryStats{category: cat}
			index[cat.ID] = cs
			ordered = append(ordered, cs)
		}
		cs.transactions = append(cs.transactions, tx)
	}

	currency := input.Currency
	if currency == "" {
		currency = input.Overall.CurrencyCode
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for _, cs := range ordered {
		eg.Go(func() error {
			st, err := s.stats.Aggregate(egctx, interfaces.StatsInput{
				Transactions:                  cs.transactions,
				Currency:                      currency,
				SelectedAccounts:              input.SelectedAccounts,
				TreatTransfersAsIncomeExpense: input.TreatTransfersAsIncomeExpense,
			})
			if err != nil {
				return fmt.Errorf("stats for category %s: %w", cs.category.ID, err)
			}
			cs.stats = st
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build category breakdown: %w", err)
	}
	return ordered, nil
}

// groupByParent keys every category under its parent (top-level categories
// under themselves). A parent with no transactions of its own gets a
// zero-stats placeholder resolved from the category store; when the parent
// cannot be resolved the whole group is dropped.
func (s *Service) groupByParent(ctx context.Context, perCategory []*categoryStats) ([]*categoryStats, map[uuid.UUID][]*categoryStats, error) {
	byID := make(map[uuid.UUID]*categoryStats, len(perCategory))
	for _, cs := range perCategory {
		byID[cs.category.ID] = cs
	}

	var parentIDs []uuid.UUID
	members := make(map[uuid.UUID][]*categoryStats)
	for _, cs := range perCategory {
		key := cs.category.ID
		if cs.category.ParentID != nil {
			key = *cs.category.ParentID
		}
		if _, ok := members[key]; !ok {
			parentIDs = append(parentIDs, key)
		}
		members[key] = append(members[key], cs)
	}

	var parents []*categoryStats
	children := make(map[uuid.UUID][]*categoryStats, len(parentIDs))
	for _, id := range parentIDs {
		parent, ok := byID[id]
		if !ok {
			cat, err := s.findCategory(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, fmt.Errorf("failed to resolve parent category: %w", ctx.Err())
				}
				s.logger.Warn().Err(err).Str("category_id", id.String()).Msg("Parent category lookup failed, dropping group")
				continue
			}
			if cat == nil {
				s.logger.Debug().Str("category_id", id.String()).Msg("Parent category not found, dropping group")
				continue
			}
			parent = &categoryStats{category: *cat, stats: models.EmptyStats()}
		}

		parents = append(parents, parent)
		for _, cs := range members[id] {
			if cs.category.ID != parent.category.ID {
				children[id] = append(children[id], cs)
			}
		}
	}
	return parents, children, nil
}

func (s *Service) findCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	if cat, ok := models.SyntheticCategory(id); ok {
		return &cat, nil
	}
	if s.categories == nil {
		return nil, nil
	}
	return s.categories.FindCategory(ctx, id)
}

// percent returns num/den as a percentage rounded to 2 decimals, or zero
// when den is zero.
func percent(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Mul(hundred).Round(2)
}
