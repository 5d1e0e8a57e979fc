package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/breakdown"
	"github.com/bobmcallan/tally/internal/services/history"
)

var (
	// ErrSuperseded is returned by a Run that a newer Run replaced before it
	// could publish its result.
	ErrSuperseded = errors.New("report request superseded")

	// ErrNoReport is returned when a view operation needs a breakdown and
	// none has been built yet.
	ErrNoReport = errors.New("no category breakdown built yet")
)

// Session holds the report state of one screen: the last published report,
// collapsed history dates and the breakdown view. Only the most recent Run
// publishes; earlier in-flight runs are cancelled.
type Session struct {
	ledger    interfaces.LedgerResolver
	converter interfaces.ExchangeConverter
	stats     interfaces.StatsAggregator
	history   interfaces.HistoryGrouper
	breakdown interfaces.BreakdownBuilder
	logger    *common.Logger

	collapser *history.Collapser

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	report     *models.Report
	rawHistory []models.GroupedTransaction
	rawGroups  []models.CategoryGroup
	view       breakdown.View
}

// NewSession creates an empty session.
func NewSession(
	ledger interfaces.LedgerResolver,
	converter interfaces.ExchangeConverter,
	stats interfaces.StatsAggregator,
	grouper interfaces.HistoryGrouper,
	builder interfaces.BreakdownBuilder,
	logger *common.Logger,
) *Session {
	return &Session{
		ledger:    ledger,
		converter: converter,
		stats:     stats,
		history:   grouper,
		breakdown: builder,
		logger:    logger,
		collapser: history.NewCollapser(),
	}
}

// Run loads, filters and aggregates the ledger for filter and publishes the
// result. Starting a Run cancels any Run still in flight; a run replaced that
// way returns ErrSuperseded and leaves the published state untouched.
func (s *Session) Run(ctx context.Context, filter Filter) (*models.Report, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	runCtx, gen, cancel := s.begin(ctx)
	defer cancel()

	start := time.Now()
	computed, hist, groups, err := s.compute(runCtx, filter)
	if err != nil {
		if !s.isCurrent(gen) {
			return nil, ErrSuperseded
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Debug().Uint64("generation", gen).Msg("Discarding superseded report")
		return nil, ErrSuperseded
	}
	s.report = computed
	s.rawHistory = hist
	s.rawGroups = groups

	s.logger.Debug().
		Int("transactions", computed.Count).
		Int("issues", len(computed.Issues)).
		Dur("elapsed", time.Since(start)).
		Msg("Report published")

	return s.displayLocked(), nil
}

// Report returns the last published report with the current collapse and
// breakdown view applied.
func (s *Session) Report() (*models.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return nil, false
	}
	return s.displayLocked(), true
}

// ComputeStats aggregates totals for the given transactions.
func (s *Session) ComputeStats(ctx context.Context, input interfaces.StatsInput) (models.Stats, error) {
	return s.stats.Aggregate(ctx, input)
}

// GroupForHistory builds the date-grouped history, keeps it as the session
// history and returns it with collapsed dates hidden.
func (s *Session) GroupForHistory(ctx context.Context, input interfaces.HistoryInput) ([]models.GroupedTransaction, error) {
	hist, err := s.history.Group(ctx, input)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.rawHistory = hist
	s.mu.Unlock()
	return s.collapser.Apply(hist), nil
}

// ToggleDateCollapse flips the collapsed state of date and returns the
// session history with the new state applied.
func (s *Session) ToggleDateCollapse(date models.Date) []models.GroupedTransaction {
	s.mu.Lock()
	hist := s.rawHistory
	s.mu.Unlock()
	return s.collapser.Toggle(date, hist)
}

// CollapsedDates lists the collapsed dates, most recent first.
func (s *Session) CollapsedDates() []models.Date {
	return s.collapser.State().Dates()
}

// BuildCategoryBreakdown builds the breakdown, keeps it as the session
// breakdown and returns it with the current view applied.
func (s *Session) BuildCategoryBreakdown(ctx context.Context, input interfaces.BreakdownInput) ([]models.CategoryGroup, error) {
	groups, err := s.breakdown.Build(ctx, input)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawGroups = groups
	return breakdown.Apply(groups, s.view), nil
}

// ToggleCategoryExpand expands or collapses a parent category.
func (s *Session) ToggleCategoryExpand(id uuid.UUID) []models.CategoryGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = s.view.ToggleExpand(id)
	return breakdown.Apply(s.rawGroups, s.view)
}

// SelectCategory selects a category. Selecting the selected category, or
// nil, clears the selection.
func (s *Session) SelectCategory(category *models.Category) []models.CategoryGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = s.view.Select(category)
	return breakdown.Apply(s.rawGroups, s.view)
}

// Chart renders the visible breakdown slices as a PNG pie chart.
func (s *Session) Chart() ([]byte, error) {
	s.mu.Lock()
	if s.rawGroups == nil {
		s.mu.Unlock()
		return nil, ErrNoReport
	}
	groups := breakdown.Apply(s.rawGroups, s.view)
	title := ""
	if s.report != nil {
		title = strings.TrimSpace(fmt.Sprintf("%s %s", s.report.Mode, s.report.Currency))
	}
	s.mu.Unlock()

	return breakdown.RenderPieChart(breakdown.ChartPoints(breakdown.Flatten(groups)), title)
}

func (s *Session) begin(ctx context.Context) (context.Context, uint64, context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.generation++
	s.cancel = cancel
	return runCtx, s.generation, cancel
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

func (s *Session) compute(ctx context.Context, filter Filter) (*models.Report, []models.GroupedTransaction, []models.CategoryGroup, error) {
	var (
		set *models.TransactionSet
		err error
	)
	if filter.From != nil && filter.To != nil {
		set, err = s.ledger.LoadRange(ctx, *filter.From, *filter.To)
	} else {
		set, err = s.ledger.LoadAll(ctx)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	base := s.stats.BaseCurrency(ctx)
	txs, err := filter.Apply(ctx, s.converter, base, set.Transactions)
	if err != nil {
		return nil, nil, nil, err
	}

	overall, err := s.stats.Aggregate(ctx, interfaces.StatsInput{
		Transactions:                  txs,
		Currency:                      filter.Currency,
		SelectedAccounts:              filter.AccountIDs,
		TreatTransfersAsIncomeExpense: filter.TreatTransfersAsIncomeExpense,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	var (
		hist   []models.GroupedTransaction
		groups []models.CategoryGroup
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hist, err = s.history.Group(gctx, interfaces.HistoryInput{
			Transactions:                  txs,
			Currency:                      filter.Currency,
			SelectedAccounts:              filter.AccountIDs,
			TreatTransfersAsIncomeExpense: filter.TreatTransfersAsIncomeExpense,
		})
		if err != nil {
			return fmt.Errorf("failed to group history: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		groups, err = s.breakdown.Build(gctx, interfaces.BreakdownInput{
			Transactions:                  txs,
			Currency:                      filter.Currency,
			SelectedAccounts:              filter.AccountIDs,
			TreatTransfersAsIncomeExpense: filter.TreatTransfersAsIncomeExpense,
			Overall:                       overall,
			Mode:                          filter.BreakdownMode(),
		})
		if err != nil {
			return fmt.Errorf("failed to build breakdown: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	return &models.Report{
		Stats:    overall,
		Issues:   set.Issues,
		Count:    len(txs),
		Currency: overall.CurrencyCode,
		Mode:     filter.BreakdownMode(),
	}, hist, groups, nil
}

// displayLocked copies the published report with overlays applied. Callers
// hold s.mu.
func (s *Session) displayLocked() *models.Report {
	out := *s.report
	out.History = s.collapser.Apply(s.rawHistory)
	out.Breakdown = breakdown.Apply(s.rawGroups, s.view)
	return &out
}
