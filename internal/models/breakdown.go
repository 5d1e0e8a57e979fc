package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PieChartDataPoint is one category slice of a breakdown.
// IsExpanded and IsSelected are presentation overlays stamped after the
// breakdown is built.
type PieChartDataPoint struct {
	Category                   Category        `json:"category"`
	Amount                     decimal.Decimal `json:"amount"`
	AmountWithChildren         decimal.Decimal `json:"amount_with_children"`
	PercentOfTotal             decimal.Decimal `json:"percent_of_total"`
	PercentOfTotalWithChildren decimal.Decimal `json:"percent_of_total_with_children"`
	PercentShareWithinParent   decimal.Decimal `json:"percent_share_within_parent"`
	IsParentCategory           bool            `json:"is_parent_category"`
	IsExpanded                 bool            `json:"is_expanded"`
	IsSelected                 bool            `json:"is_selected"`
	Transactions               []Transaction   `json:"-"`
}

// CategoryGroup is a parent category point with its sub-category points, in
// breakdown order.
type CategoryGroup struct {
	Parent   PieChartDataPoint   `json:"parent"`
	Children []PieChartDataPoint `json:"children"`
}

// ChartPoint is a single pie-chart slice as drawn.
type ChartPoint struct {
	Category Category        `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// CategoryIDSet is a set of category identities.
type CategoryIDSet map[uuid.UUID]struct{}

// Has reports membership.
func (s CategoryIDSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}
