package breakdown

import (
	"sort"

	"github.com/google/uuid"

	"github.com/bobmcallan/tally/internal/models"
)

// View is the presentation state laid over a built breakdown: the set of
// expanded parent categories and at most one selected category. Views are
// values; every change returns a new View.
type View struct {
	expanded models.CategoryIDSet
	selected *models.Category
}

// IsExpanded reports whether the category is expanded.
func (v View) IsExpanded(id uuid.UUID) bool {
	return v.expanded.Has(id)
}

// Selected returns the selected category, or nil.
func (v View) Selected() *models.Category {
	return v.selected
}

// Expanded returns the expanded category ids in no particular order.
func (v View) Expanded() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(v.expanded))
	for id := range v.expanded {
		out = append(out, id)
	}
	return out
}

// ToggleExpand returns a view with id's expansion flipped.
func (v View) ToggleExpand(id uuid.UUID) View {
	next := models.CategoryIDSet{}
	for k := range v.expanded {
		next[k] = struct{}{}
	}
	if next.Has(id) {
		delete(next, id)
	} else {
		next[id] = struct{}{}
	}
	return View{expanded: next, selected: v.selected}
}

// Select returns a view with category selected. Selecting the category that
// is already selected, or nil, clears the selection.
func (v View) Select(category *models.Category) View {
	next := View{expanded: v.expanded}
	if category == nil || (v.selected != nil && v.selected.ID == category.ID) {
		return next
	}
	c := *category
	next.selected = &c
	return next
}

// isSelected reports whether id is the selected category.
func (v View) isSelected(id uuid.UUID) bool {
	return v.selected != nil && v.selected.ID == id
}

// Apply stamps IsExpanded and IsSelected from view onto a copy of groups.
// When a category is selected, its parent group moves to the front and the
// selected child moves to the front of its siblings. Other order is kept.
func Apply(groups []models.CategoryGroup, view View) []models.CategoryGroup {
	out := make([]models.CategoryGroup, len(groups))
	for i, g := range groups {
		parent := g.Parent
		parent.IsExpanded = view.IsExpanded(parent.Category.ID)
		parent.IsSelected = view.isSelected(parent.Category.ID)

		children := make([]models.PieChartDataPoint, len(g.Children))
		for j, c := range g.Children {
			c.IsExpanded = view.IsExpanded(c.Category.ID)
			c.IsSelected = view.isSelected(c.Category.ID)
			children[j] = c
		}
		sort.SliceStable(children, func(a, b int) bool {
			return children[a].IsSelected && !children[b].IsSelected
		})

		out[i] = models.CategoryGroup{Parent: parent, Children: children}
	}

	if sel := view.selected; sel != nil {
		front := sel.ID
		if sel.ParentID != nil {
			front = *sel.ParentID
		}
		sort.SliceStable(out, func(a, b int) bool {
			return out[a].Parent.Category.ID == front && out[b].Parent.Category.ID != front
		})
	}
	return out
}

// Flatten lists each parent followed by its children when the parent is
// expanded.
func Flatten(groups []models.CategoryGroup) []models.PieChartDataPoint {
	var out []models.PieChartDataPoint
	for _, g := range groups {
		out = append(out, g.Parent)
		if g.Parent.IsExpanded {
			out = append(out, g.Children...)
		}
	}
	return out
}

// ChartPoints turns a flattened breakdown into drawable slices. An expanded
// parent contributes only its own amount since its children are drawn
// separately.
func ChartPoints(flat []models.PieChartDataPoint) []models.ChartPoint {
	out := make([]models.ChartPoint, 0, len(flat))
	for _, p := range flat {
		amount := p.AmountWithChildren
		if p.IsExpanded {
			amount = p.Amount
		}
		out = append(out, models.ChartPoint{Category: p.Category, Amount: amount})
	}
	return out
}
