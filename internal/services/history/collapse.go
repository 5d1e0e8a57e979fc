package history

import (
	"sort"
	"sync"

	"github.com/bobmcallan/tally/internal/models"
)

// CollapseState is an immutable set of collapsed dates. The zero value has
// nothing collapsed.
type CollapseState struct {
	dates map[models.Date]struct{}
}

// NewCollapseState returns a state with the given dates collapsed.
func NewCollapseState(dates ...models.Date) CollapseState {
	s := CollapseState{dates: make(map[models.Date]struct{}, len(dates))}
	for _, d := range dates {
		s.dates[d] = struct{}{}
	}
	return s
}

// Contains reports whether date is collapsed.
func (s CollapseState) Contains(date models.Date) bool {
	_, ok := s.dates[date]
	return ok
}

// Toggle returns a new state with date's membership flipped.
func (s CollapseState) Toggle(date models.Date) CollapseState {
	next := CollapseState{dates: make(map[models.Date]struct{}, len(s.dates)+1)}
	for d := range s.dates {
		next.dates[d] = struct{}{}
	}
	if _, ok := next.dates[date]; ok {
		delete(next.dates, date)
	} else {
		next.dates[date] = struct{}{}
	}
	return next
}

// Dates returns the collapsed dates, most recent first.
func (s CollapseState) Dates() []models.Date {
	out := make([]models.Date, 0, len(s.dates))
	for d := range s.dates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out
}

// Len returns the number of collapsed dates.
func (s CollapseState) Len() int {
	return len(s.dates)
}

// ApplyCollapse re-stamps every divider's Collapsed flag and every
// transaction's Hidden flag from state. Order and items are otherwise
// unchanged and seq is not modified.
func ApplyCollapse(state CollapseState, seq []models.GroupedTransaction) []models.GroupedTransaction {
	out := make([]models.GroupedTransaction, len(seq))
	for i, item := range seq {
		switch v := item.(type) {
		case models.DateDivider:
			v.Collapsed = state.Contains(v.Date)
			out[i] = v
		case models.ActualTransaction:
			v.Hidden = state.Contains(v.Date())
			out[i] = v
		default:
			out[i] = item
		}
	}
	return out
}

// Collapser owns a CollapseState for one session. Toggles are atomic
// read-modify-write updates.
type Collapser struct {
	mu    sync.Mutex
	state CollapseState
}

// NewCollapser returns a Collapser with nothing collapsed.
func NewCollapser() *Collapser {
	return &Collapser{state: NewCollapseState()}
}

// State returns the current collapse state.
func (c *Collapser) State() CollapseState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Toggle flips date and returns seq re-stamped with the new state.
func (c *Collapser) Toggle(date models.Date, seq []models.GroupedTransaction) []models.GroupedTransaction {
	c.mu.Lock()
	c.state = c.state.Toggle(date)
	state := c.state
	c.mu.Unlock()
	return ApplyCollapse(state, seq)
}

// Apply returns seq re-stamped with the current state.
func (c *Collapser) Apply(seq []models.GroupedTransaction) []models.GroupedTransaction {
	return ApplyCollapse(c.State(), seq)
}
