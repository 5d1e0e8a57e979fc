package breakdown

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/models"
)

func sampleGroups(t *testing.T) []models.CategoryGroup {
	t.Helper()
	f := newFixture()
	return f.build(t, models.ModeExpense,
		spend(models.TxExpense, "900", &rent),
		spend(models.TxExpense, "20", &food),
		spend(models.TxExpense, "50", &grocer),
		spend(models.TxExpense, "5", &dining),
	)
}

func TestView_ToggleExpandRoundTrip(t *testing.T) {
	var v View
	v = v.ToggleExpand(food.ID)
	assert.True(t, v.IsExpanded(food.ID))
	v = v.ToggleExpand(food.ID)
	assert.False(t, v.IsExpanded(food.ID))
	assert.Empty(t, v.Expanded())
}

func TestView_ToggleExpandDoesNotMutateOriginal(t *testing.T) {
	base := View{}.ToggleExpand(rent.ID)
	next := base.ToggleExpand(food.ID)
	assert.False(t, base.IsExpanded(food.ID))
	assert.True(t, next.IsExpanded(food.ID))
	assert.True(t, next.IsExpanded(rent.ID))
}

func TestView_SelectTogglesOff(t *testing.T) {
	v := View{}.Select(&dining)
	require.NotNil(t, v.Selected())
	assert.Equal(t, dining.ID, v.Selected().ID)

	v = v.Select(&dining)
	assert.Nil(t, v.Selected())

	v = v.Select(&rent).Select(nil)
	assert.Nil(t, v.Selected())
}

func TestApply_StampsExpandedAndSelected(t *testing.T) {
	groups := sampleGroups(t)
	view := View{}.ToggleExpand(food.ID).Select(&rent)

	out := Apply(groups, view)
	require.Len(t, out, 2)
	assert.Equal(t, rent.ID, out[0].Parent.Category.ID)
	assert.True(t, out[0].Parent.IsSelected)
	assert.False(t, out[0].Parent.IsExpanded)
	assert.True(t, out[1].Parent.IsExpanded)
	assert.False(t, out[1].Parent.IsSelected)

	// input untouched
	assert.False(t, groups[1].Parent.IsExpanded)
}

func TestApply_SelectedChildMovesParentAndChildFirst(t *testing.T) {
	groups := sampleGroups(t)
	require.Equal(t, rent.ID, groups[0].Parent.Category.ID)
	require.Equal(t, grocer.ID, groups[1].Children[0].Category.ID)

	out := Apply(groups, View{}.ToggleExpand(food.ID).Select(&dining))
	assert.Equal(t, food.ID, out[0].Parent.Category.ID)
	assert.Equal(t, rent.ID, out[1].Parent.Category.ID)
	require.Len(t, out[0].Children, 2)
	assert.Equal(t, dining.ID, out[0].Children[0].Category.ID)
	assert.True(t, out[0].Children[0].IsSelected)
	assert.Equal(t, grocer.ID, out[0].Children[1].Category.ID)
}

func TestApply_ClearingSelectionKeepsBuiltOrder(t *testing.T) {
	groups := sampleGroups(t)
	view := View{}.Select(&food).Select(&food)
	out := Apply(groups, view)
	assert.Equal(t, rent.ID, out[0].Parent.Category.ID)
	for _, g := range out {
		assert.False(t, g.Parent.IsSelected)
	}
}

func TestFlattenAndChartPoints(t *testing.T) {
	groups := sampleGroups(t)

	collapsed := Flatten(Apply(groups, View{}))
	require.Len(t, collapsed, 2)
	points := ChartPoints(collapsed)
	assert.True(t, points[1].Amount.Equal(dec("75")), "food with children %s", points[1].Amount)

	expanded := Flatten(Apply(groups, View{}.ToggleExpand(food.ID)))
	require.Len(t, expanded, 4)
	assert.Equal(t, food.ID, expanded[1].Category.ID)
	assert.Equal(t, grocer.ID, expanded[2].Category.ID)
	assert.Equal(t, dining.ID, expanded[3].Category.ID)

	points = ChartPoints(expanded)
	assert.True(t, points[1].Amount.Equal(dec("20")), "expanded food own %s", points[1].Amount)
	total := points[1].Amount.Add(points[2].Amount).Add(points[3].Amount)
	assert.True(t, total.Equal(dec("75")))
}

func TestRenderPieChart(t *testing.T) {
	groups := sampleGroups(t)
	png, err := RenderPieChart(ChartPoints(Flatten(Apply(groups, View{}))), "Expenses")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestRenderPieChart_NoSlices(t *testing.T) {
	_, err := RenderPieChart(nil, "Empty")
	assert.Error(t, err)
}
