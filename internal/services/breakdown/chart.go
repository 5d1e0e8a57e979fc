package breakdown

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/tally/internal/models"
)

// RenderPieChart renders a PNG pie chart from chart points, one slice per
// category in its own color. Slices are sized by absolute amount; zero
// slices are skipped. Returns raw PNG bytes.
func RenderPieChart(points []models.ChartPoint, title string) ([]byte, error) {
	values := make([]chart.Value, 0, len(points))
	for _, p := range points {
		amount := p.Amount.Abs()
		if amount.IsZero() {
			continue
		}
		f, _ := amount.Float64()
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s", p.Category.Name, p.Amount.StringFixed(2)),
			Value: f,
			Style: chart.Style{
				FillColor:   categoryColor(p.Category.Color),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1.5,
			},
		})
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("need at least 1 non-zero slice, got %d points", len(points))
	}

	graph := chart.PieChart{
		Title:  title,
		Width:  640,
		Height: 640,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		Values: values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}

// categoryColor maps a packed 0xRRGGBB category color to a drawing color.
func categoryColor(c int32) drawing.Color {
	if c == 0 {
		return drawing.ColorFromHex("9ca3af") // gray-400
	}
	return drawing.ColorFromHex(fmt.Sprintf("%06x", uint32(c)&0xFFFFFF))
}
