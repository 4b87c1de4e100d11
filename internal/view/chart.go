package view

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hephaex/Barami/pkg/models"
)

const chartPadding = 32

type ChartLabel struct {
	X    float64
	Text string
}

// Chart is an SVG area chart of daily crawl totals with the success count
// drawn as a line over it.
type Chart struct {
	Width       int
	Height      int
	Baseline    float64
	LabelY      float64
	TotalArea   string
	TotalLine   string
	SuccessLine string
	Max         int
	Labels      []ChartLabel
	Empty       bool
}

// DailyChart lays out stats oldest first. The input slice is not modified.
func DailyChart(stats []models.DailyStats, width, height int) Chart {
	c := Chart{Width: width, Height: height, Baseline: float64(height - chartPadding)}
	c.LabelY = c.Baseline + 20
	if len(stats) == 0 {
		c.Empty = true
		return c
	}

	days := make([]models.DailyStats, len(stats))
	copy(days, stats)
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date < days[j].Date })

	for _, d := range days {
		if d.Count > c.Max {
			c.Max = d.Count
		}
		if d.SuccessCount > c.Max {
			c.Max = d.SuccessCount
		}
	}
	scale := 1.0
	plotHeight := float64(height - 2*chartPadding)
	if c.Max > 0 {
		scale = plotHeight / float64(c.Max)
	}

	plotWidth := float64(width - 2*chartPadding)
	x := func(i int) float64 {
		if len(days) == 1 {
			return float64(chartPadding) + plotWidth/2
		}
		return float64(chartPadding) + plotWidth*float64(i)/float64(len(days)-1)
	}
	y := func(v int) float64 {
		return c.Baseline - float64(v)*scale
	}

	var total, success []string
	for i, d := range days {
		total = append(total, point(x(i), y(d.Count)))
		success = append(success, point(x(i), y(d.SuccessCount)))
	}

	c.TotalLine = "M" + strings.Join(total, " L")
	c.SuccessLine = "M" + strings.Join(success, " L")
	c.TotalArea = fmt.Sprintf("M%s L%s L%s Z",
		point(x(0), c.Baseline),
		strings.Join(total, " L"),
		point(x(len(days)-1), c.Baseline),
	)

	step := 1
	if len(days) > 6 {
		step = (len(days) + 5) / 6
	}
	for i := 0; i < len(days); i += step {
		c.Labels = append(c.Labels, ChartLabel{X: x(i), Text: shortDate(days[i].Date)})
	}
	return c
}

func point(x, y float64) string {
	return fmt.Sprintf("%.1f,%.1f", x, y)
}

// shortDate turns 2024-01-31 into 01-31.
func shortDate(date string) string {
	if len(date) == len("2006-01-02") {
		return date[5:]
	}
	return date
}
