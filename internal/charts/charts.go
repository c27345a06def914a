// Package charts renders the dashboard views as SVG.
package charts

import (
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"carsales-dashboard/internal/models"
	"carsales-dashboard/internal/services"
)

const (
	width  = 640
	height = 400
)

// Names of the renderable charts.
const (
	Yearly  = "yearly"
	Monthly = "monthly"
	Scatter = "scatter"
	Pie     = "pie"
)

func Names() []string {
	return []string{Yearly, Monthly, Scatter, Pie}
}

// Render writes chart name for frame to w. Unknown names return an error
// before anything is written.
func Render(w io.Writer, name string, frame services.Frame) error {
	var r func(io.Writer, services.Frame) error
	switch name {
	case Yearly:
		r = renderYearly
	case Monthly:
		r = renderMonthly
	case Scatter:
		r = renderScatter
	case Pie:
		r = renderPie
	default:
		return fmt.Errorf("unknown chart %q", name)
	}
	return r(w, frame)
}

type theme struct {
	bg, fg, grid drawing.Color
}

func themeOf(h services.Hints) theme {
	return theme{bg: hexColor(h.Background), fg: hexColor(h.Foreground), grid: hexColor(h.Grid)}
}

func (t theme) background() chart.Style {
	return chart.Style{FillColor: t.bg, FontColor: t.fg, Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}}
}

func (t theme) axis() chart.Style {
	return chart.Style{FontColor: t.fg, StrokeColor: t.fg}
}

func (t theme) gridStyle() chart.Style {
	return chart.Style{StrokeColor: t.grid, StrokeWidth: 1}
}

func monthTicks() []chart.Tick {
	ticks := make([]chart.Tick, models.MonthsPerYear)
	for i, name := range models.MonthNames() {
		ticks[i] = chart.Tick{Value: float64(i), Label: name[:3]}
	}
	return ticks
}

func countRange(max int) *chart.ContinuousRange {
	if max < 1 {
		max = 1
	}
	return &chart.ContinuousRange{Min: 0, Max: float64(max)}
}

func renderYearly(w io.Writer, f services.Frame) error {
	t := themeOf(f.Hints)
	xs := make([]float64, models.MonthsPerYear)
	for i := range xs {
		xs[i] = float64(i)
	}

	peak := 0
	series := make([]chart.Series, 0, len(f.Views.YearlyComparison.Series))
	for i, ys := range f.Views.YearlyComparison.Series {
		values := make([]float64, models.MonthsPerYear)
		for m, n := range ys.Counts {
			values[m] = float64(n)
			peak = max(peak, n)
		}
		color := hexColor(f.Hints.YearColor(i))
		series = append(series, chart.ContinuousSeries{
			Name:    strconv.Itoa(ys.Year),
			XValues: xs,
			YValues: values,
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: 3,
				FillColor:   color.WithAlpha(51),
			},
		})
	}

	ch := chart.Chart{
		Title:      fmt.Sprintf("Sales per month, %s", f.Params.Brand),
		TitleStyle: chart.Style{FontColor: t.fg},
		Width:      width,
		Height:     height,
		Background: t.background(),
		Canvas:     chart.Style{FillColor: t.bg},
		XAxis:      chart.XAxis{Name: "Month", NameStyle: t.axis(), Style: t.axis(), Ticks: monthTicks(), GridMajorStyle: t.gridStyle()},
		YAxis:      chart.YAxis{Name: "Sales", NameStyle: t.axis(), Style: t.axis(), Range: countRange(peak), GridMajorStyle: t.gridStyle()},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return renderOrPlaceholder(w, &ch, ch.Title, t)
}

func renderMonthly(w io.Writer, f services.Frame) error {
	t := themeOf(f.Hints)
	bar := hexColor(f.Hints.BarColor)
	names := models.MonthNames()

	peak := 0
	bars := make([]chart.Value, models.MonthsPerYear)
	for i, n := range f.Views.MonthlyCount.Counts {
		peak = max(peak, n)
		bars[i] = chart.Value{
			Label: names[i][:3],
			Value: float64(n),
			Style: chart.Style{FillColor: bar, StrokeColor: bar},
		}
	}

	title := fmt.Sprintf("Sales per month, %s %d", f.Params.Brand, f.Views.MonthlyCount.Year)
	bc := chart.BarChart{
		Title:      title,
		TitleStyle: chart.Style{FontColor: t.fg},
		Width:      width,
		Height:     height,
		BarWidth:   32,
		Background: t.background(),
		Canvas:     chart.Style{FillColor: t.bg},
		XAxis:      t.axis(),
		YAxis:      chart.YAxis{Style: t.axis(), Range: countRange(peak), GridMajorStyle: t.gridStyle()},
		Bars:       bars,
	}
	return renderOrPlaceholder(w, &bc, title, t)
}

func renderScatter(w io.Writer, f services.Frame) error {
	t := themeOf(f.Hints)
	title := fmt.Sprintf("Price vs annual income, %s %d", f.Params.Brand, f.Params.Year)
	points := f.Views.PairedNumeric
	if len(points) == 0 {
		return placeholder(w, title, "No sales with income and price", t)
	}

	// One series per model, in order of first appearance.
	index := make(map[string]int)
	var series []chart.ContinuousSeries
	xr := &chart.ContinuousRange{Min: math.Inf(1), Max: math.Inf(-1)}
	yr := &chart.ContinuousRange{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, p := range points {
		i, ok := index[p.Model]
		if !ok {
			i = len(series)
			index[p.Model] = i
			color := hexColor(f.Hints.ColorFor(i))
			series = append(series, chart.ContinuousSeries{
				Name:  p.Model,
				Style: chart.Style{StrokeWidth: chart.Disabled, DotWidth: 4, DotColor: color},
			})
		}
		series[i].XValues = append(series[i].XValues, p.Income)
		series[i].YValues = append(series[i].YValues, p.Price)
		xr.Min, xr.Max = math.Min(xr.Min, p.Income), math.Max(xr.Max, p.Income)
		yr.Min, yr.Max = math.Min(yr.Min, p.Price), math.Max(yr.Max, p.Price)
	}
	widen(xr)
	widen(yr)

	all := make([]chart.Series, len(series))
	for i := range series {
		all[i] = series[i]
	}

	ch := chart.Chart{
		Title:      title,
		TitleStyle: chart.Style{FontColor: t.fg},
		Width:      width,
		Height:     height,
		Background: t.background(),
		Canvas:     chart.Style{FillColor: t.bg},
		XAxis:      chart.XAxis{Name: "Annual income", NameStyle: t.axis(), Style: t.axis(), Range: xr, GridMajorStyle: t.gridStyle()},
		YAxis:      chart.YAxis{Name: "Price ($)", NameStyle: t.axis(), Style: t.axis(), Range: yr, GridMajorStyle: t.gridStyle()},
		Series:     all,
	}
	if len(series) <= 12 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return renderOrPlaceholder(w, &ch, title, t)
}

func renderPie(w io.Writer, f services.Frame) error {
	t := themeOf(f.Hints)
	dist := f.Views.CategoricalDistribution
	title := fmt.Sprintf("Distribution by %s, %s %d", strings.ToLower(string(dist.Dimension)), f.Params.Brand, f.Params.Year)
	if dist.Total() == 0 {
		return placeholder(w, title, "No sales in range", t)
	}

	values := make([]chart.Value, 0, len(dist.Counts))
	for i, c := range dist.Counts {
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%d)", c.Category, c.Count),
			Value: float64(c.Count),
			Style: chart.Style{FillColor: hexColor(f.Hints.ColorFor(i)), FontColor: t.fg},
		})
	}

	pc := chart.PieChart{
		Title:      title,
		TitleStyle: chart.Style{FontColor: t.fg},
		Width:      width,
		Height:     height,
		Background: chart.Style{FillColor: t.bg},
		Canvas:     chart.Style{FillColor: t.bg},
		Values:     values,
	}
	return renderOrPlaceholder(w, &pc, title, t)
}

type svgRenderable interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

// renderOrPlaceholder buffers the SVG so a failed render falls back to the
// placeholder instead of a truncated document.
func renderOrPlaceholder(w io.Writer, c svgRenderable, title string, t theme) error {
	var buf strings.Builder
	if err := c.Render(chart.SVG, &buf); err != nil {
		return placeholder(w, title, "Chart unavailable", t)
	}
	_, err := io.WriteString(w, buf.String())
	return err
}

func placeholder(w io.Writer, title, message string, t theme) error {
	_, err := fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`+
		`<rect width="100%%" height="100%%" fill="%s"/>`+
		`<text x="50%%" y="30" text-anchor="middle" fill="%s" font-family="sans-serif" font-size="16">%s</text>`+
		`<text x="50%%" y="50%%" text-anchor="middle" fill="%s" font-family="sans-serif" font-size="14">%s</text>`+
		`</svg>`,
		width, height, t.bg.String(), t.fg.String(), html.EscapeString(title), t.fg.String(), html.EscapeString(message))
	return err
}

// widen pads a range by 5% on each side and keeps it non-degenerate.
func widen(r *chart.ContinuousRange) {
	pad := (r.Max - r.Min) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(r.Max)*0.05, 1)
	}
	r.Min -= pad
	r.Max += pad
}

// hexColor parses #rgb or #rrggbb, falling back to black for anything else.
func hexColor(s string) drawing.Color {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 3 && len(s) != 6 {
		return drawing.ColorBlack
	}
	return drawing.ColorFromHex(s)
}
