package services

import "slices"

// Hints tells the rendering layer how to theme the charts. It depends only
// on the parity of the palette toggle and never on the views.
type Hints struct {
	Theme       string   `json:"theme"`
	Background  string   `json:"background"`
	Foreground  string   `json:"foreground"`
	Grid        string   `json:"grid"`
	PaletteName string   `json:"palette_name"`
	Palette     []string `json:"palette"`
	BarColor    string   `json:"bar_color"`
}

// Qualitative palettes for model and category colors.
var (
	PlotlyPalette = []string{
		"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
		"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
	}
	D3Palette = []string{
		"#1F77B4", "#FF7F0E", "#2CA02C", "#D62728", "#9467BD",
		"#8C564B", "#E377C2", "#7F7F7F", "#BCBD22", "#17BECF",
	}
)

// Year lines keep their colors on both backgrounds; the first comparison
// year is blue and the second orange.
var yearLineColors = [2]string{"#1f77b4", "#ff7f0e"}

const barColor = "#2ca02c"

// HintsFor derives the presentation hints for a palette toggle value.
func HintsFor(toggle uint) Hints {
	h := Hints{BarColor: barColor}
	if toggle%2 == 0 {
		h.Theme = "dark"
		h.Background, h.Foreground, h.Grid = "#222", "#fff", "#888"
		h.PaletteName, h.Palette = "Plotly", slices.Clone(PlotlyPalette)
	} else {
		h.Theme = "light"
		h.Background, h.Foreground, h.Grid = "#fff", "#222", "#bbb"
		h.PaletteName, h.Palette = "D3", slices.Clone(D3Palette)
	}
	return h
}

// ColorFor cycles through the palette.
func (h Hints) ColorFor(i int) string {
	if len(h.Palette) == 0 {
		return h.Foreground
	}
	return h.Palette[i%len(h.Palette)]
}

// YearColor returns the line color of comparison series i (0 or 1).
func (h Hints) YearColor(i int) string {
	return yearLineColors[i%len(yearLineColors)]
}
