package models

// MonthlyCounts is a zero-filled sequence indexed by Month.
type MonthlyCounts [MonthsPerYear]int

func (c MonthlyCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

type YearSeries struct {
	Year   int           `json:"year"`
	Counts MonthlyCounts `json:"counts"`
}

type YearlyComparison struct {
	Months []string     `json:"months"`
	Series []YearSeries `json:"series"`
}

type MonthlyCount struct {
	Year   int           `json:"year"`
	Months []string      `json:"months"`
	Counts MonthlyCounts `json:"counts"`
}

type IncomePricePoint struct {
	Income float64 `json:"income"`
	Price  float64 `json:"price"`
	Model  string  `json:"model"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type CategoricalDistribution struct {
	Dimension Dimension       `json:"dimension"`
	Counts    []CategoryCount `json:"counts"`
}

func (d CategoricalDistribution) Total() int {
	total := 0
	for _, c := range d.Counts {
		total += c.Count
	}
	return total
}

// Views holds the four derived datasets of one compute pass.
type Views struct {
	YearlyComparison        YearlyComparison        `json:"yearly_comparison"`
	MonthlyCount            MonthlyCount            `json:"monthly_count"`
	PairedNumeric           []IncomePricePoint      `json:"paired_numeric"`
	CategoricalDistribution CategoricalDistribution `json:"categorical_distribution"`
}
