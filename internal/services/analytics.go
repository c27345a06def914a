package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"carsales-dashboard/internal/config"
	"carsales-dashboard/internal/dataset"
	"carsales-dashboard/internal/models"
	"carsales-dashboard/internal/observability"
)

// Computer produces the four views for one parameter snapshot.
type Computer interface {
	Compute(ctx context.Context, p FilterParams) (models.Views, error)
}

// Engine computes the derived views over an immutable dataset. It holds no
// per-query state; the counters only feed Stats.
type Engine struct {
	ds           *dataset.Dataset
	compareYears [2]int
	logger       *slog.Logger

	passes       atomic.Int64
	lastDuration atomic.Int64
}

func NewEngine(ds *dataset.Dataset, cfg config.DashboardConfig, logger *slog.Logger) *Engine {
	years := ds.ComparisonYears()
	if len(cfg.CompareYears) == 2 {
		years = [2]int{cfg.CompareYears[0], cfg.CompareYears[1]}
	}
	return &Engine{
		ds:           ds,
		compareYears: years,
		logger:       logger,
	}
}

func (e *Engine) Dataset() *dataset.Dataset {
	return e.ds
}

func (e *Engine) CompareYears() [2]int {
	return e.compareYears
}

// Compute runs the four view computations concurrently. They share only
// read access to the dataset.
func (e *Engine) Compute(ctx context.Context, p FilterParams) (models.Views, error) {
	ctx, span := observability.StartSpan(ctx, "engine.compute")
	span.SetTag("brand", p.Brand)
	span.SetTag("year", strconv.Itoa(p.Year))
	defer span.Finish()

	start := time.Now()
	var views models.Views

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		views.YearlyComparison = ComputeYearlyComparison(e.ds, p.Brand, p.Interval, e.compareYears)
		return ctx.Err()
	})
	g.Go(func() error {
		views.MonthlyCount = ComputeMonthlyCount(e.ds, p.Brand, p.Year, p.Interval)
		return ctx.Err()
	})
	g.Go(func() error {
		views.PairedNumeric = ComputePairedNumeric(e.ds, p.Brand, p.Year, p.Interval)
		return ctx.Err()
	})
	g.Go(func() error {
		views.CategoricalDistribution = ComputeCategoricalDistribution(e.ds, p.Brand, p.Year, p.Interval, p.Dimension)
		return ctx.Err()
	})

	if err := g.Wait(); err != nil {
		span.SetError(err)
		return models.Views{}, fmt.Errorf("compute views: %w", err)
	}

	duration := time.Since(start)
	e.passes.Add(1)
	e.lastDuration.Store(int64(duration))
	e.logger.Debug("views computed",
		"brand", p.Brand,
		"year", p.Year,
		"points", len(views.PairedNumeric),
		"duration", duration)

	return views, nil
}

// ComputeYearlyComparison counts sales per month for each of the two years,
// scoped to brand and interval. A year without matching sales gets an
// all-zero sequence.
func ComputeYearlyComparison(ds *dataset.Dataset, brand string, interval models.DateInterval, years [2]int) models.YearlyComparison {
	var counts [2]models.MonthlyCounts
	for _, rec := range ds.Records() {
		if !inScope(rec, brand, interval) {
			continue
		}
		for i, y := range years {
			if rec.Year == y {
				counts[i][rec.Month]++
			}
		}
	}

	return models.YearlyComparison{
		Months: models.MonthNames(),
		Series: []models.YearSeries{
			{Year: years[0], Counts: counts[0]},
			{Year: years[1], Counts: counts[1]},
		},
	}
}

// ComputeMonthlyCount counts sales per month for the selected year, brand and
// interval. The result always has twelve entries.
func ComputeMonthlyCount(ds *dataset.Dataset, brand string, year int, interval models.DateInterval) models.MonthlyCount {
	var counts models.MonthlyCounts
	for _, rec := range ds.Records() {
		if rec.Year == year && inScope(rec, brand, interval) {
			counts[rec.Month]++
		}
	}
	return models.MonthlyCount{
		Year:   year,
		Months: models.MonthNames(),
		Counts: counts,
	}
}

// ComputePairedNumeric returns (income, price, model) for every in-scope sale
// whose income and price both coerce to numbers, in dataset order.
func ComputePairedNumeric(ds *dataset.Dataset, brand string, year int, interval models.DateInterval) []models.IncomePricePoint {
	points := make([]models.IncomePricePoint, 0)
	for _, rec := range ds.Records() {
		if rec.Year != year || !inScope(rec, brand, interval) {
			continue
		}
		income, ok := ParseNumeric(rec.AnnualIncome)
		if !ok {
			continue
		}
		price, ok := ParseNumeric(rec.Price)
		if !ok {
			continue
		}
		points = append(points, models.IncomePricePoint{
			Income: income,
			Price:  price,
			Model:  rec.Model,
		})
	}
	return points
}

// ComputeCategoricalDistribution counts in-scope sales per raw value of dim.
// Only observed categories appear, in order of first appearance; unlike the
// monthly views nothing is zero-filled.
func ComputeCategoricalDistribution(ds *dataset.Dataset, brand string, year int, interval models.DateInterval, dim models.Dimension) models.CategoricalDistribution {
	index := make(map[string]int)
	counts := make([]models.CategoryCount, 0)
	for _, rec := range ds.Records() {
		if rec.Year != year || !inScope(rec, brand, interval) {
			continue
		}
		key := dim.Value(rec)
		i, ok := index[key]
		if !ok {
			i = len(counts)
			index[key] = i
			counts = append(counts, models.CategoryCount{Category: key})
		}
		counts[i].Count++
	}
	return models.CategoricalDistribution{Dimension: dim, Counts: counts}
}

// ParseNumeric coerces a raw income or price. Surrounding whitespace, a
// leading dollar sign and comma thousands separators are accepted. Empty,
// non-numeric and non-finite values report ok=false. Only plain decimal
// notation is accepted, so Go literal forms such as 0x1p4 or 1_000 are
// missing too.
func ParseNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || strings.ContainsFunc(s, notDecimal) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func notDecimal(r rune) bool {
	return (r < '0' || r > '9') && !strings.ContainsRune(".eE+-", r)
}

func inScope(rec models.Sale, brand string, interval models.DateInterval) bool {
	return rec.Company == brand && interval.Contains(rec.Date)
}

// Stats reports dataset and engine counters for monitoring.
func (e *Engine) Stats() map[string]any {
	minDate, maxDate := e.ds.Bounds()
	return map[string]any{
		"record_count":     e.ds.Len(),
		"rejected_rows":    e.ds.Rejected(),
		"brands":           len(e.ds.Brands()),
		"years":            e.ds.Years(),
		"min_date":         minDate.Format(DateLayout),
		"max_date":         maxDate.Format(DateLayout),
		"compare_years":    e.compareYears,
		"passes":           e.passes.Load(),
		"last_pass_micros": time.Duration(e.lastDuration.Load()).Microseconds(),
	}
}
