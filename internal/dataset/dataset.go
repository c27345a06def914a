// Package dataset holds the immutable car sales records the dashboard filters.
//
// A Dataset is built once at startup and never mutated afterwards, so it is
// safe to share between goroutines without locking.
package dataset

import (
	"slices"
	"time"

	"carsales-dashboard/internal/models"
)

type Dataset struct {
	records  []models.Sale
	brands   []string
	brandSet map[string]struct{}
	years    []int
	yearSet  map[int]struct{}
	min, max time.Time
	rejected int
}

// New builds a Dataset from records, deriving each record's year and month.
// The slice is copied.
func New(records []models.Sale) *Dataset {
	ds := &Dataset{
		records:  make([]models.Sale, len(records)),
		brandSet: make(map[string]struct{}),
		yearSet:  make(map[int]struct{}),
	}

	for i, rec := range records {
		rec.Date = calendarDate(rec.Date)
		rec.Year = rec.Date.Year()
		rec.Month = models.MonthOf(rec.Date.Month())
		ds.records[i] = rec

		if _, ok := ds.brandSet[rec.Company]; !ok {
			ds.brandSet[rec.Company] = struct{}{}
			ds.brands = append(ds.brands, rec.Company)
		}
		if _, ok := ds.yearSet[rec.Year]; !ok {
			ds.yearSet[rec.Year] = struct{}{}
			ds.years = append(ds.years, rec.Year)
		}
		if i == 0 || rec.Date.Before(ds.min) {
			ds.min = rec.Date
		}
		if i == 0 || rec.Date.After(ds.max) {
			ds.max = rec.Date
		}
	}
	slices.Sort(ds.years)

	return ds
}

// Records returns the loaded records. Callers must not modify the result.
func (d *Dataset) Records() []models.Sale {
	return d.records
}

func (d *Dataset) Len() int {
	return len(d.records)
}

// Rejected is the number of source rows skipped because their date did not parse.
func (d *Dataset) Rejected() int {
	return d.rejected
}

// Bounds returns the earliest and latest record dates.
func (d *Dataset) Bounds() (time.Time, time.Time) {
	return d.min, d.max
}

// Brands lists the distinct companies in order of first appearance.
func (d *Dataset) Brands() []string {
	return slices.Clone(d.brands)
}

// Years lists the distinct sale years in ascending order.
func (d *Dataset) Years() []int {
	return slices.Clone(d.years)
}

func (d *Dataset) HasBrand(brand string) bool {
	_, ok := d.brandSet[brand]
	return ok
}

func (d *Dataset) HasYear(year int) bool {
	_, ok := d.yearSet[year]
	return ok
}

// ComparisonYears returns the two most recent years, oldest first. A dataset
// covering a single year Y compares Y-1 against Y.
func (d *Dataset) ComparisonYears() [2]int {
	switch n := len(d.years); n {
	case 0:
		return [2]int{}
	case 1:
		return [2]int{d.years[0] - 1, d.years[0]}
	default:
		return [2]int{d.years[n-2], d.years[n-1]}
	}
}

func calendarDate(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
