package services

import (
	"strings"
	"time"

	"carsales-dashboard/internal/dataset"
	apperrors "carsales-dashboard/internal/errors"
	"carsales-dashboard/internal/models"
)

// DateLayout is the format date pickers send for the interval bounds.
const DateLayout = "2006-01-02"

// Input carries the raw values of the six parameter channels. It is always
// supplied whole; there are no partial updates.
type Input struct {
	Brand     string `json:"brand"`
	Year      int    `json:"year"`
	Toggle    uint   `json:"toggle"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Dimension string `json:"dimension"`
}

// FilterParams is a validated, immutable snapshot of the filter selection.
type FilterParams struct {
	Brand     string              `json:"brand"`
	Year      int                 `json:"year"`
	Interval  models.DateInterval `json:"interval"`
	Toggle    uint                `json:"toggle"`
	Dimension models.Dimension    `json:"dimension"`
}

// NewFilterParams validates in against ds. Any violated constraint yields an
// INVALID_FILTER error.
func NewFilterParams(ds *dataset.Dataset, in Input) (FilterParams, error) {
	if !ds.HasBrand(in.Brand) {
		return FilterParams{}, apperrors.InvalidFilter("unknown brand %q", in.Brand)
	}
	if !ds.HasYear(in.Year) {
		return FilterParams{}, apperrors.InvalidFilter("year %d not present in dataset", in.Year)
	}

	start, err := parseFilterDate(in.Start)
	if err != nil {
		return FilterParams{}, apperrors.InvalidFilter("invalid start date %q", in.Start)
	}
	end, err := parseFilterDate(in.End)
	if err != nil {
		return FilterParams{}, apperrors.InvalidFilter("invalid end date %q", in.End)
	}
	if start.After(end) {
		return FilterParams{}, apperrors.InvalidFilter("start date %s is after end date %s", start.Format(DateLayout), end.Format(DateLayout))
	}

	bounds := models.DateInterval{}
	bounds.Start, bounds.End = ds.Bounds()
	if !bounds.Contains(start) || !bounds.Contains(end) {
		return FilterParams{}, apperrors.InvalidFilter("date interval must lie within %s and %s",
			bounds.Start.Format(DateLayout), bounds.End.Format(DateLayout))
	}

	dim := models.Dimension(in.Dimension)
	if !dim.Valid() {
		return FilterParams{}, apperrors.InvalidFilter("unknown dimension %q", in.Dimension)
	}

	return FilterParams{
		Brand:     in.Brand,
		Year:      in.Year,
		Interval:  models.DateInterval{Start: start, End: end},
		Toggle:    in.Toggle,
		Dimension: dim,
	}, nil
}

// DefaultInput is the initial page selection: first brand, earliest year,
// the full date range and the body style distribution.
func DefaultInput(ds *dataset.Dataset) Input {
	in := Input{
		Dimension: string(models.DimensionBodyStyle),
	}
	if brands := ds.Brands(); len(brands) > 0 {
		in.Brand = brands[0]
	}
	if years := ds.Years(); len(years) > 0 {
		in.Year = years[0]
	}
	minDate, maxDate := ds.Bounds()
	in.Start = minDate.Format(DateLayout)
	in.End = maxDate.Format(DateLayout)
	return in
}

// parseFilterDate accepts a bare date or a date followed by a time part,
// keeping only the calendar date.
func parseFilterDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	return time.Parse(DateLayout, s)
}
