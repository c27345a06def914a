package handlers

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"carsales-dashboard/internal/dataset"
	apperrors "carsales-dashboard/internal/errors"
	"carsales-dashboard/internal/services"
)

// dashboardSignals mirrors the Datastar signals bound to the six controls.
// Select elements may send numbers as strings, so year and toggle accept both.
type dashboardSignals struct {
	Brand     string   `json:"brand"`
	Year      flexUint `json:"year"`
	Toggle    flexUint `json:"toggle"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Dimension string   `json:"dimension"`
}

func (s dashboardSignals) input() services.Input {
	return services.Input{
		Brand:     s.Brand,
		Year:      int(s.Year),
		Toggle:    uint(s.Toggle),
		Start:     s.Start,
		End:       s.End,
		Dimension: s.Dimension,
	}
}

type flexUint uint64

func (f *flexUint) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil || v < 0 || v != float64(uint64(v)) {
		return apperrors.InvalidFilter("expected a non-negative integer, got %s", data)
	}
	*f = flexUint(v)
	return nil
}

// inputFromQuery reads the filter channels from query parameters, falling
// back to the default selection for any that are absent.
func inputFromQuery(ds *dataset.Dataset, q url.Values) (services.Input, error) {
	in := services.DefaultInput(ds)

	if v := q.Get("brand"); v != "" {
		in.Brand = v
	}
	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return services.Input{}, apperrors.InvalidFilter("invalid year %q", v)
		}
		in.Year = year
	}
	if v := q.Get("toggle"); v != "" {
		toggle, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return services.Input{}, apperrors.InvalidFilter("invalid toggle %q", v)
		}
		in.Toggle = uint(toggle)
	}
	if v := q.Get("start"); v != "" {
		in.Start = v
	}
	if v := q.Get("end"); v != "" {
		in.End = v
	}
	if v := q.Get("dimension"); v != "" {
		in.Dimension = v
	}
	return in, nil
}

// hasFilterQuery reports whether any filter channel was given explicitly.
func hasFilterQuery(q url.Values) bool {
	for _, key := range []string{"brand", "year", "toggle", "start", "end", "dimension"} {
		if q.Has(key) {
			return true
		}
	}
	return false
}

// queryFor encodes params as the query string understood by inputFromQuery.
func queryFor(p services.FilterParams) string {
	q := url.Values{}
	q.Set("brand", p.Brand)
	q.Set("year", strconv.Itoa(p.Year))
	q.Set("toggle", strconv.FormatUint(uint64(p.Toggle), 10))
	q.Set("start", p.Interval.Start.Format(services.DateLayout))
	q.Set("end", p.Interval.End.Format(services.DateLayout))
	q.Set("dimension", string(p.Dimension))
	return q.Encode()
}
