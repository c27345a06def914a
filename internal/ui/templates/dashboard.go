// Package templates holds the page components served by the dashboard.
//
// Pages are written in .templ files; run `templ generate` after editing them.
package templates

import (
	"encoding/json"

	"carsales-dashboard/internal/models"
	"carsales-dashboard/internal/services"
)

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.943 generate

// DashboardData is everything the page needs to lay out its controls.
type DashboardData struct {
	Title      string
	Brands     []string
	Years      []int
	Dimensions []models.Dimension
	MinDate    string
	MaxDate    string
	Defaults   services.Input
}

// pageState seeds the page signals. Only the controls are sent back on
// @get; the underscored signals stay in the browser.
type pageState struct {
	services.Input
	Seq   uint64 `json:"_seq"`
	Views any    `json:"_views"`
	Hints any    `json:"_hints"`
}

func pageSignals(in services.Input) (string, error) {
	b, err := json.Marshal(pageState{Input: in})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
