package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carsales-dashboard/internal/config"
	"carsales-dashboard/internal/dataset"
	"carsales-dashboard/internal/models"
	"carsales-dashboard/internal/services"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestDataset() *dataset.Dataset {
	return dataset.New([]models.Sale{
		{Company: "Ford", Date: date(2022, 1, 15), Model: "Expedition", BodyStyle: "SUV", Gender: "Male", AnnualIncome: "13500", Price: "26000"},
		{Company: "Ford", Date: date(2022, 3, 5), Model: "Explorer", BodyStyle: "SUV", Gender: "Female", AnnualIncome: "650000", Price: "31500"},
		{Company: "Ford", Date: date(2022, 3, 20), Model: "Focus", BodyStyle: "Sedan", Gender: "Male", AnnualIncome: "", Price: "19000"},
		{Company: "Audi", Date: date(2023, 2, 1), Model: "A4", BodyStyle: "Hatchback", Gender: "Female", AnnualIncome: "880000", Price: "45000"},
		{Company: "Audi", Date: date(2023, 11, 11), Model: "A6", BodyStyle: "Sedan", Gender: "Male", AnnualIncome: "1200000", Price: "$62,000"},
	})
}

type testDeps struct {
	ds         *dataset.Dataset
	engine     *services.Engine
	controller *services.Controller
}

func newTestDeps(t *testing.T) testDeps {
	t.Helper()
	ds := createTestDataset()
	engine := services.NewEngine(ds, config.DashboardConfig{AwaitTimeout: time.Second}, testLogger())
	controller := services.NewController(ds, engine, testLogger())
	t.Cleanup(func() { controller.Close(context.Background()) })
	return testDeps{ds: ds, engine: engine, controller: controller}
}

// publishDefault submits the default selection and waits for its frame.
func (d testDeps) publishDefault(t *testing.T) services.Frame {
	t.Helper()
	seq, err := d.controller.Submit(services.DefaultInput(d.ds))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	frame, err := d.controller.Await(ctx, seq)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	return frame
}

func decodeSuccess(t *testing.T, body io.Reader, data any) {
	t.Helper()
	var response struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if !response.Success {
		t.Fatal("expected success=true in response")
	}
	if data != nil {
		if err := json.Unmarshal(response.Data, data); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
}

func decodeErrorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var response struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if response.Success {
		t.Error("expected success=false in error response")
	}
	return response.Error.Code
}

func TestNewAPIHandlers(t *testing.T) {
	deps := newTestDeps(t)
	handlers := NewAPIHandlers(deps.engine, deps.controller, testLogger())

	if handlers == nil {
		t.Fatal("NewAPIHandlers() returned nil")
	}
	if handlers.engine != deps.engine {
		t.Error("NewAPIHandlers() should set engine field")
	}
	if handlers.controller != deps.controller {
		t.Error("NewAPIHandlers() should set controller field")
	}
}

func TestAPIHandlers_HandleOptions(t *testing.T) {
	deps := newTestDeps(t)
	handlers := NewAPIHandlers(deps.engine, deps.controller, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/options", nil)
	w := httptest.NewRecorder()
	handlers.HandleOptions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("expected cache-control 'public, max-age=300', got %q", cc)
	}

	var options optionsResponse
	decodeSuccess(t, w.Body, &options)

	if len(options.Brands) != 2 || options.Brands[0] != "Ford" || options.Brands[1] != "Audi" {
		t.Errorf("brands = %v, want [Ford Audi]", options.Brands)
	}
	if len(options.Years) != 2 || options.Years[0] != 2022 || options.Years[1] != 2023 {
		t.Errorf("years = %v, want [2022 2023]", options.Years)
	}
	if options.MinDate != "2022-01-15" || options.MaxDate != "2023-11-11" {
		t.Errorf("bounds = %s..%s", options.MinDate, options.MaxDate)
	}
	if len(options.Dimensions) != 2 {
		t.Errorf("dimensions = %v", options.Dimensions)
	}
	if options.Defaults.Brand != "Ford" || options.Defaults.Year != 2022 {
		t.Errorf("defaults = %+v", options.Defaults)
	}
}

func TestAPIHandlers_HandleViews(t *testing.T) {
	deps := newTestDeps(t)
	handlers := NewAPIHandlers(deps.engine, deps.controller, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/views?brand=Ford&year=2022&dimension=Gender&toggle=3", nil)
	w := httptest.NewRecorder()
	handlers.HandleViews(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp viewsResponse
	decodeSuccess(t, w.Body, &resp)

	if resp.Params.Brand != "Ford" || resp.Params.Dimension != models.DimensionGender {
		t.Errorf("params = %+v", resp.Params)
	}
	if got := resp.Views.MonthlyCount.Counts.Total(); got != 3 {
		t.Errorf("monthly total = %d, want 3", got)
	}
	if got := resp.Views.MonthlyCount.Counts[models.March]; got != 2 {
		t.Errorf("march count = %d, want 2", got)
	}
	if len(resp.Views.PairedNumeric) != 2 {
		t.Errorf("paired points = %d, want 2", len(resp.Views.PairedNumeric))
	}
	if resp.Hints.Theme != "light" {
		t.Errorf("odd toggle should give light theme, got %q", resp.Hints.Theme)
	}
	if _, ok := deps.controller.Current(); ok {
		t.Error("HandleViews should not publish a frame")
	}
}

func TestAPIHandlers_HandleViews_InvalidFilter(t *testing.T) {
	deps := newTestDeps(t)
	handlers := NewAPIHandlers(deps.engine, deps.controller, testLogger())

	tests := []struct {
		name  string
		query string
	}{
		{"unknown brand", "brand=Tesla"},
		{"year not in dataset", "year=2019"},
		{"bad year", "year=twenty"},
		{"bad toggle", "toggle=-1"},
		{"start after end", "start=2023-01-01&end=2022-01-01"},
		{"out of bounds", "start=2021-01-01"},
		{"bad date", "end=11/11/2023"},
		{"unknown dimension", "dimension=Color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/views?"+tt.query, nil)
			w := httptest.NewRecorder()
			handlers.HandleViews(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			if code := decodeErrorCode(t, w.Body); code != "INVALID_FILTER" {
				t.Errorf("error code = %q, want INVALID_FILTER", code)
			}
		})
	}
}

func TestAPIHandlers_HandleCurrent(t *testing.T) {
	deps := newTestDeps(t)
	handlers := NewAPIHandlers(deps.engine, deps.controller, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleCurrent(w, httptest.NewRequest(http.MethodGet, "/api/current", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("before publish: expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	published := deps.publishDefault(t)

	w = httptest.NewRecorder()
	handlers.HandleCurrent(w, httptest.NewRequest(http.MethodGet, "/api/current", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var frame services.Frame
	decodeSuccess(t, w.Body, &frame)
	if frame.Seq != published.Seq {
		t.Errorf("seq = %d, want %d", frame.Seq, published.Seq)
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	deps := newTestDeps(t)
	handlers := NewAPIHandlers(deps.engine, deps.controller, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handlers.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content-type 'application/json', got %q", ct)
	}

	var health map[string]string
	decodeSuccess(t, w.Body, &health)
	if health["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %q", health["status"])
	}
	if _, err := time.Parse(time.RFC3339, health["timestamp"]); err != nil {
		t.Errorf("timestamp is not RFC3339: %v", err)
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	deps := newTestDeps(t)
	handlers := NewAPIHandlers(deps.engine, deps.controller, testLogger())
	deps.publishDefault(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	w := httptest.NewRecorder()
	handlers.HandleStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var stats map[string]any
	decodeSuccess(t, w.Body, &stats)

	if stats["record_count"] != float64(5) {
		t.Errorf("record_count = %v, want 5", stats["record_count"])
	}
	if stats["controller_state"] != "idle" {
		t.Errorf("controller_state = %v, want idle", stats["controller_state"])
	}
	if _, ok := stats["published_seq"]; !ok {
		t.Error("expected published_seq after a frame was published")
	}
}
