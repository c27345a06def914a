package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"carsales-dashboard/internal/errors"
	"carsales-dashboard/internal/models"
	"carsales-dashboard/internal/observability"
	"carsales-dashboard/internal/services"
)

type APIHandlers struct {
	engine     *services.Engine
	controller *services.Controller
	logger     *slog.Logger
}

func NewAPIHandlers(engine *services.Engine, controller *services.Controller, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		engine:     engine,
		controller: controller,
		logger:     logger,
	}
}

type optionsResponse struct {
	Brands     []string           `json:"brands"`
	Years      []int              `json:"years"`
	MinDate    string             `json:"min_date"`
	MaxDate    string             `json:"max_date"`
	Dimensions []models.Dimension `json:"dimensions"`
	Defaults   services.Input     `json:"defaults"`
}

// HandleOptions lists the value domains of the filter channels.
func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	ds := h.engine.Dataset()
	minDate, maxDate := ds.Bounds()

	data := optionsResponse{
		Brands:     ds.Brands(),
		Years:      ds.Years(),
		MinDate:    minDate.Format(services.DateLayout),
		MaxDate:    maxDate.Format(services.DateLayout),
		Dimensions: models.Dimensions(),
		Defaults:   services.DefaultInput(ds),
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{
		"Cache-Control": "public, max-age=300",
	})
}

type viewsResponse struct {
	Params services.FilterParams `json:"params"`
	Views  models.Views          `json:"views"`
	Hints  services.Hints        `json:"hints"`
}

// HandleViews computes the four views for the filters in the query string
// without touching the published dashboard state.
func (h *APIHandlers) HandleViews(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	in, err := inputFromQuery(h.engine.Dataset(), r.URL.Query())
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	params, err := services.NewFilterParams(h.engine.Dataset(), in)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	views, err := h.engine.Compute(r.Context(), params)
	if err != nil {
		errors.WriteError(w, h.logger, errors.Wrap(err, errors.CodeInternal, "failed to compute views"), requestID)
		return
	}

	errors.WriteSuccess(w, viewsResponse{
		Params: params,
		Views:  views,
		Hints:  services.HintsFor(params.Toggle),
	})
}

// HandleCurrent returns the last frame published by the controller.
func (h *APIHandlers) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	frame, ok := h.controller.Current()
	if !ok {
		errors.WriteError(w, h.logger, errors.NotFound("no dashboard state published yet"), observability.GetRequestID(r.Context()))
		return
	}
	errors.WriteSuccess(w, frame)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()
	stats["controller_state"] = h.controller.State().String()
	if frame, ok := h.controller.Current(); ok {
		stats["published_seq"] = frame.Seq
	}

	errors.WriteSuccess(w, stats)
}
