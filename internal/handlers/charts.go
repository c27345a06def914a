package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"slices"

	"carsales-dashboard/internal/charts"
	"carsales-dashboard/internal/errors"
	"carsales-dashboard/internal/observability"
	"carsales-dashboard/internal/services"
)

type ChartHandlers struct {
	engine     *services.Engine
	controller *services.Controller
	logger     *slog.Logger
}

func NewChartHandlers(engine *services.Engine, controller *services.Controller, logger *slog.Logger) *ChartHandlers {
	return &ChartHandlers{
		engine:     engine,
		controller: controller,
		logger:     logger,
	}
}

// frameFor builds the frame a chart is drawn from. Explicit filters in the
// query are computed on the spot; otherwise the published frame is used, and
// before the first publish the default selection.
func (h *ChartHandlers) frameFor(r *http.Request) (services.Frame, error) {
	ds := h.engine.Dataset()
	q := r.URL.Query()

	if !hasFilterQuery(q) {
		if frame, ok := h.controller.Current(); ok {
			return frame, nil
		}
	}

	in, err := inputFromQuery(ds, q)
	if err != nil {
		return services.Frame{}, err
	}
	params, err := services.NewFilterParams(ds, in)
	if err != nil {
		return services.Frame{}, err
	}
	views, err := h.engine.Compute(r.Context(), params)
	if err != nil {
		return services.Frame{}, errors.Wrap(err, errors.CodeInternal, "failed to compute views")
	}
	return services.Frame{Params: params, Views: views, Hints: services.HintsFor(params.Toggle)}, nil
}

// HandleChart renders one of the four views as SVG.
func (h *ChartHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	name := r.PathValue("name")
	if !slices.Contains(charts.Names(), name) {
		errors.WriteError(w, h.logger, errors.NotFound("unknown chart "+name), requestID)
		return
	}

	frame, err := h.frameFor(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	var buf bytes.Buffer
	if err := charts.Render(&buf, name, frame); err != nil {
		errors.WriteError(w, h.logger, errors.Wrap(err, errors.CodeInternal, "failed to render chart"), requestID)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug("write chart", "chart", name, "error", err)
	}
}
