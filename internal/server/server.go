package server

import (
	"log/slog"
	"net/http"

	"carsales-dashboard/internal/config"
	"carsales-dashboard/internal/handlers"
	"carsales-dashboard/internal/services"
)

type Server struct {
	engine        *services.Engine
	controller    *services.Controller
	mux           *http.ServeMux
	logger        *slog.Logger
	apiHandlers   *handlers.APIHandlers
	sseHandlers   *handlers.SSEHandlers
	chartHandlers *handlers.ChartHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(engine *services.Engine, controller *services.Controller, cfg config.DashboardConfig, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		engine:        engine,
		controller:    controller,
		mux:           http.NewServeMux(),
		logger:        logger,
		apiHandlers:   handlers.NewAPIHandlers(engine, controller, logger),
		sseHandlers:   handlers.NewSSEHandlers(controller, cfg.AwaitTimeout, logger),
		chartHandlers: handlers.NewChartHandlers(engine, controller, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/options", s.apiHandlers.HandleOptions)
	s.mux.HandleFunc("GET /api/views", s.apiHandlers.HandleViews)
	s.mux.HandleFunc("GET /api/current", s.apiHandlers.HandleCurrent)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/update", s.sseHandlers.HandleUpdate)
	s.mux.HandleFunc("POST /sse/update", s.sseHandlers.HandleUpdate)
	s.mux.HandleFunc("GET /sse/stream", s.sseHandlers.HandleStream)

	// SVG charts
	s.mux.HandleFunc("GET /charts/{name}", s.chartHandlers.HandleChart)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
