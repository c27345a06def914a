package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"carsales-dashboard/internal/config"
	"carsales-dashboard/internal/dataset"
	"carsales-dashboard/internal/middleware"
	"carsales-dashboard/internal/models"
	"carsales-dashboard/internal/observability"
	"carsales-dashboard/internal/server"
	"carsales-dashboard/internal/services"
	"carsales-dashboard/internal/ui/templates"
)

const (
	renderTimeout  = 10 * time.Second
	csvLoadTimeout = 30 * time.Second
	cacheMaxAge    = "public, max-age=300"
	dashboardTitle = "Car Sales Dashboard"
)

// dashboardHandler serves the page with the controls laid out for ds.
func dashboardHandler(ds *dataset.Dataset, logger *slog.Logger) http.HandlerFunc {
	minDate, maxDate := ds.Bounds()
	data := templates.DashboardData{
		Title:      dashboardTitle,
		Brands:     ds.Brands(),
		Years:      ds.Years(),
		Dimensions: models.Dimensions(),
		MinDate:    minDate.Format(services.DateLayout),
		MaxDate:    maxDate.Format(services.DateLayout),
		Defaults:   services.DefaultInput(ds),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", cacheMaxAge)
		if err := templates.Dashboard(data).Render(ctx, w); err != nil {
			logger.Error("render dashboard", "error", err)
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

func newHandler(cfg *config.Config, ds *dataset.Dataset, engine *services.Engine, controller *services.Controller, logger *slog.Logger) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardHandler(ds, logger),
	}

	srv := server.NewServer(engine, controller, cfg.Dashboard, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
}

func main() {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	ctx, cancel := context.WithTimeout(context.Background(), csvLoadTimeout)
	defer cancel()

	start := time.Now()
	ds, err := dataset.NewLoader(cfg.Database, logger).Load(ctx, cfg.Database.CSVFile)
	if err != nil {
		logger.Error("failed to load sales data", "path", cfg.Database.CSVFile, "error", err)
		os.Exit(1)
	}
	minDate, maxDate := ds.Bounds()
	logger.Info("sales data loaded",
		"duration", time.Since(start),
		"records", ds.Len(),
		"rejected_rows", ds.Rejected(),
		"brands", len(ds.Brands()),
		"min_date", minDate.Format(services.DateLayout),
		"max_date", maxDate.Format(services.DateLayout),
	)

	engine := services.NewEngine(ds, cfg.Dashboard, logger)
	controller := services.NewController(ds, engine, logger)

	// The initial selection is computed before the first client connects.
	if _, err := controller.Submit(services.DefaultInput(ds)); err != nil {
		logger.Error("failed to compute initial views", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, ds, engine, controller, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("closing dashboard streams")
		return controller.Close(ctx)
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
