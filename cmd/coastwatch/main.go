package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coastwatch/internal/api"
	"coastwatch/pkg/assess"
	"coastwatch/pkg/config"
	"coastwatch/pkg/crs"
	"coastwatch/pkg/db"
	"coastwatch/pkg/logging"
	"coastwatch/pkg/predict"
	"coastwatch/pkg/probe"
	"coastwatch/pkg/registry"
	"coastwatch/pkg/report"
	"coastwatch/pkg/request"
	"coastwatch/pkg/store"
	"coastwatch/pkg/tracker"
	"coastwatch/pkg/version"
)

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault("configs/coastwatch.yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: configs/coastwatch.yaml")
		return
	}

	if err := run(context.Background(), "configs/coastwatch.yaml"); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("CoastWatch Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	norm, err := crs.NewNormalizer(appCfg.Layers.WorkingEPSG)
	if err != nil {
		return fmt.Errorf("failed to initialize CRS normalizer: %w", err)
	}

	tr := tracker.New()
	reqClient := request.New(st, tr, request.Options{
		Retries:   appCfg.Request.Retries,
		Timeout:   time.Duration(appCfg.Request.Timeout),
		BaseDelay: time.Duration(appCfg.Request.Backoff.BaseDelay),
		MaxDelay:  time.Duration(appCfg.Request.Backoff.MaxDelay),
	})

	reg := registry.New(st)
	if restored := reg.Hydrate(ctx); restored > 0 {
		slog.Info("Restored layers from previous session", "count", restored)
	}

	rep := report.New()
	settings := config.NewProvider(appCfg, st)
	coord := predict.New(reqClient, appCfg.Predict, norm, reg, rep, tr, settings, st)
	assessor := assess.New(coord, reg, rep, norm, st)

	results := probe.Run(ctx, []probe.Probe{
		{Name: "Database", Check: func(c context.Context) error { return dbConn.PingContext(c) }, Critical: true},
		{Name: "Prediction Service", Check: probe.Reachable(appCfg.Predict.LineURL)},
		{Name: "Segments Service", Check: probe.Reachable(appCfg.Predict.SegmentsURL)},
	})
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	// Base shoreline is best-effort at startup. The segments service may
	// come up after us; the /api/predict flows retry on demand.
	go func() {
		fetchCtx, fetchCancel := context.WithTimeout(ctx, 60*time.Second)
		defer fetchCancel()
		if err := coord.FetchBaseSegments(fetchCtx); err != nil {
			slog.Warn("Base shoreline segments unavailable at startup", "error", err)
		}
	}()

	return runServer(ctx, appCfg, reg, coord, assessor, rep, tr, settings, st)
}

func initDB(appCfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	// Upstream responses go stale long before a month.
	if err := dbConn.PruneCache(30 * 24 * time.Hour); err != nil {
		slog.Warn("failed to prune response cache", "error", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func runServer(ctx context.Context, cfg *config.Config, reg *registry.Registry,
	coord *predict.Coordinator, assessor *assess.Assessor, rep *report.Accumulator,
	tr *tracker.Tracker, settings config.Provider, st store.StateStore) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address, cfg.Server.StaticDir, api.Handlers{
		Layers:   api.NewLayersHandler(reg),
		Predict:  api.NewPredictHandler(coord),
		Assess:   api.NewAssessHandler(assessor),
		Report:   api.NewReportHandler(rep),
		Stats:    api.NewStatsHandler(tr, reg, coord),
		Events:   api.NewEventsHandler(reg),
		Settings: api.NewSettingsHandler(settings, st),
	}, shutdownFunc)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
