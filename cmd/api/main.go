package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apiconfig "portfolio_ingest/pkg/api/config"
	"portfolio_ingest/pkg/api/ingest"
	"portfolio_ingest/pkg/core/config"
	"portfolio_ingest/pkg/core/logger"
	"portfolio_ingest/pkg/core/metrics"
	"portfolio_ingest/pkg/core/normalize"
	"portfolio_ingest/pkg/core/pipeline"
	"portfolio_ingest/pkg/core/store"
)

func main() {
	// Load configuration (.env, configs/config.yaml, INGEST_* overrides)
	cfg, err := config.Load("configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}

	zl := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = zl.Sync() }()
	log := logger.NewZapAdapter(zl)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server stopped", nil)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Lookup tables
	tables := normalize.DefaultTables()
	if cfg.Ingestion.TablesPath != "" {
		loaded, err := normalize.LoadTables(cfg.Ingestion.TablesPath)
		if err != nil {
			return err
		}
		tables = loaded
		log.Info("loaded lookup tables", map[string]interface{}{"path": cfg.Ingestion.TablesPath})
	}

	opts := []pipeline.Option{
		pipeline.WithTables(tables),
		pipeline.WithSeed(cfg.Ingestion.Seed),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(metrics.NewRecorder(nil)),
	}

	// 2. Optional persistence
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := store.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		opts = append(opts, pipeline.WithRepository(store.NewResultRepo(pool)))
		log.Info("result persistence enabled", nil)
	}

	// 3. Optional cache
	if cfg.Redis.Address != "" {
		cache := store.NewResultCache(store.NewRedisClient(cfg.Redis), cfg.Ingestion.CacheTTL)
		defer cache.Close()
		if err := cache.Ping(ctx); err != nil {
			log.WithError(err).Warn("result cache unavailable, continuing without it", nil)
		} else {
			opts = append(opts, pipeline.WithCache(cache))
			log.Info("result cache enabled", map[string]interface{}{"address": cfg.Redis.Address})
		}
	}

	svc := pipeline.NewIngestionService(opts...)

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	ingest.NewHandler(svc, log, cfg.Server.MaxUploadBytes(), cfg.Ingestion.DiagnosticsLimit).RegisterRoutes(r)
	apiconfig.NewHandler(svc.Tables()).RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", map[string]interface{}{"addr": srv.Addr, "environment": cfg.App.Environment})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
