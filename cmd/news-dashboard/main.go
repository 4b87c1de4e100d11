package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hephaex/Barami/internal/api"
	"github.com/hephaex/Barami/internal/clients"
	"github.com/hephaex/Barami/internal/live"
	"github.com/hephaex/Barami/internal/news"
	"github.com/hephaex/Barami/internal/query"
	"github.com/hephaex/Barami/internal/view"
	"github.com/hephaex/Barami/internal/worker"
	"github.com/hephaex/Barami/pkg/config"
	"github.com/hephaex/Barami/pkg/db"
	"github.com/hephaex/Barami/pkg/logger"
	"github.com/hephaex/Barami/pkg/metrics"
)

func main() {
	if err := logger.Init(string(config.NewsDashboard), os.Getenv("GO_ENV"), os.Getenv("LOG_LEVEL")); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(config.NewsDashboard)
	if err != nil {
		logger.Fatal("Failed to load configuration", logger.Err(err))
	}

	logger.Info("Configuration loaded",
		logger.String("environment", cfg.Environment),
		logger.String("port", cfg.Port),
		logger.String("api", cfg.APIBaseURL),
	)

	m := metrics.New("news_dashboard")
	backend := clients.NewNewsClient(cfg.APIBaseURL, cfg.APITimeout)
	checks := []api.HealthCheck{{Name: "backend", Check: backend.Reachable}}

	var store query.Store
	if cfg.RedisURL != "" {
		redisClient, err := db.NewRedisConnection(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, snapshots disabled", logger.Err(err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Error("Error closing Redis connection", logger.Err(err))
				}
			}()
			logger.Info("Connected to Redis")
			store = db.NewSnapshotStore(redisClient, cfg.App, cfg.SnapshotTTL)
			checks = append(checks, api.HealthCheck{Name: "redis", Check: redisClient.HealthCheck})
		}
	}

	queries := query.NewClient(query.Config{
		StaleTime:    cfg.StaleTime,
		Retry:        cfg.QueryRetry,
		ShouldRetry:  clients.Retryable,
		CacheTime:    cfg.CacheTime,
		FetchTimeout: cfg.FetchTimeout,
		Store:        store,
		Observer:     m,
	})
	defer queries.Close()

	hub := live.NewHub(queries, m)
	defer hub.Close()

	render, err := view.New("news")
	if err != nil {
		logger.Fatal("Failed to load templates", logger.Err(err))
	}

	handler := news.NewHandler(backend, queries, render, hub, news.Options{})

	workerPool := worker.NewWorkerPool(
		worker.Job{
			Name:     "query-janitor",
			Interval: cfg.JanitorInterval,
			Run: func(context.Context) error {
				if n := queries.Prune(); n > 0 {
					logger.Debug("Pruned idle queries", logger.Int("count", n))
				}
				return nil
			},
		},
		worker.Job{
			Name:      "backend-probe",
			Interval:  cfg.ProbeInterval,
			Timeout:   5 * time.Second,
			Immediate: true,
			Run: func(ctx context.Context) error {
				err := backend.Reachable(ctx)
				m.SetDependencyUp("backend", err == nil)
				return err
			},
		},
	)
	workerPool.Start()
	defer workerPool.Stop()

	apiServer := api.NewServer(cfg, m, checks, handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting news dashboard",
			logger.String("port", cfg.Port),
			logger.String("address", fmt.Sprintf("http://localhost:%s", cfg.Port)),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down news dashboard...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logger.Err(err))
	}

	logger.Info("News dashboard stopped")
}
