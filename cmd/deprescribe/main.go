package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sagecare/deprescribe/internal/analysis"
	"github.com/sagecare/deprescribe/internal/genai"
	"github.com/sagecare/deprescribe/internal/refdata"
	"github.com/sagecare/deprescribe/internal/shared/auth"
	"github.com/sagecare/deprescribe/internal/shared/config"
	"github.com/sagecare/deprescribe/internal/shared/database"
	"github.com/sagecare/deprescribe/internal/shared/logger"
	"github.com/sagecare/deprescribe/internal/shared/metrics"
	"github.com/sagecare/deprescribe/internal/taper"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	GenAI  *genai.Client
	Bundle *refdata.Bundle
}

func main() {
	ctx := context.Background()

	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	app := &App{Config: cfg}

	// Reference data: Postgres when configured, embedded datasets otherwise.
	// A failed database load falls back to embedded rather than aborting.
	if cfg.Database.Enabled {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			log.Warn("database not available; using embedded reference data", zap.Error(err))
		} else {
			app.DB = db
			defer db.Close()
			bundle, err := refdata.LoadFromPostgres(ctx, db.Pool)
			if err != nil {
				log.Warn("reference data load from database failed; using embedded datasets", zap.Error(err))
			} else {
				app.Bundle = bundle
				log.Info("reference data loaded from database")
			}
		}
	}
	if app.Bundle == nil {
		bundle, err := refdata.LoadEmbedded()
		if err != nil {
			log.Fatal("embedded reference data failed to load", zap.Error(err))
		}
		app.Bundle = bundle
		log.Info("embedded reference data loaded")
	}

	// Generation service is optional; without it the taper selector uses
	// its deterministic fallbacks.
	var generator taper.Generator
	if cfg.GenAI.Enabled {
		app.GenAI = genai.NewClient(cfg.GenAI, log)
		generator = app.GenAI
		log.Info("generation service enabled", zap.String("url", cfg.GenAI.URL), zap.String("model", cfg.GenAI.Model))
	}

	planner := taper.NewPlanner(app.Bundle, generator, log)
	service := analysis.NewService(app.Bundle, planner, log)
	handler := analysis.NewHandler(service)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}
		r.Mount("/", handler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
		close(done)
	}()

	log.Info("deprescribing decision support service started",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("database", app.DB != nil),
		zap.Bool("generation", cfg.GenAI.Enabled))

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}

	<-done
	log.Info("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Deprescribing Decision Support Service",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server":         "ready",
			"reference_data": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.GenAI != nil {
			if err := app.GenAI.Health(r.Context()); err != nil {
				checks["generation"] = "not ready: " + err.Error()
			} else {
				checks["generation"] = "ready"
			}
		} else {
			checks["generation"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
