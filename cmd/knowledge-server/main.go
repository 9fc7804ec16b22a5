// Vish knowledge server: crisis resources, coping strategies, CBT techniques
// and topic search over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/vish/internal/config"
	"github.com/ashureev/vish/internal/mcp"
	"github.com/ashureev/vish/internal/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	kb, err := loadKnowledgeBase(os.Getenv("KNOWLEDGE_BASE_FILE"))
	if err != nil {
		slog.Error("Failed to load knowledge base", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", mcp.NewServer(kb, logger).Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.KnowledgeServerPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Knowledge server listening", "addr", srv.Addr, "tools", len(mcp.KnownTools))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// loadKnowledgeBase reads path, or the embedded knowledge base when path is
// empty.
func loadKnowledgeBase(path string) (*mcp.KnowledgeBase, error) {
	if path == "" {
		return mcp.DefaultKnowledgeBase()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return mcp.ParseKnowledgeBase(data)
}
