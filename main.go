package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/msomdec/portfolio-users/internal/config"
	"github.com/msomdec/portfolio-users/internal/domain"
	"github.com/msomdec/portfolio-users/internal/handler"
	"github.com/msomdec/portfolio-users/internal/repository/postgres"
	"github.com/msomdec/portfolio-users/internal/repository/sqlite"
	"github.com/msomdec/portfolio-users/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Log.NewLogger(os.Stdout, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied", "driver", cfg.Database.Driver)

	userService := service.NewUserService(db.Users(), logger)

	limiter := handler.NewTokenBucket(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer limiter.Stop()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, userService, limiter, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           handler.RequestLogger(logger, handler.SecurityHeaders(mux)),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return
	}
	logger.Info("server stopped")
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (domain.Database, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.URL, postgres.Options{
			MaxConns:    cfg.MaxConns,
			ConnTimeout: cfg.ConnTimeout,
		}, logger)
	default:
		return sqlite.New(cfg.Path, logger)
	}
}
