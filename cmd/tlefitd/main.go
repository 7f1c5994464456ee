package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/star/tlefit/internal/api"
	"github.com/star/tlefit/internal/auth"
	"github.com/star/tlefit/internal/catalog"
	"github.com/star/tlefit/internal/fit"
	"github.com/star/tlefit/internal/metrics"
	"github.com/star/tlefit/internal/propagation"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("TLEFIT_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	trustProxy := false
	if v := os.Getenv("TLEFIT_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid TLEFIT_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			trustProxy = b
		}
	}

	fitOpts := loadFitOptions(logger)
	workers := loadWorkers(logger)

	fitter := fit.New(propagation.NewSGP4(), fitOpts, logger)
	pool := fit.NewPool(workers, fitter, logger)
	store := catalog.NewStore()
	fetcher := catalog.NewFetcher(os.Getenv("TLEFIT_CATALOG_URL"), logger)

	srv := api.NewServer(api.Config{
		Addr:       addr,
		TrustProxy: trustProxy,
		Auth:       authCfg,
	}, api.Deps{
		Fitter:  fitter,
		Pool:    pool,
		Store:   store,
		Fetcher: fetcher,
	}, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background goroutine to update the catalog age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := store.AgeSeconds()
				if age >= 0 {
					metrics.SetCatalogAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"fit_workers", workers,
			"catalog_url", fetcher.SourceURL(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("TLEFIT_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("TLEFIT_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("TLEFIT_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("TLEFIT_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadWorkers(logger *slog.Logger) int {
	workers := runtime.NumCPU()
	if v := os.Getenv("TLEFIT_FIT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid TLEFIT_FIT_WORKERS value, using default", "value", v, "default", workers)
		} else {
			workers = n
		}
	}
	return workers
}

func loadFitOptions(logger *slog.Logger) fit.Options {
	cfg := fit.DefaultOptions()

	if v := os.Getenv("TLEFIT_FIT_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid TLEFIT_FIT_MAX_ITERATIONS value, using default", "value", v, "default", cfg.MaxIterations)
		} else {
			cfg.MaxIterations = n
		}
	}

	if v := os.Getenv("TLEFIT_FIT_POS_TOL_KM"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			logger.Warn("invalid TLEFIT_FIT_POS_TOL_KM value, using default", "value", v, "default", cfg.PosTolKm)
		} else {
			cfg.PosTolKm = f
		}
	}

	if v := os.Getenv("TLEFIT_FIT_VEL_TOL_KMS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			logger.Warn("invalid TLEFIT_FIT_VEL_TOL_KMS value, using default", "value", v, "default", cfg.VelTolKmS)
		} else {
			cfg.VelTolKmS = f
		}
	}

	logger.Info("fit config",
		"max_iterations", cfg.MaxIterations,
		"pos_tol_km", cfg.PosTolKm,
		"vel_tol_km_s", cfg.VelTolKmS,
	)

	return cfg
}
