package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"media-transcript-go/internal/api"
	"media-transcript-go/internal/app"
	"media-transcript-go/internal/config"
	"media-transcript-go/internal/logger"
)

func main() {
	_ = godotenv.Load() // loads .env

	cfg, path, exists, err := config.Load("")
	if err != nil {
		logger.New().WithError(err).Fatal("invalid configuration")
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log.WithField("service", "media-transcript-go").
		WithField("config", path).
		WithField("config_found", exists).
		Info("starting service")

	a, err := app.Build(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("ffmpeg is required")
	}
	for _, s := range a.Deps {
		log.WithField("dependency", s.Name).WithField("available", s.Available).WithField("path", s.Path).Debug("dependency check")
	}

	handler := api.NewHandler(a.Session, cfg.Server.MaxUploadMB<<20, log)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(handler, cfg.Server.CORSOrigins, log),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
	if err := a.Session.Close(); err != nil {
		log.WithError(err).Warn("session teardown failed")
	}
}
