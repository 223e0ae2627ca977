package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"live-caption-service/internal/app"
	"live-caption-service/internal/config"
	"live-caption-service/internal/observability"
)

func main() {
	// optional .env for local development
	_ = godotenv.Load()

	cfg := config.Load()

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("application init failed")
	}
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("application start failed")
	}

	obs := observability.NewServer(cfg.Service.MetricsAddr, application.Ready)
	obs.Start()

	server := &http.Server{
		Addr:        cfg.Service.HTTPAddr,
		Handler:     application.Router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		application.Logger.Info().Str("addr", cfg.Service.HTTPAddr).Msg("live caption service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	application.Logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		application.Logger.Warn().Err(err).Msg("http shutdown failed")
	}
	application.Shutdown(shutdownCtx)
	if err := obs.Shutdown(shutdownCtx); err != nil {
		application.Logger.Warn().Err(err).Msg("observability shutdown failed")
	}
}
