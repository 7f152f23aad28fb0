package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dvloznov/payment-snap/internal/api/handlers"
	"github.com/dvloznov/payment-snap/internal/api/middleware"
	"github.com/dvloznov/payment-snap/internal/app"
	"github.com/dvloznov/payment-snap/internal/config"
	"github.com/dvloznov/payment-snap/internal/logger"
)

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithOptions(os.Stdout, logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	apiLog := logger.WithComponent(log, logger.ComponentAPI)
	mux := handlers.NewRouter(application.Service, apiLog)

	if cfg.APIToken == "" {
		log.Warn().Msg("API_TOKEN not set - API is unauthenticated")
	}

	// Inference on a screenshot can take a while; the write timeout
	// covers extraction plus categorization.
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      middleware.Chain(mux, apiLog, cfg.APIToken),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.Inference.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("store", cfg.StoreBackend).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
