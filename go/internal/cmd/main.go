package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Store.Close()

	// Start room manager (broadcast loop and room actors)
	go services.Manager.Start(ctx)

	// Start cross-node bridge if configured
	if services.Bridge != nil {
		go func() {
			if err := services.Bridge.Start(ctx, services.Manager); err != nil {
				log.Error().Err(err).Msg("room event bridge failed")
			}
		}()
	}

	server := setupServer(config, services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stop room loops and the bridge
	cancel()

	// Give services time to clean up
	time.Sleep(1 * time.Second)

	log.Info().Msg("shutdown complete")
}
