package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/castilloj/audio-transcribe/internal/app"
	"github.com/castilloj/audio-transcribe/internal/audio"
	"github.com/castilloj/audio-transcribe/internal/config"
	"github.com/castilloj/audio-transcribe/internal/logging"
	"github.com/castilloj/audio-transcribe/internal/metrics"
	"github.com/castilloj/audio-transcribe/internal/server"
	"github.com/castilloj/audio-transcribe/internal/transcription"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("audio-transcribe %s (%s)\n", Version, Commit)
		return
	}

	// Optional .env overlay for development setups.
	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logging.NewWithLevel(cfg.LogLevel)
	met := metrics.New(prometheus.DefaultRegisterer)

	backend, err := audio.NewPortAudioBackend()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio backend")
	}
	defer backend.Close()

	client := transcription.NewClient(transcription.ClientConfig{
		Endpoint:   cfg.Transcription.Endpoint,
		APIKey:     cfg.Transcription.APIKey,
		Language:   cfg.Transcription.Language,
		Model:      cfg.Transcription.Model,
		Timeout:    cfg.Transcription.Timeout(),
		MaxRetries: cfg.Transcription.MaxRetries,
	}, log)
	sink := transcription.NewEnergyGate(client, log)

	application := app.New(cfg, backend, sink, log, met)
	srv := server.New(cfg.Server, application, log, met)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", Version).Msg("audio-transcribe starting")

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Server error")
	}

	if err := application.StopCapture(); err != nil && !errors.Is(err, app.ErrCaptureNotActive) {
		log.Error().Err(err).Msg("Shutdown error")
	}
	log.Info().Msg("Shutdown complete")
}
