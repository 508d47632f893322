package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/linkgrab/internal/api"
	"github.com/iconidentify/linkgrab/internal/api/handler"
	"github.com/iconidentify/linkgrab/internal/config"
	"github.com/iconidentify/linkgrab/internal/control"
	"github.com/iconidentify/linkgrab/internal/service"
	"github.com/iconidentify/linkgrab/pkg/ffmpeg"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("linkgrab-server %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting linkgrab",
		"version", Version,
		"build_time", BuildTime,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid server config", "error", err)
		os.Exit(1)
	}

	eventSvc, err := service.NewEventService(cfg.Events, logger.With("component", "events"))
	if err != nil {
		logger.Error("failed to create event service", "error", err)
		os.Exit(1)
	}
	defer eventSvc.Close()

	remuxAvailable := false
	if remuxer, err := ffmpeg.NewRemuxer(cfg.Download.FFmpegPath); err == nil {
		remuxAvailable = true
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if version, err := remuxer.Version(ctx); err == nil {
			logger.Info("remux tool available", "ffmpeg_version", version)
		}
		cancel()
	}

	embedSvc, err := service.NewEmbedServiceFromConfig(cfg, eventSvc, logger)
	if err != nil {
		logger.Error("failed to create embed service", "error", err)
		os.Exit(1)
	}

	registry := control.NewRegistry(logger.With("component", "controls"))
	defer registry.Close()

	controlHandler := handler.NewControlHandler(registry, logger)
	router := api.NewRouter(
		handler.NewHealthHandler(registry, eventSvc, remuxAvailable),
		handler.NewEmbedHandler(embedSvc, controlHandler.Register, logger),
		controlHandler,
		handler.NewEventHandler(eventSvc, logger),
		cfg.Server.APIKey,
		logger,
	)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
