package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/clearcut/internal/api"
	"github.com/timmy/clearcut/internal/config"
	"github.com/timmy/clearcut/internal/logger"
	"github.com/timmy/clearcut/internal/notify"
	"github.com/timmy/clearcut/internal/provider"
	"github.com/timmy/clearcut/internal/repository"
	"github.com/timmy/clearcut/internal/service"
	"github.com/timmy/clearcut/internal/storage"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// CONFIG_PATH points at the config file in container deployments.
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to get database handle")
	}
	defer sqlDB.Close()

	records := repository.NewJobRecordRepository(db)

	var mirror service.Mirror
	if cfg.Storage.Enabled {
		objectStorage, err := storage.NewStorage(&cfg.Storage)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := objectStorage.EnsureBucket(context.Background()); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
		mirror = service.NewResultMirror(objectStorage, cfg.Provider.Timeout)
		appLogger.WithField("bucket", cfg.Storage.Bucket).Info("Result mirroring enabled")
	}

	client := provider.NewClient(&provider.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
	})

	router := notify.NewRouter(cfg.Webhook.Host)
	cfg.Watch(func(next *config.Config) {
		router.SetCallbackBase(next.Webhook.Host)
		logger.With(logger.Fields{logger.FieldMode: string(router.Route().Mode)}).
			Info(context.Background(), "Config reloaded, webhook host=%q", next.Webhook.Host)
	})
	appLogger.WithFields(logger.Fields{
		logger.FieldMode: string(router.Route().Mode),
		"webhook_host":   cfg.Webhook.Host,
	}).Info("Notification routing configured")

	jobs := service.NewJobService(client, records, router, mirror, &service.JobConfig{
		PollInterval: cfg.Provider.PollInterval,
		WaitTimeout:  cfg.Server.WaitTimeout,
	})
	defer jobs.Close()

	engine := api.SetupRouter(jobs, sqlDB.PingContext, &cfg.Server)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads may wait for the provider up to WaitTimeout before answering.
		WriteTimeout: cfg.Server.WaitTimeout + 30*time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
