package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/clearcut/internal/config"
	"github.com/timmy/clearcut/internal/domain"
	"github.com/timmy/clearcut/internal/logger"
	"github.com/timmy/clearcut/internal/notify"
	"github.com/timmy/clearcut/internal/provider"
	"github.com/timmy/clearcut/internal/repository"
	"github.com/timmy/clearcut/internal/service"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "clearcut-jobctl",
	})
	logger.SetDefaultLogger(appLogger)

	filePath := flag.String("file", "", "Path of a video file to upload")
	videoURL := flag.String("url", "", "URL of a video to process")
	format := flag.String("format", string(domain.FormatMP4), "Output format: pro_bundle, gif or mp4")
	push := flag.Bool("push", false, "Ask the provider to call back the configured webhook host instead of polling")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid config")
	}

	input := domain.VideoInput{URL: *videoURL}
	if *filePath != "" {
		data, err := os.ReadFile(*filePath)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to read video file")
		}
		input.Filename = *filePath
		input.Data = data
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	client := provider.NewClient(&provider.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
	})

	// This process cannot receive callbacks itself, so it polls unless told otherwise.
	callbackBase := ""
	if *push {
		callbackBase = cfg.Webhook.Host
	}
	jobs := service.NewJobService(client, repository.NewJobRecordRepository(db), notify.NewRouter(callbackBase), nil, &service.JobConfig{
		PollInterval: cfg.Provider.PollInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job, err := jobs.Submit(ctx, service.SubmitRequest{Input: input, Format: *format})
	if err != nil {
		appLogger.WithError(err).Fatal("Submission failed")
	}
	fmt.Fprintf(os.Stderr, "submitted %s (%s, %s)\n", job.ID, job.Format, job.Mode)

	if job.Mode == domain.ModePush {
		fmt.Println(job.ID)
		return
	}

	resultURL, err := jobs.Await(ctx, job)
	if err != nil {
		var failed *domain.ProcessingFailedError
		if errors.As(err, &failed) {
			appLogger.WithField(logger.FieldJobID, job.ID).Error("Processing failed at the provider")
			os.Exit(2)
		}
		appLogger.WithError(err).WithField(logger.FieldJobID, job.ID).Fatal("Waiting for job failed")
	}
	fmt.Println(resultURL)
}
