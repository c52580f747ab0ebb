package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/OrderTrack/config"
	"github.com/BearBump/OrderTrack/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}

	log := obs.NewLogger(cfg.Log.Level, cfg.Log.Format).With("service", "track-worker")
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   "track-worker",
		Endpoint:      cfg.Tracing.Endpoint,
		SamplingRatio: cfg.Tracing.SamplingRatio,
	})
	if err != nil {
		panic(fmt.Sprintf("tracing: %v", err))
	}
	defer func() { _ = shutdown(context.Background()) }()

	err = RunTrackWorker(ctx, cfg, defaultWorkerFactories(), workerOpts{
		swaggerPath: os.Getenv("workerSwaggerPath"),
	}, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("track-worker stopped", "error", err.Error())
		os.Exit(1)
	}
}
