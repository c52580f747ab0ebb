package main

import (
	"context"
	"log/slog"

	"github.com/BearBump/OrderTrack/config"
	"github.com/BearBump/OrderTrack/internal/app"
	"github.com/BearBump/OrderTrack/internal/services/reconciler"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

type workerFactories struct {
	newTracking func(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, log *slog.Logger) (*app.Tracking, error)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newTracking: func(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, log *slog.Logger) (*app.Tracking, error) {
			return app.NewTracking(ctx, cfg, app.DefaultFactories(), reg, log)
		},
	}
}

type workerOpts struct {
	swaggerPath string
	onListen    func(httpAddr string)
}

func RunTrackWorker(ctx context.Context, cfg *config.Config, f workerFactories, opts workerOpts, log *slog.Logger) error {
	reg := prometheus.NewRegistry()

	tr, err := f.newTracking(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer tr.Close()

	rec := reconciler.New(tr.Service, tr.Metrics, log).
		WithSettings(cfg.Tracking.ReconcileInterval(), cfg.Tracking.ReconcileBatchSize, cfg.Tracking.ReconcileConcurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rec.Run(gctx)
	})
	g.Go(func() error {
		return runWorkerHTTPServer(gctx, workerHTTPOpts{
			httpAddr:    cfg.Tracking.WorkerHTTPAddr,
			swaggerPath: opts.swaggerPath,
			onListen:    opts.onListen,
			reconciler:  rec,
			cfg:         cfg,
			reg:         reg,
			ready:       tr.Ready,
			log:         log,
		})
	})
	return g.Wait()
}
