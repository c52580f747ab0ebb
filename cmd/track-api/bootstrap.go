package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/OrderTrack/config"
	trackingapi "github.com/BearBump/OrderTrack/internal/api/tracking_api"
	"github.com/BearBump/OrderTrack/internal/app"
	"github.com/BearBump/OrderTrack/internal/broker/ingest"
	"github.com/BearBump/OrderTrack/internal/broker/kafka"
	"github.com/BearBump/OrderTrack/internal/cache/rediscache"
	"github.com/BearBump/OrderTrack/internal/integrations/orders"
	"github.com/BearBump/OrderTrack/internal/integrations/orders/orderhttp"
	"github.com/BearBump/OrderTrack/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type trackAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     trackAPIOpts
	deps     trackAPIDeps
	tracking *app.Tracking
	closers  []func() error
	shutdown func(context.Context) error
}

func mustBootstrapTrackAPI() *trackAPIApp {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	log := obs.NewLogger(cfg.Log.Level, cfg.Log.Format).With("service", "track-api")
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   "track-api",
		Endpoint:      cfg.Tracing.Endpoint,
		SamplingRatio: cfg.Tracing.SamplingRatio,
	})
	if err != nil {
		panic(fmt.Sprintf("tracing: %v", err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tr, err := app.NewTracking(ctx, cfg, app.DefaultFactories(), reg, log)
	if err != nil {
		panic(err)
	}

	a := &trackAPIApp{
		ctx:      ctx,
		cancel:   cancel,
		tracking: tr,
		shutdown: shutdown,
		opts: trackAPIOpts{
			grpcAddr:           cfg.Tracking.GRPCAddr,
			httpAddr:           cfg.Tracking.HTTPAddr,
			swaggerPath:        swaggerPath,
			requestTimeout:     cfg.Tracking.RequestTimeout(),
			rateLimitPerMinute: cfg.Tracking.RateLimitPerMinute,
			topic:              cfg.Kafka.CheckpointReportedTopicName,
			consumerGroup:      cfg.Tracking.KafkaConsumerGroup,
		},
		deps: trackAPIDeps{
			svc:    tr.Service,
			orders: newDirectory(cfg, log),
			reg:    reg,
			ready:  tr.Ready,
			log:    log,
		},
	}
	if tr.Redis != nil {
		a.deps.limiter = rediscache.NewRateLimiter(tr.Redis)
	}

	if cfg.Kafka.Enabled() {
		brokers := cfg.Kafka.Brokers()
		consumer := kafka.NewConsumer(brokers, cfg.Kafka.CheckpointReportedTopicName, cfg.Tracking.KafkaConsumerGroup)
		producer := kafka.NewProducer(brokers)
		h := ingest.NewHandler(tr.Service, producer, cfg.Kafka.DeadLetterTopicName, tr.Metrics, log)
		a.deps.consumer = consumer
		a.deps.handle = h.Handle
		a.closers = append(a.closers, consumer.Close, producer.Close)
	} else {
		log.Warn("kafka is not configured, checkpoint ingestion disabled")
	}
	return a
}

func newDirectory(cfg *config.Config, log *slog.Logger) orders.Directory {
	if cfg.Orders.BaseURL == "" {
		log.Warn("order service is not configured, delivery dates are not checked against placement dates")
		return nil
	}
	return orderhttp.New(cfg.Orders.BaseURL, cfg.Orders.Timeout(), log)
}

func (a *trackAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		_ = c()
	}
	if a.tracking != nil {
		a.tracking.Close()
	}
	if a.shutdown != nil {
		_ = a.shutdown(context.Background())
	}
}

func (a *trackAPIApp) Run() error {
	return runTrackAPI(a.ctx, a.opts, a.deps)
}

var _ trackingapi.RateLimiter = (*rediscache.RateLimiter)(nil)
