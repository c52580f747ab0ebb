package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	trackingapi "github.com/BearBump/OrderTrack/internal/api/tracking_api"
	"github.com/BearBump/OrderTrack/internal/integrations/orders"
	"github.com/BearBump/OrderTrack/internal/metrics"
	"github.com/BearBump/OrderTrack/internal/obs"
	"github.com/BearBump/OrderTrack/internal/services/tracking"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type trackAPIOpts struct {
	grpcAddr    string
	httpAddr    string
	swaggerPath string

	requestTimeout     time.Duration
	rateLimitPerMinute int64

	topic         string
	consumerGroup string

	onListen func(grpcAddr, httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(ctx context.Context, msg kafka.Message) error) error
}

type trackAPIDeps struct {
	svc     *tracking.Service
	orders  orders.Directory
	limiter trackingapi.RateLimiter
	reg     *prometheus.Registry
	ready   func(ctx context.Context) error
	log     *slog.Logger

	// consumer is optional; handle is required with it.
	consumer kafkaConsumer
	handle   func(ctx context.Context, msg kafka.Message) error
}

func runTrackAPI(ctx context.Context, opts trackAPIOpts, deps trackAPIDeps) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}
	if deps.log == nil {
		deps.log = slog.Default()
	}
	if deps.reg == nil {
		deps.reg = prometheus.NewRegistry()
	}

	grpcLis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	if opts.onListen != nil {
		opts.onListen(grpcLis.Addr().String(), httpLis.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runGRPCServer(gctx, grpcLis, deps.log)
	})
	g.Go(func() error {
		return runGatewayServer(gctx, httpLis, opts, deps)
	})
	if deps.consumer != nil {
		g.Go(func() error {
			consumeLoop(gctx, opts, deps)
			return nil
		})
	}

	<-gctx.Done()
	if err := g.Wait(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

// consumeLoop restarts consumption with backoff after a transient failure until ctx is done.
func consumeLoop(ctx context.Context, opts trackAPIOpts, deps trackAPIDeps) {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Second),
		backoff.WithMaxInterval(30*time.Second),
		backoff.WithMaxElapsedTime(0),
	)
	deps.log.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
	_ = backoff.RetryNotify(func() error {
		err := deps.consumer.Consume(ctx, deps.handle)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		deps.log.Error("kafka consumer stopped, restarting", "error", err.Error(), "retry_in", next.String())
	})
	deps.log.Info("kafka consumer stopped", "topic", opts.topic)
}

func runGRPCServer(ctx context.Context, lis net.Listener, log *slog.Logger) error {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			s.Stop()
		}
		_ = lis.Close()
	}()

	log.Info("gRPC server listening", "addr", lis.Addr().String())
	if err := s.Serve(lis); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runGatewayServer(ctx context.Context, lis net.Listener, opts trackAPIOpts, deps trackAPIDeps) error {
	mux := runtime.NewServeMux()
	if err := trackingapi.New(deps.svc, deps.orders, deps.log).Register(mux); err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(obs.HTTPMiddleware(deps.log, metrics.NewHTTP(deps.reg)))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", readyHandler(deps.ready))
	r.Handle("/metrics", promhttp.HandlerFor(deps.reg, promhttp.HandlerOpts{}))

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	r.Group(func(r chi.Router) {
		if opts.requestTimeout > 0 {
			r.Use(middleware.Timeout(opts.requestTimeout))
		}
		r.Use(trackingapi.RateLimit(deps.limiter, opts.rateLimitPerMinute, deps.log))
		r.Mount("/", mux)
	})

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	deps.log.Info("HTTP gateway listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func readyHandler(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}
