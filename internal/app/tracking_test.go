package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BearBump/OrderTrack/config"
	"github.com/BearBump/OrderTrack/internal/cache/rediscache"
	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig() *config.Config {
	return &config.Config{Tracking: config.TrackingConfig{
		Storage:         config.StorageMemory,
		Statuses:        []string{"processing", "shipped"},
		CacheTTLSeconds: 60,
	}}
}

func TestNewTracking_MemoryWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	f := DefaultFactories()
	f.NewRedis = func(*config.Config) *redis.Client { return rediscache.NewClient(mr.Addr()) }

	ctx := context.Background()
	tr, err := NewTracking(ctx, memoryConfig(), f, prometheus.NewRegistry(), quietLogger())
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Ready(ctx))
	require.Equal(t, []string{"PROCESSING", "SHIPPED"}, tr.Service.Statuses().List())

	to, _, err := tr.Service.CreateTrackedOrder(ctx,
		&models.TrackedOrder{OrderID: 1, EstimatedDeliveryDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		&models.OrderCheckpoint{Description: "created", Status: "PROCESSING"})
	require.NoError(t, err)

	_, found, err := tr.Service.GetTrackedOrder(ctx, to.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, mr.Exists("tracking:1:current"))

	mr.Close()
	require.Error(t, tr.Ready(ctx))
}

func TestNewTracking_WithoutRedis(t *testing.T) {
	ctx := context.Background()
	tr, err := NewTracking(ctx, memoryConfig(), DefaultFactories(), prometheus.NewRegistry(), quietLogger())
	require.NoError(t, err)
	defer tr.Close()

	require.Nil(t, tr.Redis)
	require.NoError(t, tr.Ready(ctx))
}

func TestOpenPostgres_GivesUp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := OpenPostgres(ctx, "postgres://u:p@127.0.0.1:1/db?sslmode=disable", time.Second)
	require.Error(t, err)
}
