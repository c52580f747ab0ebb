package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/OrderTrack/config"
	"github.com/BearBump/OrderTrack/internal/cache/rediscache"
	"github.com/BearBump/OrderTrack/internal/lock"
	"github.com/BearBump/OrderTrack/internal/metrics"
	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/internal/services/tracking"
	"github.com/BearBump/OrderTrack/internal/storage/memtracking"
	"github.com/BearBump/OrderTrack/internal/storage/pgtracking"
	"github.com/BearBump/OrderTrack/pkg/retrier"
	"github.com/BearBump/OrderTrack/pkg/tx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const postgresWait = 60 * time.Second

// Storage is a repository together with its transaction manager.
type Storage struct {
	Repo  tracking.Repository
	Tx    tracking.TxManager
	Ping  func(ctx context.Context) error
	Close func()
}

type Factories struct {
	NewStorage func(ctx context.Context, cfg *config.Config) (*Storage, error)
	NewRedis   func(cfg *config.Config) *redis.Client
}

func DefaultFactories() Factories {
	return Factories{
		NewStorage: newStorage,
		NewRedis: func(cfg *config.Config) *redis.Client {
			if !cfg.Redis.Enabled() {
				return nil
			}
			return rediscache.NewClient(cfg.Redis.Addr())
		},
	}
}

func newStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg.Tracking.Storage == config.StorageMemory {
		return &Storage{Repo: memtracking.New(), Tx: tx.Noop{}}, nil
	}
	st, err := OpenPostgres(ctx, cfg.Database.DSN(), postgresWait)
	if err != nil {
		return nil, err
	}
	return &Storage{
		Repo:  st,
		Tx:    tx.New(st.Pool()),
		Ping:  st.Pool().Ping,
		Close: st.Close,
	}, nil
}

// OpenPostgres connects and migrates, retrying until wait elapses.
func OpenPostgres(ctx context.Context, dsn string, wait time.Duration) (*pgtracking.Storage, error) {
	rc := retrier.DefaultConfig()
	rc.InitialInterval = 500 * time.Millisecond
	rc.MaxInterval = 5 * time.Second
	rc.MaxElapsedTime = wait

	var st *pgtracking.Storage
	err := retrier.New(rc).ExecuteWithContext(ctx, func(context.Context) error {
		var err error
		st, err = pgtracking.New(dsn)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "postgres is not ready after %s", wait)
	}
	return st, nil
}

// Tracking holds a wired tracking service and the resources behind it.
type Tracking struct {
	Service *tracking.Service
	Metrics *metrics.Tracking
	Redis   *redis.Client

	storage *Storage
}

func NewTracking(ctx context.Context, cfg *config.Config, f Factories, reg prometheus.Registerer, log *slog.Logger) (*Tracking, error) {
	st, err := f.NewStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	m := metrics.NewTracking(reg)

	opts := []tracking.Option{
		tracking.WithTxManager(st.Tx),
		tracking.WithMetrics(m),
		tracking.WithLogger(log),
	}
	if len(cfg.Tracking.Statuses) > 0 {
		opts = append(opts, tracking.WithStatuses(models.NewStatusSet(cfg.Tracking.Statuses...)))
	}

	rc := f.NewRedis(cfg)
	if rc != nil {
		opts = append(opts,
			tracking.WithCache(rediscache.New(rc), cfg.Tracking.CacheTTL()),
			tracking.WithLocker(lock.NewRedisLocker(rc, 0), cfg.Tracking.LockTTL()),
		)
	} else {
		// single instance only: the in-process lock does not span replicas
		log.Warn("redis is not configured, using in-process locks")
		opts = append(opts, tracking.WithLocker(lock.NewLocal(), cfg.Tracking.LockTTL()))
	}

	return &Tracking{
		Service: tracking.New(st.Repo, opts...),
		Metrics: m,
		Redis:   rc,
		storage: st,
	}, nil
}

// Ready pings the database and redis.
func (t *Tracking) Ready(ctx context.Context) error {
	if t.storage.Ping != nil {
		if err := t.storage.Ping(ctx); err != nil {
			return errors.Wrap(err, "postgres")
		}
	}
	if t.Redis != nil {
		if err := t.Redis.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "redis")
		}
	}
	return nil
}

func (t *Tracking) Close() {
	if t.Redis != nil {
		_ = t.Redis.Close()
	}
	if t.storage.Close != nil {
		t.storage.Close()
	}
}
