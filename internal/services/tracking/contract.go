package tracking

import (
	"context"
	"time"

	"github.com/BearBump/OrderTrack/internal/models"
)

// Repository is the persistence contract of the tracking core. Lookups by id return
// models.ErrNotFound for missing rows; GetAllOrderCheckpoints promises no ordering.
type Repository interface {
	GetTrackedOrderByID(ctx context.Context, id uint64) (*models.TrackedOrder, error)
	GetOrderCheckpointByID(ctx context.Context, id uint64) (*models.OrderCheckpoint, error)
	GetAllTrackedOrders(ctx context.Context) ([]*models.TrackedOrder, error)
	GetAllOrderCheckpoints(ctx context.Context, trackedOrderID uint64) ([]*models.OrderCheckpoint, error)
	ListTrackedOrdersAfter(ctx context.Context, afterID uint64, limit int) ([]*models.TrackedOrder, error)
	AddTrackedOrder(ctx context.Context, to *models.TrackedOrder) (uint64, error)
	AddOrderCheckpoint(ctx context.Context, cp *models.OrderCheckpoint) (uint64, error)
	DeleteTrackedOrder(ctx context.Context, id uint64) (bool, error)
	DeleteOrderCheckpoint(ctx context.Context, id uint64) (bool, error)
	UpdateTrackedOrder(ctx context.Context, id uint64, estimatedDeliveryDate time.Time, status string) error
	UpdateOrderCheckpoint(ctx context.Context, id uint64, ts time.Time, location *string, description, status string) error
}

// Locker serializes work on one tracked order.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// TxManager runs fn in one transaction carried by the context.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type Metrics interface {
	ObserveRevert(result string)
	ObserveCheckpoint(op string)
	ObserveStatusSync()
}

type noopMetrics struct{}

func (noopMetrics) ObserveRevert(string)     {}
func (noopMetrics) ObserveCheckpoint(string) {}
func (noopMetrics) ObserveStatusSync()       {}
