package static

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/OrderTrack/internal/integrations/orders"
	"github.com/pkg/errors"
)

// Directory answers from a fixed set of orders. Unknown orders get the fallback date
// when one is configured.
type Directory struct {
	mu       sync.RWMutex
	placed   map[uint64]time.Time
	fallback time.Time
}

func New(fallback time.Time) *Directory {
	return &Directory{placed: make(map[uint64]time.Time), fallback: fallback}
}

func (d *Directory) Set(orderID uint64, placedAt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.placed[orderID] = placedAt.UTC()
}

func (d *Directory) PlacementDate(_ context.Context, orderID uint64) (time.Time, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if t, ok := d.placed[orderID]; ok {
		return t, nil
	}
	if !d.fallback.IsZero() {
		return d.fallback, nil
	}
	return time.Time{}, errors.Wrapf(orders.ErrOrderNotFound, "order %d", orderID)
}
