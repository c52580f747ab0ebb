// Package memtracking is an in-process implementation of the tracking repository.
// It backs local runs (storage: memory) and service tests.
package memtracking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/pkg/errors"
)

type Storage struct {
	mu          sync.RWMutex
	orders      map[uint64]models.TrackedOrder
	checkpoints map[uint64]models.OrderCheckpoint
	nextOrderID uint64
	nextCpID    uint64
}

func New() *Storage {
	return &Storage{
		orders:      make(map[uint64]models.TrackedOrder),
		checkpoints: make(map[uint64]models.OrderCheckpoint),
	}
}

func (s *Storage) GetTrackedOrderByID(_ context.Context, id uint64) (*models.TrackedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

func (s *Storage) GetOrderCheckpointByID(_ context.Context, id uint64) (*models.OrderCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.checkpoints[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyCheckpoint(c), nil
}

func (s *Storage) GetAllTrackedOrders(_ context.Context) ([]*models.TrackedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedOrders(0, len(s.orders)), nil
}

func (s *Storage) ListTrackedOrdersAfter(_ context.Context, afterID uint64, limit int) ([]*models.TrackedOrder, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedOrders(afterID, limit), nil
}

func (s *Storage) sortedOrders(afterID uint64, limit int) []*models.TrackedOrder {
	out := make([]*models.TrackedOrder, 0, len(s.orders))
	for id, t := range s.orders {
		if id <= afterID {
			continue
		}
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Storage) GetAllOrderCheckpoints(_ context.Context, trackedOrderID uint64) ([]*models.OrderCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.OrderCheckpoint{}
	for _, c := range s.checkpoints {
		if c.TrackedOrderID == trackedOrderID {
			out = append(out, copyCheckpoint(c))
		}
	}
	return out, nil
}

func (s *Storage) AddTrackedOrder(_ context.Context, t *models.TrackedOrder) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orders {
		if existing.OrderID == t.OrderID {
			return 0, errors.Wrapf(models.ErrConflict, "order %d is already tracked", t.OrderID)
		}
	}
	s.nextOrderID++
	stored := *t
	stored.ID = s.nextOrderID
	stored.EstimatedDeliveryDate = models.TruncateDate(t.EstimatedDeliveryDate)
	s.orders[stored.ID] = stored
	return stored.ID, nil
}

func (s *Storage) AddOrderCheckpoint(_ context.Context, c *models.OrderCheckpoint) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[c.TrackedOrderID]; !ok {
		return 0, errors.Wrapf(models.ErrNotFound, "tracked order %d", c.TrackedOrderID)
	}
	s.nextCpID++
	stored := *copyCheckpoint(*c)
	stored.ID = s.nextCpID
	stored.Timestamp = c.Timestamp.UTC()
	s.checkpoints[stored.ID] = stored
	return stored.ID, nil
}

func (s *Storage) DeleteTrackedOrder(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return false, nil
	}
	delete(s.orders, id)
	for cid, c := range s.checkpoints {
		if c.TrackedOrderID == id {
			delete(s.checkpoints, cid)
		}
	}
	return true, nil
}

func (s *Storage) DeleteOrderCheckpoint(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checkpoints[id]; !ok {
		return false, nil
	}
	delete(s.checkpoints, id)
	return true, nil
}

func (s *Storage) UpdateTrackedOrder(_ context.Context, id uint64, estimatedDeliveryDate time.Time, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.orders[id]
	if !ok {
		return models.ErrNotFound
	}
	t.EstimatedDeliveryDate = models.TruncateDate(estimatedDeliveryDate)
	t.CurrentStatus = status
	s.orders[id] = t
	return nil
}

func (s *Storage) UpdateOrderCheckpoint(_ context.Context, id uint64, ts time.Time, location *string, description, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.checkpoints[id]
	if !ok {
		return models.ErrNotFound
	}
	c.Timestamp = ts.UTC()
	c.Location = copyString(location)
	c.Description = description
	c.Status = status
	s.checkpoints[id] = c
	return nil
}

func copyCheckpoint(c models.OrderCheckpoint) *models.OrderCheckpoint {
	c.Location = copyString(c.Location)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
