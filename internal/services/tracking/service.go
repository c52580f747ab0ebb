package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/BearBump/OrderTrack/internal/cache"
	"github.com/BearBump/OrderTrack/internal/lock"
	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/pkg/tx"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/BearBump/OrderTrack/internal/services/tracking")

const (
	defaultLockTTL = 15 * time.Second
	cacheStripes   = 64
)

type Service struct {
	repo     Repository
	cache    cache.BytesCache
	cacheTTL time.Duration
	locker   Locker
	lockTTL  time.Duration
	tx       TxManager
	statuses models.StatusSet
	metrics  Metrics
	now      func() time.Time
	log      *slog.Logger

	// bumped on every invalidation; a fill that raced one is dropped
	gens [cacheStripes]atomic.Uint64
}

type Option func(*Service)

// WithCache enables read-through caching of tracked orders. A zero ttl disables it.
//
// Fills racing an invalidation made by this Service are dropped. Writes made
// through another process only reach this cache through that process's Del, so
// a fill that lands after it may serve the old order for up to ttl.
func WithCache(c cache.BytesCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithTxManager(m TxManager) Option {
	return func(s *Service) {
		if m != nil {
			s.tx = m
		}
	}
}

func WithStatuses(set models.StatusSet) Option {
	return func(s *Service) { s.statuses = set }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func New(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		locker:   lock.NewLocal(),
		lockTTL:  defaultLockTTL,
		tx:       tx.Noop{},
		statuses: models.DefaultStatusSet(),
		metrics:  noopMetrics{},
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Statuses returns the accepted status vocabulary.
func (s *Service) Statuses() models.StatusSet {
	return s.statuses
}

// GetTrackedOrder returns (nil, false, nil) when the order does not exist.
func (s *Service) GetTrackedOrder(ctx context.Context, id uint64) (*models.TrackedOrder, bool, error) {
	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, currentKey(id))
		if err == nil && ok {
			var t models.TrackedOrder
			if json.Unmarshal(b, &t) == nil {
				return &t, true, nil
			}
		}
	}

	gen := s.gens[id%cacheStripes].Load()
	t, err := s.repo.GetTrackedOrderByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get tracked order %d", id)
	}

	if s.cacheEnabled() {
		s.fill(ctx, id, gen, t)
	}
	return t, true, nil
}

// fill stores t unless id was invalidated since gen was read. The check is
// repeated after Set since an invalidation can land between the two.
func (s *Service) fill(ctx context.Context, id, gen uint64, t *models.TrackedOrder) {
	g := &s.gens[id%cacheStripes]
	if g.Load() != gen {
		return
	}
	b, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, currentKey(id), b, s.cacheTTL); err != nil {
		return
	}
	if g.Load() != gen {
		s.invalidate(ctx, id)
	}
}

func (s *Service) GetCheckpoint(ctx context.Context, id uint64) (*models.OrderCheckpoint, bool, error) {
	cp, err := s.repo.GetOrderCheckpointByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get checkpoint %d", id)
	}
	return cp, true, nil
}

func (s *Service) ListTrackedOrders(ctx context.Context) ([]*models.TrackedOrder, error) {
	out, err := s.repo.GetAllTrackedOrders(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list tracked orders")
	}
	return out, nil
}

// ListTrackedOrdersAfter pages tracked orders by id.
func (s *Service) ListTrackedOrdersAfter(ctx context.Context, afterID uint64, limit int) ([]*models.TrackedOrder, error) {
	out, err := s.repo.ListTrackedOrdersAfter(ctx, afterID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "page tracked orders")
	}
	return out, nil
}

// ListCheckpoints returns the history of a tracked order, oldest first.
func (s *Service) ListCheckpoints(ctx context.Context, trackedOrderID uint64) ([]*models.OrderCheckpoint, error) {
	cps, err := s.repo.GetAllOrderCheckpoints(ctx, trackedOrderID)
	if err != nil {
		return nil, errors.Wrapf(err, "list checkpoints of %d", trackedOrderID)
	}
	sortHistory(cps)
	return cps, nil
}

// History returns a tracked order together with its history, oldest first.
func (s *Service) History(ctx context.Context, trackedOrderID uint64) (*models.TrackedOrder, []*models.OrderCheckpoint, error) {
	to, err := s.repo.GetTrackedOrderByID(ctx, trackedOrderID)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "get tracked order %d", trackedOrderID)
	}
	cps, err := s.ListCheckpoints(ctx, trackedOrderID)
	if err != nil {
		return nil, nil, err
	}
	return to, cps, nil
}

// AddCheckpoint stores cp as is. The owning order's CurrentStatus is left untouched,
// and the caller is expected to supply a timestamp not older than the current checkpoint.
func (s *Service) AddCheckpoint(ctx context.Context, cp *models.OrderCheckpoint) (uint64, error) {
	if err := s.normalizeCheckpoint(cp); err != nil {
		return 0, err
	}
	if cp.TrackedOrderID == 0 {
		return 0, errors.Wrap(ErrValidation, "trackedOrderId is required")
	}
	id, err := s.repo.AddOrderCheckpoint(ctx, cp)
	if err != nil {
		return 0, errors.Wrap(err, "add checkpoint")
	}
	cp.ID = id
	s.metrics.ObserveCheckpoint("add")
	return id, nil
}

func (s *Service) AddTrackedOrder(ctx context.Context, to *models.TrackedOrder) (uint64, error) {
	if err := s.normalizeTrackedOrder(to); err != nil {
		return 0, err
	}
	id, err := s.repo.AddTrackedOrder(ctx, to)
	if err != nil {
		return 0, errors.Wrap(err, "add tracked order")
	}
	to.ID = id
	return id, nil
}

// CreateTrackedOrder stores a tracked order together with its first checkpoint.
// The order's CurrentStatus is taken from the checkpoint.
func (s *Service) CreateTrackedOrder(ctx context.Context, to *models.TrackedOrder, first *models.OrderCheckpoint) (*models.TrackedOrder, *models.OrderCheckpoint, error) {
	ctx, span := tracer.Start(ctx, "tracking.CreateTrackedOrder")
	defer span.End()

	if to == nil || first == nil {
		return nil, nil, errors.Wrap(ErrValidation, "tracked order and first checkpoint are required")
	}
	if err := s.normalizeCheckpoint(first); err != nil {
		return nil, nil, err
	}
	to.CurrentStatus = first.Status
	if err := s.normalizeTrackedOrder(to); err != nil {
		return nil, nil, err
	}

	err := s.tx.Do(ctx, func(ctx context.Context) error {
		id, err := s.repo.AddTrackedOrder(ctx, to)
		if err != nil {
			return errors.Wrap(err, "add tracked order")
		}
		first.TrackedOrderID = id
		cpID, err := s.repo.AddOrderCheckpoint(ctx, first)
		if err != nil {
			return errors.Wrap(err, "add first checkpoint")
		}
		to.ID = id
		first.ID = cpID
		return nil
	})
	if err != nil {
		endSpan(span, err)
		return nil, nil, err
	}
	span.SetAttributes(attribute.Int64("tracked_order.id", int64(to.ID)))
	s.metrics.ObserveCheckpoint("create")
	s.log.Info("tracked order created", "tracked_order_id", to.ID, "order_id", to.OrderID, "status", to.CurrentStatus)
	return to, first, nil
}

func (s *Service) DeleteCheckpoint(ctx context.Context, id uint64) (bool, error) {
	ok, err := s.repo.DeleteOrderCheckpoint(ctx, id)
	if err != nil {
		return false, errors.Wrapf(err, "delete checkpoint %d", id)
	}
	if ok {
		s.metrics.ObserveCheckpoint("delete")
	}
	return ok, nil
}

// DeleteTrackedOrder removes the order and its whole history.
func (s *Service) DeleteTrackedOrder(ctx context.Context, id uint64) (bool, error) {
	ok, err := s.repo.DeleteTrackedOrder(ctx, id)
	if err != nil {
		return false, errors.Wrapf(err, "delete tracked order %d", id)
	}
	s.invalidate(ctx, id)
	return ok, nil
}

// UpdateCheckpoint edits a checkpoint in place. History is not reordered and the
// owning order's CurrentStatus is not touched; see EditCheckpoint.
func (s *Service) UpdateCheckpoint(ctx context.Context, id uint64, ts time.Time, location *string, description, status string) error {
	cp := &models.OrderCheckpoint{Timestamp: ts, Location: location, Description: description, Status: status}
	if err := s.normalizeCheckpoint(cp); err != nil {
		return err
	}
	if err := s.repo.UpdateOrderCheckpoint(ctx, id, cp.Timestamp, cp.Location, cp.Description, cp.Status); err != nil {
		return errors.Wrapf(err, "update checkpoint %d", id)
	}
	s.metrics.ObserveCheckpoint("update")
	return nil
}

// UpdateTrackedOrder overwrites the delivery date and current status. The date is
// not validated here; callers check it against the order placement date.
func (s *Service) UpdateTrackedOrder(ctx context.Context, id uint64, estimatedDeliveryDate time.Time, currentStatus string) error {
	status := models.NormalizeStatus(currentStatus)
	if !s.statuses.Valid(status) {
		return errors.Wrapf(ErrValidation, "unknown status %q", currentStatus)
	}
	err := s.withOrder(ctx, id, func(ctx context.Context) error {
		return s.repo.UpdateTrackedOrder(ctx, id, estimatedDeliveryDate, status)
	})
	if err != nil {
		return errors.Wrapf(err, "update tracked order %d", id)
	}
	s.invalidate(ctx, id)
	return nil
}

// GetLastCheckpoint returns the checkpoint with the greatest timestamp, or nil when
// the order is nil or has no checkpoints.
func (s *Service) GetLastCheckpoint(ctx context.Context, to *models.TrackedOrder) (*models.OrderCheckpoint, error) {
	if to == nil {
		return nil, nil
	}
	cps, err := s.repo.GetAllOrderCheckpoints(ctx, to.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "list checkpoints of %d", to.ID)
	}
	return models.Latest(cps), nil
}

func (s *Service) GetNumberOfCheckpoints(ctx context.Context, to *models.TrackedOrder) (int, error) {
	if to == nil {
		return 0, nil
	}
	cps, err := s.repo.GetAllOrderCheckpoints(ctx, to.ID)
	if err != nil {
		return 0, errors.Wrapf(err, "list checkpoints of %d", to.ID)
	}
	return len(cps), nil
}

func (s *Service) normalizeCheckpoint(cp *models.OrderCheckpoint) error {
	if cp == nil {
		return errors.Wrap(ErrValidation, "checkpoint is required")
	}
	cp.Description = strings.TrimSpace(cp.Description)
	if cp.Description == "" {
		return errors.Wrap(ErrValidation, "description is required")
	}
	cp.Status = models.NormalizeStatus(cp.Status)
	if !s.statuses.Valid(cp.Status) {
		return errors.Wrapf(ErrValidation, "unknown status %q", cp.Status)
	}
	if cp.Location != nil && strings.TrimSpace(*cp.Location) == "" {
		cp.Location = nil
	}
	if cp.Timestamp.IsZero() {
		cp.Timestamp = s.now()
	}
	cp.Timestamp = cp.Timestamp.UTC()
	return nil
}

func (s *Service) normalizeTrackedOrder(to *models.TrackedOrder) error {
	if to == nil {
		return errors.Wrap(ErrValidation, "tracked order is required")
	}
	if to.OrderID == 0 {
		return errors.Wrap(ErrValidation, "orderId is required")
	}
	to.CurrentStatus = models.NormalizeStatus(to.CurrentStatus)
	if !s.statuses.Valid(to.CurrentStatus) {
		return errors.Wrapf(ErrValidation, "unknown status %q", to.CurrentStatus)
	}
	to.EstimatedDeliveryDate = models.TruncateDate(to.EstimatedDeliveryDate)
	to.DeliveryAddress = strings.TrimSpace(to.DeliveryAddress)
	return nil
}

// withOrder runs fn under the order lock inside one transaction.
func (s *Service) withOrder(ctx context.Context, trackedOrderID uint64, fn func(ctx context.Context) error) error {
	return s.locker.WithLock(ctx, lockKey(trackedOrderID), s.lockTTL, func(ctx context.Context) error {
		return s.tx.Do(ctx, fn)
	})
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

func (s *Service) invalidate(ctx context.Context, id uint64) {
	if !s.cacheEnabled() {
		return
	}
	s.gens[id%cacheStripes].Add(1)
	if err := s.cache.Del(ctx, currentKey(id)); err != nil {
		s.log.Warn("cache invalidate", "tracked_order_id", id, "error", err.Error())
	}
}

func sortHistory(cps []*models.OrderCheckpoint) {
	sort.Slice(cps, func(i, j int) bool { return models.Newer(cps[j], cps[i]) })
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func currentKey(id uint64) string {
	return fmt.Sprintf("tracking:%d:current", id)
}

func lockKey(id uint64) string {
	return fmt.Sprintf("tracking:lock:%d", id)
}
