package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/internal/services/tracking"
	"github.com/pkg/errors"
)

// Tracking is the part of the tracking service the reconciler drives.
type Tracking interface {
	ListTrackedOrdersAfter(ctx context.Context, afterID uint64, limit int) ([]*models.TrackedOrder, error)
	StatusDrift(ctx context.Context, to *models.TrackedOrder) (string, bool, error)
	SyncStatus(ctx context.Context, trackedOrderID uint64) (bool, error)
}

type Metrics interface {
	ObserveReconciled(outcome string)
	ObserveCycle(d time.Duration)
}

// Reconciler periodically walks all tracked orders and repairs a CurrentStatus that
// no longer matches the current checkpoint. Orders without checkpoints are reported only.
type Reconciler struct {
	svc     Tracking
	metrics Metrics
	log     *slog.Logger

	interval    time.Duration
	batchSize   int
	concurrency int

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalCycles         atomic.Int64
	totalScanned        atomic.Int64
	totalRepaired       atomic.Int64
	totalInvalid        atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(svc Tracking, m Metrics, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		svc:               svc,
		metrics:           m,
		log:               log,
		interval:          time.Minute,
		batchSize:         100,
		concurrency:       4,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (r *Reconciler) WithSettings(interval time.Duration, batchSize, concurrency int) *Reconciler {
	if interval > 0 {
		r.interval = interval
	}
	if batchSize > 0 {
		r.batchSize = batchSize
	}
	if concurrency > 0 {
		r.concurrency = concurrency
	}
	return r
}

// Trigger forces an immediate cycle (best-effort, non-blocking).
func (r *Reconciler) Trigger() {
	r.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalCycles   int64      `json:"totalCycles"`
	TotalScanned  int64      `json:"totalScanned"`
	TotalRepaired int64      `json:"totalRepaired"`
	TotalInvalid  int64      `json:"totalInvalid"`
	TotalErrors   int64      `json:"totalErrors"`
	InFlight      int64      `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
}

func (r *Reconciler) Stats() Stats {
	st := Stats{
		StartedAt:     time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalCycles:   r.totalCycles.Load(),
		TotalScanned:  r.totalScanned.Load(),
		TotalRepaired: r.totalRepaired.Load(),
		TotalInvalid:  r.totalInvalid.Load(),
		TotalErrors:   r.totalErrors.Load(),
		InFlight:      r.inFlight.Load(),
	}
	if n := r.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := r.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}

func (r *Reconciler) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.RunOnce(ctx)
		case <-r.triggerCh:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs one full pass over the tracked orders.
func (r *Reconciler) RunOnce(ctx context.Context) {
	start := time.Now()
	r.lastCycleUnixNano.Store(start.UTC().UnixNano())
	r.totalCycles.Add(1)
	defer func() {
		if r.metrics != nil {
			r.metrics.ObserveCycle(time.Since(start))
		}
	}()

	var afterID uint64
	for ctx.Err() == nil {
		page, err := r.svc.ListTrackedOrdersAfter(ctx, afterID, r.batchSize)
		if err != nil {
			r.fail(err)
			r.log.Error("list tracked orders", "after_id", afterID, "error", err.Error())
			return
		}
		if len(page) == 0 {
			return
		}
		r.processPage(ctx, page)
		afterID = page[len(page)-1].ID
		if len(page) < r.batchSize {
			return
		}
	}
}

func (r *Reconciler) processPage(ctx context.Context, page []*models.TrackedOrder) {
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for _, to := range page {
		sem <- struct{}{}
		wg.Add(1)
		r.inFlight.Add(1)
		go func(to *models.TrackedOrder) {
			defer func() {
				r.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			r.totalScanned.Add(1)
			outcome := r.processOne(ctx, to)
			if r.metrics != nil {
				r.metrics.ObserveReconciled(outcome)
			}
		}(to)
	}
	wg.Wait()
}

func (r *Reconciler) processOne(ctx context.Context, to *models.TrackedOrder) string {
	want, drift, err := r.svc.StatusDrift(ctx, to)
	switch {
	case errors.Is(err, tracking.ErrInvalidOperation):
		r.totalInvalid.Add(1)
		r.log.Warn("tracked order has no checkpoints", "tracked_order_id", to.ID)
		return "invalid"
	case err != nil:
		r.fail(err)
		r.log.Error("status drift", "tracked_order_id", to.ID, "error", err.Error())
		return "error"
	case !drift:
		return "ok"
	}

	// the service re-reads the order under its lock, so a concurrent writer wins
	changed, err := r.svc.SyncStatus(ctx, to.ID)
	switch {
	case errors.Is(err, tracking.ErrNotFound):
		return "ok"
	case errors.Is(err, tracking.ErrInvalidOperation):
		r.totalInvalid.Add(1)
		return "invalid"
	case err != nil:
		r.fail(err)
		r.log.Error("sync status", "tracked_order_id", to.ID, "error", err.Error())
		return "error"
	case !changed:
		return "ok"
	}
	r.totalRepaired.Add(1)
	r.log.Info("status drift repaired", "tracked_order_id", to.ID, "from", to.CurrentStatus, "to", want)
	return "repaired"
}

func (r *Reconciler) fail(err error) {
	r.totalErrors.Add(1)
	r.lastErrorMu.Lock()
	r.lastError = err.Error()
	r.lastErrorMu.Unlock()
}
