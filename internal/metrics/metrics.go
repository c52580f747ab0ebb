package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ordertrack"

// Tracking groups the collectors of the tracking core, the ingestion consumer and the reconciler.
type Tracking struct {
	reverts     *prometheus.CounterVec
	checkpoints *prometheus.CounterVec
	syncs       prometheus.Counter
	ingested    *prometheus.CounterVec
	reconciled  *prometheus.CounterVec
	cycleDur    prometheus.Histogram
}

func NewTracking(reg prometheus.Registerer) *Tracking {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Tracking{
		reverts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reverts_total",
			Help:      "Checkpoint reverts by result.",
		}, []string{"result"}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_mutations_total",
			Help:      "Checkpoint mutations by operation.",
		}, []string{"op"}),
		syncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_syncs_total",
			Help:      "Tracked orders whose current status was resynced with their history.",
		}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_messages_total",
			Help:      "Consumed checkpoint messages by outcome.",
		}, []string{"outcome"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "orders_total",
			Help:      "Tracked orders visited by the reconciler by outcome.",
		}, []string{"outcome"}),
		cycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of reconciler cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.reverts = register(reg, m.reverts)
	m.checkpoints = register(reg, m.checkpoints)
	m.syncs = register(reg, m.syncs)
	m.ingested = register(reg, m.ingested)
	m.reconciled = register(reg, m.reconciled)
	m.cycleDur = register(reg, m.cycleDur)
	return m
}

func (m *Tracking) ObserveRevert(result string) {
	m.reverts.WithLabelValues(result).Inc()
}

func (m *Tracking) ObserveCheckpoint(op string) {
	m.checkpoints.WithLabelValues(op).Inc()
}

func (m *Tracking) ObserveStatusSync() {
	m.syncs.Inc()
}

func (m *Tracking) ObserveIngest(outcome string) {
	m.ingested.WithLabelValues(outcome).Inc()
}

func (m *Tracking) ObserveReconciled(outcome string) {
	m.reconciled.WithLabelValues(outcome).Inc()
}

func (m *Tracking) ObserveCycle(d time.Duration) {
	m.cycleDur.Observe(d.Seconds())
}

// register returns the already registered collector when an equal one exists.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(errors.Wrap(err, "register collector"))
	}
	return c
}
