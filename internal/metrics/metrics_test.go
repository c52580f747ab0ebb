package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTracking_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTracking(reg)

	m.ObserveRevert("ok")
	m.ObserveRevert("ok")
	m.ObserveRevert("invalid")
	m.ObserveCheckpoint("record")
	m.ObserveStatusSync()
	m.ObserveIngest("dead_lettered")
	m.ObserveReconciled("repaired")
	m.ObserveCycle(150 * time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.reverts.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.reverts.WithLabelValues("invalid")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.checkpoints.WithLabelValues("record")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.syncs))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ingested.WithLabelValues("dead_lettered")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.reconciled.WithLabelValues("repaired")))
	require.Equal(t, 1, testutil.CollectAndCount(m.cycleDur))
}

func TestTracking_RegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewTracking(reg)
	b := NewTracking(reg)

	a.ObserveStatusSync()
	b.ObserveStatusSync()
	require.Equal(t, 2.0, testutil.ToFloat64(b.syncs))

	h1 := NewHTTP(reg)
	h2 := NewHTTP(reg)
	require.Same(t, h1.ReqTotal, h2.ReqTotal)
}
