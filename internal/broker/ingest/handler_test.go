package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/OrderTrack/internal/broker/messages"
	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/internal/services/tracking"
	"github.com/BearBump/OrderTrack/internal/storage/memtracking"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	key     []byte
	value   []byte
	headers []kafka.Header
}

type fakePublisher struct {
	out []published
	err error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key, value []byte, headers ...kafka.Header) error {
	if p.err != nil {
		return p.err
	}
	p.out = append(p.out, published{topic: topic, key: key, value: value, headers: headers})
	return nil
}

type countingMetrics map[string]int

func (m countingMetrics) ObserveIngest(outcome string) { m[outcome]++ }

func setup(t *testing.T) (*Handler, *tracking.Service, *models.TrackedOrder, *fakePublisher, countingMetrics) {
	t.Helper()
	svc := tracking.New(memtracking.New())
	to, _, err := svc.CreateTrackedOrder(context.Background(),
		&models.TrackedOrder{OrderID: 1},
		&models.OrderCheckpoint{Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), Description: "created", Status: models.StatusProcessing},
	)
	require.NoError(t, err)
	pub := &fakePublisher{}
	m := countingMetrics{}
	return NewHandler(svc, pub, "checkpoint.reported.dlq", m, nil), svc, to, pub, m
}

func TestHandler_AppliesCheckpoint(t *testing.T) {
	h, svc, to, pub, m := setup(t)
	ctx := context.Background()

	msg := kafka.Message{Topic: "checkpoint.reported", Value: []byte(`{"tracked_order_id":1,"timestamp":"2025-03-01T12:00:00Z","location":"Hub","description":"sorted","status":"in_transit"}`)}
	require.NoError(t, h.Handle(ctx, msg))

	got, _, err := svc.GetTrackedOrder(ctx, to.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusInTransit, got.CurrentStatus)
	last, err := svc.GetLastCheckpoint(ctx, got)
	require.NoError(t, err)
	require.Equal(t, "Hub", *last.Location)
	require.Empty(t, pub.out)
	require.Equal(t, 1, m["applied"])
}

func TestHandler_PermanentFailuresAreDeadLettered(t *testing.T) {
	cases := map[string]string{
		"malformed":     `{"tracked_order_id":`,
		"missing field": `{"tracked_order_id":1,"status":"SHIPPED"}`,
		"unknown order": `{"tracked_order_id":99,"description":"x","status":"SHIPPED"}`,
		"older":         `{"tracked_order_id":1,"timestamp":"2025-01-01T00:00:00Z","description":"x","status":"SHIPPED"}`,
		"bad status":    `{"tracked_order_id":1,"description":"x","status":"TELEPORTED"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			h, _, _, pub, m := setup(t)
			msg := kafka.Message{Topic: "checkpoint.reported", Key: []byte("1"), Value: []byte(body)}

			require.NoError(t, h.Handle(context.Background(), msg))
			require.Len(t, pub.out, 1)
			require.Equal(t, "checkpoint.reported.dlq", pub.out[0].topic)
			require.Equal(t, []byte(body), pub.out[0].value)
			require.Equal(t, messages.HeaderError, pub.out[0].headers[0].Key)
			require.Equal(t, "checkpoint.reported", string(pub.out[0].headers[1].Value))
			require.Equal(t, 1, m["dead_lettered"])
		})
	}
}

func TestHandler_DeadLetterPublishFailureIsReturned(t *testing.T) {
	h, _, _, pub, _ := setup(t)
	pub.err = errors.New("broker down")

	err := h.Handle(context.Background(), kafka.Message{Value: []byte(`not json`)})
	require.ErrorContains(t, err, "dead-letter")
}

type failingRecorder struct{ err error }

func (r failingRecorder) RecordCheckpoint(context.Context, *models.OrderCheckpoint) (*models.OrderCheckpoint, error) {
	return nil, r.err
}

func TestHandler_TransientFailureIsReturned(t *testing.T) {
	pub := &fakePublisher{}
	want := errors.New("db unavailable")
	h := NewHandler(failingRecorder{err: want}, pub, "dlq", nil, nil)

	err := h.Handle(context.Background(), kafka.Message{Value: []byte(`{"tracked_order_id":1,"description":"x","status":"SHIPPED"}`)})
	require.ErrorIs(t, err, want)
	require.Empty(t, pub.out)
}

func TestHandler_NoDeadLetterTopicDrops(t *testing.T) {
	h := NewHandler(failingRecorder{}, nil, "", nil, nil)
	require.NoError(t, h.Handle(context.Background(), kafka.Message{Value: []byte(`{}`)}))
}
