package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/BearBump/OrderTrack/internal/broker/messages"
	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/internal/services/tracking"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type Recorder interface {
	RecordCheckpoint(ctx context.Context, cp *models.OrderCheckpoint) (*models.OrderCheckpoint, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error
}

type Metrics interface {
	ObserveIngest(outcome string)
}

// Handler applies checkpoint.reported messages. Messages that can never be applied are
// forwarded to the dead-letter topic; any other failure is returned so the message is redelivered.
type Handler struct {
	rec      Recorder
	dlq      Publisher
	dlqTopic string
	validate *validator.Validate
	metrics  Metrics
	log      *slog.Logger
}

func NewHandler(rec Recorder, dlq Publisher, dlqTopic string, m Metrics, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		rec:      rec,
		dlq:      dlq,
		dlqTopic: dlqTopic,
		validate: validator.New(),
		metrics:  m,
		log:      log,
	}
}

func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	cp, err := h.decode(msg.Value)
	if err == nil {
		_, err = h.rec.RecordCheckpoint(ctx, cp)
	}
	switch {
	case err == nil:
		h.observe("applied")
		return nil
	case isPermanent(err):
		return h.deadLetter(ctx, msg, err)
	default:
		h.observe("failed")
		return errors.Wrap(err, "record checkpoint")
	}
}

func (h *Handler) decode(value []byte) (*models.OrderCheckpoint, error) {
	var m messages.CheckpointReported
	dec := json.NewDecoder(bytes.NewReader(value))
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(tracking.ErrValidation, "decode: "+err.Error())
	}
	if err := h.validate.Struct(m); err != nil {
		return nil, errors.Wrap(tracking.ErrValidation, err.Error())
	}
	cp := &models.OrderCheckpoint{
		TrackedOrderID: m.TrackedOrderID,
		Location:       m.Location,
		Description:    m.Description,
		Status:         m.Status,
	}
	if m.Timestamp != nil {
		cp.Timestamp = *m.Timestamp
	}
	return cp, nil
}

func (h *Handler) deadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	h.log.Warn("checkpoint message rejected",
		"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", cause.Error())
	if h.dlq == nil || h.dlqTopic == "" {
		h.observe("dropped")
		return nil
	}
	headers := []kafka.Header{
		{Key: messages.HeaderError, Value: []byte(cause.Error())},
		{Key: messages.HeaderSourceTopic, Value: []byte(msg.Topic)},
	}
	if err := h.dlq.Publish(ctx, h.dlqTopic, msg.Key, msg.Value, headers...); err != nil {
		h.observe("failed")
		return errors.Wrap(err, "dead-letter")
	}
	h.observe("dead_lettered")
	return nil
}

func (h *Handler) observe(outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveIngest(outcome)
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, tracking.ErrValidation) ||
		errors.Is(err, tracking.ErrNotFound) ||
		errors.Is(err, tracking.ErrInvalidOperation)
}
