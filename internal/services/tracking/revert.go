package tracking

import (
	"context"
	"time"

	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// RevertToPreviousCheckpoint deletes the current checkpoint and rolls the order's
// CurrentStatus back to the new current checkpoint. The stored delivery date is
// kept; the one carried by to is ignored. On success to is refreshed with the
// stored date and the reverted status.
func (s *Service) RevertToPreviousCheckpoint(ctx context.Context, to *models.TrackedOrder) error {
	if to == nil {
		s.metrics.ObserveRevert("invalid")
		return errors.Wrap(ErrInvalidOperation, "tracked order is required")
	}
	ctx, span := tracer.Start(ctx, "tracking.RevertToPreviousCheckpoint")
	defer span.End()
	span.SetAttributes(attribute.Int64("tracked_order.id", int64(to.ID)))

	var (
		previous *models.OrderCheckpoint
		eta      time.Time
	)
	err := s.withOrder(ctx, to.ID, func(ctx context.Context) error {
		var err error
		previous, eta, err = s.revert(ctx, to)
		return err
	})
	s.invalidate(ctx, to.ID)
	if err != nil {
		endSpan(span, err)
		switch {
		case errors.Is(err, ErrInvalidOperation):
			s.metrics.ObserveRevert("invalid")
		case errors.Is(err, ErrInternalConsistency):
			s.metrics.ObserveRevert("inconsistent")
			s.log.Error("revert failed", "tracked_order_id", to.ID, "error", err.Error())
		default:
			s.metrics.ObserveRevert("error")
		}
		return err
	}

	to.CurrentStatus = previous.Status
	to.EstimatedDeliveryDate = eta
	s.metrics.ObserveRevert("ok")
	s.log.Info("reverted to previous checkpoint",
		"tracked_order_id", to.ID, "checkpoint_id", previous.ID, "status", previous.Status)
	return nil
}

func (s *Service) revert(ctx context.Context, to *models.TrackedOrder) (*models.OrderCheckpoint, time.Time, error) {
	count, err := s.GetNumberOfCheckpoints(ctx, to)
	if err != nil {
		return nil, time.Time{}, err
	}
	if count <= 1 {
		return nil, time.Time{}, errors.Wrap(ErrInvalidOperation, "cannot revert further")
	}

	current, err := s.GetLastCheckpoint(ctx, to)
	if err != nil {
		return nil, time.Time{}, err
	}
	if current == nil {
		return nil, time.Time{}, errors.Wrap(ErrInternalConsistency, "no current checkpoint")
	}

	ok, err := s.repo.DeleteOrderCheckpoint(ctx, current.ID)
	if err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "delete checkpoint %d", current.ID)
	}
	if !ok {
		return nil, time.Time{}, errors.Wrap(ErrInternalConsistency, "failed to delete current checkpoint during reversion")
	}

	previous, err := s.GetLastCheckpoint(ctx, to)
	if err != nil {
		return nil, time.Time{}, err
	}
	if previous == nil {
		return nil, time.Time{}, errors.Wrap(ErrInternalConsistency, "no checkpoint left after reversion")
	}

	// to may be a cached or otherwise older copy; only the status changes here.
	stored, err := s.repo.GetTrackedOrderByID(ctx, to.ID)
	if err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "get tracked order %d", to.ID)
	}
	if err := s.repo.UpdateTrackedOrder(ctx, to.ID, stored.EstimatedDeliveryDate, previous.Status); err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "update tracked order %d", to.ID)
	}
	return previous, stored.EstimatedDeliveryDate, nil
}

// RecordCheckpoint appends cp and moves the order's CurrentStatus to cp.Status in one step.
// A checkpoint older than the current one is rejected with ErrInvalidOperation.
func (s *Service) RecordCheckpoint(ctx context.Context, cp *models.OrderCheckpoint) (*models.OrderCheckpoint, error) {
	if err := s.normalizeCheckpoint(cp); err != nil {
		return nil, err
	}
	if cp.TrackedOrderID == 0 {
		return nil, errors.Wrap(ErrValidation, "trackedOrderId is required")
	}
	ctx, span := tracer.Start(ctx, "tracking.RecordCheckpoint")
	defer span.End()
	span.SetAttributes(attribute.Int64("tracked_order.id", int64(cp.TrackedOrderID)))

	err := s.withOrder(ctx, cp.TrackedOrderID, func(ctx context.Context) error {
		to, err := s.repo.GetTrackedOrderByID(ctx, cp.TrackedOrderID)
		if err != nil {
			return errors.Wrapf(err, "get tracked order %d", cp.TrackedOrderID)
		}
		current, err := s.GetLastCheckpoint(ctx, to)
		if err != nil {
			return err
		}
		if current != nil && cp.Timestamp.Before(current.Timestamp) {
			return errors.Wrapf(ErrInvalidOperation, "checkpoint at %s is older than current checkpoint at %s",
				cp.Timestamp.Format(time.RFC3339), current.Timestamp.Format(time.RFC3339))
		}
		id, err := s.repo.AddOrderCheckpoint(ctx, cp)
		if err != nil {
			return errors.Wrap(err, "add checkpoint")
		}
		cp.ID = id
		if err := s.repo.UpdateTrackedOrder(ctx, to.ID, to.EstimatedDeliveryDate, cp.Status); err != nil {
			return errors.Wrapf(err, "update tracked order %d", to.ID)
		}
		return nil
	})
	if err != nil {
		endSpan(span, err)
		return nil, err
	}
	s.invalidate(ctx, cp.TrackedOrderID)
	s.metrics.ObserveCheckpoint("record")
	s.log.Debug("checkpoint recorded", "tracked_order_id", cp.TrackedOrderID, "checkpoint_id", cp.ID, "status", cp.Status)
	return cp, nil
}

// EditCheckpoint updates a checkpoint and resyncs the owning order's CurrentStatus
// with whichever checkpoint is current afterwards.
func (s *Service) EditCheckpoint(ctx context.Context, id uint64, ts time.Time, location *string, description, status string) (*models.OrderCheckpoint, error) {
	edited := &models.OrderCheckpoint{ID: id, Timestamp: ts, Location: location, Description: description, Status: status}
	if err := s.normalizeCheckpoint(edited); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetOrderCheckpointByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get checkpoint %d", id)
	}
	edited.TrackedOrderID = existing.TrackedOrderID

	ctx, span := tracer.Start(ctx, "tracking.EditCheckpoint")
	defer span.End()

	err = s.withOrder(ctx, edited.TrackedOrderID, func(ctx context.Context) error {
		if err := s.repo.UpdateOrderCheckpoint(ctx, id, edited.Timestamp, edited.Location, edited.Description, edited.Status); err != nil {
			return errors.Wrapf(err, "update checkpoint %d", id)
		}
		_, err := s.syncStatus(ctx, edited.TrackedOrderID)
		return err
	})
	if err != nil {
		endSpan(span, err)
		return nil, err
	}
	s.invalidate(ctx, edited.TrackedOrderID)
	s.metrics.ObserveCheckpoint("edit")
	return edited, nil
}

// StatusDrift reports the status the order should carry and whether it differs from
// CurrentStatus. An order without checkpoints yields ErrInvalidOperation.
func (s *Service) StatusDrift(ctx context.Context, to *models.TrackedOrder) (string, bool, error) {
	if to == nil {
		return "", false, errors.Wrap(ErrInvalidOperation, "tracked order is required")
	}
	latest, err := s.GetLastCheckpoint(ctx, to)
	if err != nil {
		return "", false, err
	}
	if latest == nil {
		return "", false, errors.Wrapf(ErrInvalidOperation, "tracked order %d has no checkpoints", to.ID)
	}
	return latest.Status, latest.Status != to.CurrentStatus, nil
}

// SyncStatus sets CurrentStatus from the current checkpoint. Reports whether anything changed.
func (s *Service) SyncStatus(ctx context.Context, trackedOrderID uint64) (bool, error) {
	var changed bool
	err := s.withOrder(ctx, trackedOrderID, func(ctx context.Context) error {
		var err error
		changed, err = s.syncStatus(ctx, trackedOrderID)
		return err
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.invalidate(ctx, trackedOrderID)
		s.metrics.ObserveStatusSync()
	}
	return changed, nil
}

func (s *Service) syncStatus(ctx context.Context, trackedOrderID uint64) (bool, error) {
	to, err := s.repo.GetTrackedOrderByID(ctx, trackedOrderID)
	if err != nil {
		return false, errors.Wrapf(err, "get tracked order %d", trackedOrderID)
	}
	want, drift, err := s.StatusDrift(ctx, to)
	if err != nil || !drift {
		return false, err
	}
	if err := s.repo.UpdateTrackedOrder(ctx, to.ID, to.EstimatedDeliveryDate, want); err != nil {
		return false, errors.Wrapf(err, "update tracked order %d", to.ID)
	}
	s.log.Info("current status synced", "tracked_order_id", to.ID, "from", to.CurrentStatus, "to", want)
	return true, nil
}
