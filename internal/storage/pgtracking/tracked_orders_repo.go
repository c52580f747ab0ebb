package pgtracking

import (
	"context"
	"time"

	"github.com/BearBump/OrderTrack/internal/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

var trackedOrderColumns = []string{
	"id", "order_id", "estimated_delivery_date", "current_status", "delivery_address",
}

func scanTrackedOrder(row pgx.Row) (*models.TrackedOrder, error) {
	var t models.TrackedOrder
	if err := row.Scan(&t.ID, &t.OrderID, &t.EstimatedDeliveryDate, &t.CurrentStatus, &t.DeliveryAddress); err != nil {
		return nil, err
	}
	t.EstimatedDeliveryDate = models.TruncateDate(t.EstimatedDeliveryDate)
	return &t, nil
}

func (s *Storage) GetTrackedOrderByID(ctx context.Context, id uint64) (*models.TrackedOrder, error) {
	query, args, err := qb.Select(trackedOrderColumns...).
		From("tracked_orders").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build select tracked order")
	}

	t, err := scanTrackedOrder(s.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "select tracked order")
	}
	return t, nil
}

func (s *Storage) GetAllTrackedOrders(ctx context.Context) ([]*models.TrackedOrder, error) {
	query, args, err := qb.Select(trackedOrderColumns...).
		From("tracked_orders").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build select tracked orders")
	}
	return s.queryTrackedOrders(ctx, query, args...)
}

// ListTrackedOrdersAfter pages tracked orders by id (keyset pagination).
func (s *Storage) ListTrackedOrdersAfter(ctx context.Context, afterID uint64, limit int) ([]*models.TrackedOrder, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query, args, err := qb.Select(trackedOrderColumns...).
		From("tracked_orders").
		Where(sq.Gt{"id": afterID}).
		OrderBy("id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build page tracked orders")
	}
	return s.queryTrackedOrders(ctx, query, args...)
}

func (s *Storage) queryTrackedOrders(ctx context.Context, query string, args ...any) ([]*models.TrackedOrder, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select tracked orders")
	}
	defer rows.Close()

	out := []*models.TrackedOrder{}
	for rows.Next() {
		t, err := scanTrackedOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan tracked order")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) AddTrackedOrder(ctx context.Context, t *models.TrackedOrder) (uint64, error) {
	query, args, err := qb.Insert("tracked_orders").
		Columns("order_id", "estimated_delivery_date", "current_status", "delivery_address").
		Values(t.OrderID, models.TruncateDate(t.EstimatedDeliveryDate), t.CurrentStatus, t.DeliveryAddress).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build insert tracked order")
	}

	var id uint64
	if err := s.q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if isPgErrorWithCode(err, pgErrUniqueViolation) {
			return 0, errors.Wrapf(models.ErrConflict, "order %d is already tracked", t.OrderID)
		}
		return 0, errors.Wrap(err, "insert tracked order")
	}
	return id, nil
}

func (s *Storage) DeleteTrackedOrder(ctx context.Context, id uint64) (bool, error) {
	query, args, err := qb.Delete("tracked_orders").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, errors.Wrap(err, "build delete tracked order")
	}
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return false, errors.Wrap(err, "delete tracked order")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Storage) UpdateTrackedOrder(ctx context.Context, id uint64, estimatedDeliveryDate time.Time, status string) error {
	query, args, err := qb.Update("tracked_orders").
		Set("estimated_delivery_date", models.TruncateDate(estimatedDeliveryDate)).
		Set("current_status", status).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build update tracked order")
	}
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "update tracked order")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
