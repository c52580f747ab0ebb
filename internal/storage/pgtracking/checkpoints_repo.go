package pgtracking

import (
	"context"
	"time"

	"github.com/BearBump/OrderTrack/internal/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

var checkpointColumns = []string{
	"id", "tracked_order_id", "checkpoint_at", "location", "description", "status",
}

func scanCheckpoint(row pgx.Row) (*models.OrderCheckpoint, error) {
	var c models.OrderCheckpoint
	var location *string
	if err := row.Scan(&c.ID, &c.TrackedOrderID, &c.Timestamp, &location, &c.Description, &c.Status); err != nil {
		return nil, err
	}
	c.Timestamp = c.Timestamp.UTC()
	c.Location = location
	return &c, nil
}

func (s *Storage) GetOrderCheckpointByID(ctx context.Context, id uint64) (*models.OrderCheckpoint, error) {
	query, args, err := qb.Select(checkpointColumns...).
		From("order_checkpoints").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build select checkpoint")
	}

	c, err := scanCheckpoint(s.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "select checkpoint")
	}
	return c, nil
}

// GetAllOrderCheckpoints returns the history of one tracked order. No ordering is promised.
func (s *Storage) GetAllOrderCheckpoints(ctx context.Context, trackedOrderID uint64) ([]*models.OrderCheckpoint, error) {
	query, args, err := qb.Select(checkpointColumns...).
		From("order_checkpoints").
		Where(sq.Eq{"tracked_order_id": trackedOrderID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build select checkpoints")
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select checkpoints")
	}
	defer rows.Close()

	out := []*models.OrderCheckpoint{}
	for rows.Next() {
		c, err := scanCheckpoint(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan checkpoint")
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) AddOrderCheckpoint(ctx context.Context, c *models.OrderCheckpoint) (uint64, error) {
	query, args, err := qb.Insert("order_checkpoints").
		Columns("tracked_order_id", "checkpoint_at", "location", "description", "status").
		Values(c.TrackedOrderID, c.Timestamp.UTC(), c.Location, c.Description, c.Status).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build insert checkpoint")
	}

	var id uint64
	if err := s.q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if isPgErrorWithCode(err, pgErrForeignKeyViolation) {
			return 0, errors.Wrapf(models.ErrNotFound, "tracked order %d", c.TrackedOrderID)
		}
		return 0, errors.Wrap(err, "insert checkpoint")
	}
	return id, nil
}

func (s *Storage) DeleteOrderCheckpoint(ctx context.Context, id uint64) (bool, error) {
	query, args, err := qb.Delete("order_checkpoints").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, errors.Wrap(err, "build delete checkpoint")
	}
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return false, errors.Wrap(err, "delete checkpoint")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Storage) UpdateOrderCheckpoint(ctx context.Context, id uint64, ts time.Time, location *string, description, status string) error {
	query, args, err := qb.Update("order_checkpoints").
		Set("checkpoint_at", ts.UTC()).
		Set("location", location).
		Set("description", description).
		Set("status", status).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build update checkpoint")
	}
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "update checkpoint")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
