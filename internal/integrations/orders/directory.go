package orders

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrOrderNotFound = errors.New("order not found")

// Directory reads commercial orders owned by the order subsystem.
type Directory interface {
	PlacementDate(ctx context.Context, orderID uint64) (time.Time, error)
}
