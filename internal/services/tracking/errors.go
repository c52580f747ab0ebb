package tracking

import (
	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by mutations addressing a missing tracked order or checkpoint.
	ErrNotFound = models.ErrNotFound
	// ErrConflict is returned when the commercial order is already tracked.
	ErrConflict = models.ErrConflict
	// ErrInvalidOperation is a precondition failure, e.g. reverting the only checkpoint.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInternalConsistency means the stored history changed under a running operation.
	ErrInternalConsistency = errors.New("internal consistency error")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")
)
