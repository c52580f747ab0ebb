package static

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/OrderTrack/internal/integrations/orders"
	"github.com/stretchr/testify/require"
)

func TestDirectory(t *testing.T) {
	placed := time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)
	d := New(time.Time{})
	d.Set(1, placed)

	got, err := d.PlacementDate(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, placed, got)

	_, err = d.PlacementDate(context.Background(), 2)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)

	fallback := time.Unix(0, 0).UTC()
	got, err = New(fallback).PlacementDate(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, fallback, got)
}
