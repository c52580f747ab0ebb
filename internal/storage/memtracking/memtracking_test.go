package memtracking

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/stretchr/testify/require"
)

func TestStorage_Flow(t *testing.T) {
	ctx := context.Background()
	st := New()

	eta := time.Date(2025, 4, 10, 15, 0, 0, 0, time.UTC)
	toID, err := st.AddTrackedOrder(ctx, &models.TrackedOrder{OrderID: 1, EstimatedDeliveryDate: eta, CurrentStatus: models.StatusProcessing})
	require.NoError(t, err)
	require.Equal(t, uint64(1), toID)

	_, err = st.AddTrackedOrder(ctx, &models.TrackedOrder{OrderID: 1})
	require.ErrorIs(t, err, models.ErrConflict)

	to, err := st.GetTrackedOrderByID(ctx, toID)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC), to.EstimatedDeliveryDate)

	_, err = st.GetTrackedOrderByID(ctx, 99)
	require.ErrorIs(t, err, models.ErrNotFound)

	loc := "Hub"
	cID, err := st.AddOrderCheckpoint(ctx, &models.OrderCheckpoint{TrackedOrderID: toID, Timestamp: eta, Location: &loc, Description: "d", Status: models.StatusProcessing})
	require.NoError(t, err)
	_, err = st.AddOrderCheckpoint(ctx, &models.OrderCheckpoint{TrackedOrderID: 99, Description: "d", Status: "S"})
	require.ErrorIs(t, err, models.ErrNotFound)

	// stored values are copies
	loc = "Changed"
	c, err := st.GetOrderCheckpointByID(ctx, cID)
	require.NoError(t, err)
	require.Equal(t, "Hub", *c.Location)
	*c.Location = "Mutated"
	c, _ = st.GetOrderCheckpointByID(ctx, cID)
	require.Equal(t, "Hub", *c.Location)

	require.NoError(t, st.UpdateOrderCheckpoint(ctx, cID, eta, nil, "d2", models.StatusShipped))
	require.ErrorIs(t, st.UpdateOrderCheckpoint(ctx, 99, eta, nil, "d2", "S"), models.ErrNotFound)
	require.NoError(t, st.UpdateTrackedOrder(ctx, toID, eta, models.StatusShipped))
	require.ErrorIs(t, st.UpdateTrackedOrder(ctx, 99, eta, "S"), models.ErrNotFound)

	cps, err := st.GetAllOrderCheckpoints(ctx, toID)
	require.NoError(t, err)
	require.Len(t, cps, 1)
	require.Nil(t, cps[0].Location)

	ok, err := st.DeleteTrackedOrder(ctx, toID)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = st.GetOrderCheckpointByID(ctx, cID)
	require.ErrorIs(t, err, models.ErrNotFound)

	ok, err = st.DeleteTrackedOrder(ctx, toID)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = st.DeleteOrderCheckpoint(ctx, cID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStorage_ListTrackedOrdersAfter(t *testing.T) {
	ctx := context.Background()
	st := New()
	for i := 1; i <= 5; i++ {
		_, err := st.AddTrackedOrder(ctx, &models.TrackedOrder{OrderID: uint64(100 + i)})
		require.NoError(t, err)
	}

	page, err := st.ListTrackedOrdersAfter(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, uint64(1), page[0].ID)
	require.Equal(t, uint64(2), page[1].ID)

	page, err = st.ListTrackedOrdersAfter(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.Equal(t, uint64(3), page[0].ID)

	all, err := st.GetAllTrackedOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
}
