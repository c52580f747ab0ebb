package tracking_api

import (
	"time"

	"github.com/BearBump/OrderTrack/internal/models"
)

type checkpointRequest struct {
	Timestamp   *time.Time `json:"timestamp"`
	Location    *string    `json:"location" validate:"omitempty,max=256"`
	Description string     `json:"description" validate:"required,max=1024"`
	Status      string     `json:"status" validate:"required,max=64"`
}

func (r *checkpointRequest) model(trackedOrderID uint64) *models.OrderCheckpoint {
	cp := &models.OrderCheckpoint{
		TrackedOrderID: trackedOrderID,
		Location:       r.Location,
		Description:    r.Description,
		Status:         r.Status,
	}
	if r.Timestamp != nil {
		cp.Timestamp = *r.Timestamp
	}
	return cp
}

type editCheckpointRequest struct {
	Timestamp   *time.Time `json:"timestamp" validate:"required"`
	Location    *string    `json:"location" validate:"omitempty,max=256"`
	Description string     `json:"description" validate:"required,max=1024"`
	Status      string     `json:"status" validate:"required,max=64"`
}

type createTrackedOrderRequest struct {
	OrderID               uint64             `json:"orderId" validate:"required"`
	EstimatedDeliveryDate string             `json:"estimatedDeliveryDate" validate:"required,datetime=2006-01-02"`
	DeliveryAddress       string             `json:"deliveryAddress" validate:"required,max=512"`
	Checkpoint            *checkpointRequest `json:"checkpoint" validate:"required"`
}

type updateTrackedOrderRequest struct {
	EstimatedDeliveryDate string `json:"estimatedDeliveryDate" validate:"required,datetime=2006-01-02"`
	CurrentStatus         string `json:"currentStatus" validate:"required,max=64"`
}

type checkpointResponse struct {
	ID             uint64    `json:"id"`
	TrackedOrderID uint64    `json:"trackedOrderId"`
	Timestamp      time.Time `json:"timestamp"`
	Location       *string   `json:"location,omitempty"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
}

type trackedOrderResponse struct {
	ID                    uint64              `json:"id"`
	OrderID               uint64              `json:"orderId"`
	EstimatedDeliveryDate string              `json:"estimatedDeliveryDate"`
	CurrentStatus         string              `json:"currentStatus"`
	DeliveryAddress       string              `json:"deliveryAddress"`
	CheckpointCount       *int                `json:"checkpointCount,omitempty"`
	LastCheckpoint        *checkpointResponse `json:"lastCheckpoint,omitempty"`
}

type createTrackedOrderResponse struct {
	TrackedOrder trackedOrderResponse `json:"trackedOrder"`
	Checkpoint   checkpointResponse   `json:"checkpoint"`
}

type listTrackedOrdersResponse struct {
	TrackedOrders []trackedOrderResponse `json:"trackedOrders"`
}

type historyResponse struct {
	TrackedOrder trackedOrderResponse `json:"trackedOrder"`
	Checkpoints  []checkpointResponse `json:"checkpoints"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func toCheckpointResponse(cp *models.OrderCheckpoint) checkpointResponse {
	return checkpointResponse{
		ID:             cp.ID,
		TrackedOrderID: cp.TrackedOrderID,
		Timestamp:      cp.Timestamp.UTC(),
		Location:       cp.Location,
		Description:    cp.Description,
		Status:         cp.Status,
	}
}

func toTrackedOrderResponse(to *models.TrackedOrder) trackedOrderResponse {
	out := trackedOrderResponse{
		ID:              to.ID,
		OrderID:         to.OrderID,
		CurrentStatus:   to.CurrentStatus,
		DeliveryAddress: to.DeliveryAddress,
	}
	if !to.EstimatedDeliveryDate.IsZero() {
		out.EstimatedDeliveryDate = to.EstimatedDeliveryDate.Format(models.DateLayout)
	}
	return out
}

func toCheckpointResponses(cps []*models.OrderCheckpoint) []checkpointResponse {
	out := make([]checkpointResponse, 0, len(cps))
	for _, cp := range cps {
		out = append(out, toCheckpointResponse(cp))
	}
	return out
}
