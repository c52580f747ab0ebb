package tracking_api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/OrderTrack/internal/integrations/orders"
	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/internal/services/tracking"
	"github.com/go-playground/validator/v10"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/pkg/errors"
)

const (
	msgOrderNotFound      = "order not found"
	msgCheckpointNotFound = "checkpoint not found"

	maxBodyBytes = 1 << 20
)

// TrackingAPI serves tracked orders and their checkpoint history over JSON.
type TrackingAPI struct {
	svc      *tracking.Service
	orders   orders.Directory
	validate *validator.Validate
	log      *slog.Logger
}

func New(svc *tracking.Service, dir orders.Directory, log *slog.Logger) *TrackingAPI {
	if log == nil {
		log = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &TrackingAPI{svc: svc, orders: dir, validate: v, log: log}
}

// Register binds all routes on the gateway mux.
func (a *TrackingAPI) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method, path string
		h            runtime.HandlerFunc
	}{
		{http.MethodGet, "/v1/tracked-orders", a.listTrackedOrders},
		{http.MethodPost, "/v1/tracked-orders", a.createTrackedOrder},
		{http.MethodGet, "/v1/tracked-orders/{id}", a.getTrackedOrder},
		{http.MethodPut, "/v1/tracked-orders/{id}", a.updateTrackedOrder},
		{http.MethodDelete, "/v1/tracked-orders/{id}", a.deleteTrackedOrder},
		{http.MethodGet, "/v1/tracked-orders/{id}/checkpoints", a.history},
		{http.MethodPost, "/v1/tracked-orders/{id}/checkpoints", a.recordCheckpoint},
		{http.MethodPost, "/v1/tracked-orders/{id}/revert", a.revert},
		{http.MethodGet, "/v1/checkpoints/{id}", a.getCheckpoint},
		{http.MethodPut, "/v1/checkpoints/{id}", a.editCheckpoint},
		{http.MethodDelete, "/v1/checkpoints/{id}", a.deleteCheckpoint},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, rt.h); err != nil {
			return errors.Wrapf(err, "register %s %s", rt.method, rt.path)
		}
	}
	return nil
}

func (a *TrackingAPI) listTrackedOrders(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	list, err := a.svc.ListTrackedOrders(r.Context())
	if err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	out := listTrackedOrdersResponse{TrackedOrders: make([]trackedOrderResponse, 0, len(list))}
	for _, to := range list {
		out.TrackedOrders = append(out.TrackedOrders, toTrackedOrderResponse(to))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *TrackingAPI) createTrackedOrder(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req createTrackedOrderRequest
	if err := a.decode(r, &req); err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	date, _ := time.Parse(models.DateLayout, req.EstimatedDeliveryDate)
	if err := a.checkDeliveryDate(r, req.OrderID, date); err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}

	to := &models.TrackedOrder{
		OrderID:               req.OrderID,
		EstimatedDeliveryDate: date,
		DeliveryAddress:       req.DeliveryAddress,
	}
	to, cp, err := a.svc.CreateTrackedOrder(r.Context(), to, req.Checkpoint.model(0))
	if err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, createTrackedOrderResponse{
		TrackedOrder: toTrackedOrderResponse(to),
		Checkpoint:   toCheckpointResponse(cp),
	})
}

func (a *TrackingAPI) getTrackedOrder(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := pathID(w, params)
	if !ok {
		return
	}
	to, found, err := a.svc.GetTrackedOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	if !found {
		writeJSONError(w, http.StatusNotFound, codeNotFound, msgOrderNotFound)
		return
	}
	out, err := a.describe(r, to)
	if err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *TrackingAPI) updateTrackedOrder(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := pathID(w, params)
	if !ok {
		return
	}
	var req updateTrackedOrderRequest
	if err := a.decode(r, &req); err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	to, found, err := a.svc.GetTrackedOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	if !found {
		writeJSONError(w, http.StatusNotFound, codeNotFound, msgOrderNotFound)
		return
	}
	date, _ := time.Parse(models.DateLayout, req.EstimatedDeliveryDate)
	if err := a.checkDeliveryDate(r, to.OrderID, date); err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	if err := a.svc.UpdateTrackedOrder(r.Context(), id, date, req.CurrentStatus); err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	to.EstimatedDeliveryDate = models.TruncateDate(date)
	to.CurrentStatus = models.NormalizeStatus(req.CurrentStatus)
	writeJSON(w, http.StatusOK, toTrackedOrderResponse(to))
}

func (a *TrackingAPI) deleteTrackedOrder(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := pathID(w, params)
	if !ok {
		return
	}
	deleted, err := a.svc.DeleteTrackedOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	if !deleted {
		writeJSONError(w, http.StatusNotFound, codeNotFound, msgOrderNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *TrackingAPI) history(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := pathID(w, params)
	if !ok {
		return
	}
	to, cps, err := a.svc.History(r.Context(), id)
	if err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		TrackedOrder: toTrackedOrderResponse(to),
		Checkpoints:  toCheckpointResponses(cps),
	})
}

func (a *TrackingAPI) recordCheckpoint(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := pathID(w, params)
	if !ok {
		return
	}
	var req checkpointRequest
	if err := a.decode(r, &req); err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	cp, err := a.svc.RecordCheckpoint(r.Context(), req.model(id))
	if err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, toCheckpointResponse(cp))
}

func (a *TrackingAPI) revert(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := pathID(w, params)
	if !ok {
		return
	}
	to, found, err := a.svc.GetTrackedOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	if !found {
		writeJSONError(w, http.StatusNotFound, codeNotFound, msgOrderNotFound)
		return
	}
	if err := a.svc.RevertToPreviousCheckpoint(r.Context(), to); err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	out, err := a.describe(r, to)
	if err != nil {
		writeError(w, r, a.log, err, msgOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *TrackingAPI) getCheckpoint(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := pathID(w, params)
	if !ok {
		return
	}
	cp, found, err := a.svc.GetCheckpoint(r.Context(), id)
	if err != nil {
		writeError(w, r, a.log, err, msgCheckpointNotFound)
		return
	}
	if !found {
		writeJSONError(w, http.StatusNotFound, codeNotFound, msgCheckpointNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toCheckpointResponse(cp))
}

func (a *TrackingAPI) editCheckpoint(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := pathID(w, params)
	if !ok {
		return
	}
	var req editCheckpointRequest
	if err := a.decode(r, &req); err != nil {
		writeError(w, r, a.log, err, msgCheckpointNotFound)
		return
	}
	cp, err := a.svc.EditCheckpoint(r.Context(), id, *req.Timestamp, req.Location, req.Description, req.Status)
	if err != nil {
		writeError(w, r, a.log, err, msgCheckpointNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toCheckpointResponse(cp))
}

func (a *TrackingAPI) deleteCheckpoint(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := pathID(w, params)
	if !ok {
		return
	}
	deleted, err := a.svc.DeleteCheckpoint(r.Context(), id)
	if err != nil {
		writeError(w, r, a.log, err, msgCheckpointNotFound)
		return
	}
	if !deleted {
		writeJSONError(w, http.StatusNotFound, codeNotFound, msgCheckpointNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// describe attaches the checkpoint count and the current checkpoint.
func (a *TrackingAPI) describe(r *http.Request, to *models.TrackedOrder) (trackedOrderResponse, error) {
	out := toTrackedOrderResponse(to)
	n, err := a.svc.GetNumberOfCheckpoints(r.Context(), to)
	if err != nil {
		return out, err
	}
	last, err := a.svc.GetLastCheckpoint(r.Context(), to)
	if err != nil {
		return out, err
	}
	out.CheckpointCount = &n
	if last != nil {
		cp := toCheckpointResponse(last)
		out.LastCheckpoint = &cp
	}
	return out, nil
}

// checkDeliveryDate rejects a delivery date earlier than the order's placement date.
func (a *TrackingAPI) checkDeliveryDate(r *http.Request, orderID uint64, date time.Time) error {
	if a.orders == nil {
		return nil
	}
	placed, err := a.orders.PlacementDate(r.Context(), orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return err
	}
	if err != nil {
		return &dependencyError{err: err}
	}
	placedOn := models.TruncateDate(placed)
	if models.TruncateDate(date).Before(placedOn) {
		return errors.Wrapf(errInvalidDeliveryDate, "estimated delivery date %s is before placement date %s",
			date.Format(models.DateLayout), placedOn.Format(models.DateLayout))
	}
	return nil
}

func (a *TrackingAPI) decode(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errors.Wrapf(tracking.ErrValidation, "malformed body: %v", err)
	}
	return a.validate.Struct(dst)
}

func pathID(w http.ResponseWriter, params map[string]string) (uint64, bool) {
	id, err := strconv.ParseUint(params["id"], 10, 64)
	if err != nil || id == 0 {
		writeJSONError(w, http.StatusBadRequest, codeValidation, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
