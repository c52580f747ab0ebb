package tracking_api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BearBump/OrderTrack/internal/integrations/orders"
	"github.com/BearBump/OrderTrack/internal/services/tracking"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

const (
	codeNotFound            = "not_found"
	codeInvalidOperation    = "invalid_operation"
	codeConflict            = "conflict"
	codeValidation          = "validation_failed"
	codeInvalidDeliveryDate = "invalid_delivery_date"
	codeUnknownOrder        = "unknown_order"
	codeUnavailable         = "dependency_unavailable"
	codeRateLimited         = "rate_limited"
	codeInternal            = "internal"
)

var errInvalidDeliveryDate = errors.New("invalid delivery date")

// dependencyError marks failures of the order service.
type dependencyError struct{ err error }

func (e *dependencyError) Error() string { return "order service: " + e.err.Error() }
func (e *dependencyError) Unwrap() error { return e.err }

// writeError maps service errors onto the HTTP error envelope. notFound is the
// message used for a missing resource.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, notFound string) {
	var (
		verrs validator.ValidationErrors
		dep   *dependencyError
	)
	switch {
	case errors.As(err, &verrs):
		writeJSONError(w, http.StatusBadRequest, codeValidation, validationMessage(verrs))
	case errors.Is(err, tracking.ErrValidation):
		writeJSONError(w, http.StatusBadRequest, codeValidation, strip(err, tracking.ErrValidation))
	case errors.Is(err, tracking.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, codeNotFound, notFound)
	case errors.Is(err, tracking.ErrInvalidOperation):
		writeJSONError(w, http.StatusConflict, codeInvalidOperation, strip(err, tracking.ErrInvalidOperation))
	case errors.Is(err, tracking.ErrConflict):
		writeJSONError(w, http.StatusConflict, codeConflict, strip(err, tracking.ErrConflict))
	case errors.Is(err, errInvalidDeliveryDate):
		writeJSONError(w, http.StatusUnprocessableEntity, codeInvalidDeliveryDate, strip(err, errInvalidDeliveryDate))
	case errors.Is(err, orders.ErrOrderNotFound):
		writeJSONError(w, http.StatusUnprocessableEntity, codeUnknownOrder, "order is unknown to the order service")
	case errors.As(err, &dep):
		log.WarnContext(r.Context(), "order service unavailable", "path", r.URL.Path, "error", err.Error())
		writeJSONError(w, http.StatusServiceUnavailable, codeUnavailable, "order service unavailable")
	default:
		log.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeJSONError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// strip drops the trailing sentinel text from a wrapped error message.
func strip(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

func validationMessage(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed on "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
