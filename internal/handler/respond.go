package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var (
	errUnauthenticated = errors.New("missing or invalid caller identity")
	errForbidden       = errors.New("caller may not act on this resource")
)

// badRequest ошибки ввода клиента без доменного смысла.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf сопоставляет ошибке HTTP-статус и машиночитаемый код.
func statusOf(err error) (int, string) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidRange):
		return http.StatusUnprocessableEntity, "invalid_range"
	case errors.Is(err, service.ErrInvalidTime):
		return http.StatusUnprocessableEntity, "invalid_time"
	case errors.Is(err, service.ErrInvalidDuration):
		return http.StatusUnprocessableEntity, "invalid_duration"
	case errors.Is(err, service.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, service.ErrOutsideAvailability):
		return http.StatusConflict, "outside_availability"
	case errors.Is(err, service.ErrSlotUnavailable):
		return http.StatusConflict, "slot_unavailable"
	case errors.Is(err, service.ErrPaymentRequired):
		return http.StatusPaymentRequired, "payment_required"
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, service.ErrPaymentProvider):
		return http.StatusBadGateway, "payment_provider_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, code := statusOf(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		msg = "internal error"
	}

	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest{msg: "invalid request body: " + err.Error()}
	}
	return nil
}
